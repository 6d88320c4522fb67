package schema

import (
	"fmt"
	"slices"

	"github.com/sompylasar/Current/internal/codec"
	"github.com/sompylasar/Current/internal/txn"
)

// ContainerSnapshot is the content of one container in canonical order.
type ContainerSnapshot struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Size int    `json:"size"`

	// Content holds one canonical JSON line per element: the record for a
	// vector, "<key>\t<record>" for a dictionary, "<row>\t<col>\t<record>"
	// for a matrix in row-major order.
	Content []string `json:"content,omitempty"`
}

// Snapshot is a comparable view of an Instance.
type Snapshot struct {
	Containers      []ContainerSnapshot `json:"containers"`
	Entries         int64               `json:"entries"`
	LastTransaction *txn.Meta           `json:"last_transaction,omitempty"`
}

// Snapshot captures the current state of every container in schema order.
func (in *Instance) Snapshot() (Snapshot, error) {
	snap := Snapshot{Entries: in.Engine.Stats().Replayed + in.Engine.Stats().Appended}
	enc := codec.Canonical{AllowNonNFC: true}

	for _, c := range in.Schema.Containers {
		cs := ContainerSnapshot{Name: c.Name, Kind: c.Kind}
		switch c.Kind {
		case KindVector:
			v := in.Vectors[c.Name]
			cs.Size = v.Size()
			for _, doc := range v.All() {
				line, err := enc.Marshal(doc)
				if err != nil {
					return Snapshot{}, fmt.Errorf("snapshot %s: %w", c.Name, err)
				}
				cs.Content = append(cs.Content, line)
			}
		case KindDictionary:
			d := in.Dictionaries[c.Name]
			cs.Size = d.Size()
			for k, doc := range d.All() {
				line, err := enc.Marshal(doc)
				if err != nil {
					return Snapshot{}, fmt.Errorf("snapshot %s: %w", c.Name, err)
				}
				cs.Content = append(cs.Content, string(k)+"\t"+line)
			}
		case KindMatrix:
			m := in.Matrices[c.Name]
			cs.Size = m.Size()
			for r, row := range m.Rows().All() {
				for col, doc := range row.All() {
					line, err := enc.Marshal(doc)
					if err != nil {
						return Snapshot{}, fmt.Errorf("snapshot %s: %w", c.Name, err)
					}
					cs.Content = append(cs.Content, string(r)+"\t"+string(col)+"\t"+line)
				}
			}
		}
		snap.Containers = append(snap.Containers, cs)
	}

	if in.Transactions != nil {
		if meta, ok := in.Transactions.Last(); ok {
			snap.LastTransaction = &meta
		}
	}
	return snap, nil
}

// Diff lists the containers whose content differs between a and b.
func Diff(a, b Snapshot) []string {
	var diffs []string
	byName := make(map[string]ContainerSnapshot, len(b.Containers))
	for _, c := range b.Containers {
		byName[c.Name] = c
	}
	for _, ca := range a.Containers {
		cb, ok := byName[ca.Name]
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("%s: missing from second snapshot", ca.Name))
		case ca.Size != cb.Size:
			diffs = append(diffs, fmt.Sprintf("%s: size %d != %d", ca.Name, ca.Size, cb.Size))
		case !slices.Equal(ca.Content, cb.Content):
			i := firstDifference(ca.Content, cb.Content)
			diffs = append(diffs, fmt.Sprintf("%s: element %d differs", ca.Name, i))
		}
		delete(byName, ca.Name)
	}
	for _, c := range b.Containers {
		if _, ok := byName[c.Name]; ok {
			diffs = append(diffs, fmt.Sprintf("%s: missing from first snapshot", c.Name))
		}
	}
	return diffs
}

func firstDifference(a, b []string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
