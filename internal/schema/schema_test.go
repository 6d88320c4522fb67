package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAML(t *testing.T) {
	s, err := Load("testdata/app.yaml")
	require.NoError(t, err)

	assert.Equal(t, BackendFile, s.Backend)
	assert.Equal(t, "canonical", s.Codec)
	assert.False(t, s.SyncEnabled())
	assert.Equal(t, "app", s.Transactions)
	assert.Equal(t, filepath.Join("testdata", "data", "app.journal"), s.JournalPath())
	assert.Equal(t, []Container{
		{Name: "orders", Kind: KindVector},
		{Name: "users", Kind: KindDictionary, Key: "id"},
		{Name: "links", Kind: KindMatrix, Row: "from", Col: "to"},
	}, s.Containers)
}

func TestLoad_CUEMatchesYAML(t *testing.T) {
	fromYAML, err := Load("testdata/app.yaml")
	require.NoError(t, err)
	fromCUE, err := Load("testdata/app.cue")
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromCUE)
}

func TestParse_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yml")
	require.NoError(t, os.WriteFile(path, []byte("journal: /var/j.log\ncontainers: [{name: v, kind: Vector}]\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendFile, s.Backend)
	assert.Equal(t, "json", s.Codec)
	assert.True(t, s.SyncEnabled())
	assert.Equal(t, "/var/j.log", s.JournalPath())
	assert.Equal(t, KindVector, s.Containers[0].Kind)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse("testdata/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "container")
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("testdata/missing.yaml")
	assert.ErrorContains(t, err, "failed to read schema file")

	path := filepath.Join(t.TempDir(), "schema.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))
	_, err = Parse(path)
	assert.ErrorContains(t, err, "unsupported schema file extension")

	path = filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("journal: "), 0o644))
	_, err = Parse(path)
	assert.ErrorContains(t, err, "failed to compile CUE")

	path = filepath.Join(t.TempDir(), "open.cue")
	require.NoError(t, os.WriteFile(path, []byte("journal: string\ncontainers: []\n"), 0o644))
	_, err = Parse(path)
	assert.ErrorContains(t, err, "not concrete")
}

func TestCheck_ListsEveryProblem(t *testing.T) {
	s, err := Parse("testdata/invalid.yaml")
	require.NoError(t, err)

	var got []string
	for _, p := range s.Check() {
		got = append(got, p.Field)
	}
	assert.Equal(t, []string{
		"backend",
		"codec",
		"containers[0]",
		"containers[1].name",
		"containers[1].key",
		"containers[2].name",
		"containers[2].col",
		"containers[3].kind",
	}, got)

	err = s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "containers[1].name: duplicate of containers[0]")

	_, err = Load("testdata/invalid.yaml")
	assert.ErrorContains(t, err, "invalid schema")
}

func TestCheck_JournalRequired(t *testing.T) {
	s := &Schema{Backend: BackendSQLite, Codec: "json", Containers: []Container{{Name: "v", Kind: KindVector}}}
	problems := s.Check()
	require.Len(t, problems, 1)
	assert.Equal(t, "journal", problems[0].Field)

	s.Backend = BackendMemory
	assert.Empty(t, s.Check())

	s.Containers = nil
	assert.Equal(t, "containers", s.Check()[0].Field)
}

func TestSetJournal(t *testing.T) {
	s, err := Load("testdata/app.yaml")
	require.NoError(t, err)
	s.SetJournal("other.log")
	assert.Equal(t, "other.log", s.JournalPath())
}
