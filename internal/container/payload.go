package container

import (
	"strconv"
	"strings"
)

// encodeIndexed builds "<index>\t<rest>".
func encodeIndexed(index int, rest string) string {
	return strconv.Itoa(index) + "\t" + rest
}

// parseIndex reads a non-negative decimal index.
func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, badPayload("invalid index %q", s)
	}
	return n, nil
}

// splitPair splits "<a>\t<b>" on the first TAB.
func splitPair(payload string) (string, string, error) {
	a, b, ok := strings.Cut(payload, "\t")
	if !ok {
		return "", "", badPayload("expected two TAB-separated fields")
	}
	return a, b, nil
}
