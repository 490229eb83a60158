package reconcile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func folder(id, title string, children ...Node) Node {
	return Node{ID: id, Title: title, Children: children}
}

func bookmark(id, title, url string) Node {
	return Node{ID: id, Title: title, URL: url}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("op-%d", n)
	}
}

func computeDiff(t *testing.T, cfg Config, original, target []Node) *DiffResult {
	t.Helper()
	e := NewEngine(nil, cfg, WithIDGenerator(sequentialIDs()))
	diff, err := e.ComputeDiff(original, target)
	require.NoError(t, err)
	return diff
}

func opsOfType(ops []Operation, typ OperationType) []Operation {
	var out []Operation
	for _, op := range ops {
		if op.Type == typ {
			out = append(out, op)
		}
	}
	return out
}

func opIndex(ops []Operation) map[string]int {
	idx := make(map[string]int, len(ops))
	for i, op := range ops {
		idx[op.ID] = i
	}
	return idx
}
