package reconcile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(ops []Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.ID
	}
	return out
}

func TestOrderByDependencies(t *testing.T) {
	ops := []Operation{
		{ID: "a", Dependencies: []string{"c"}},
		{ID: "b"},
		{ID: "c"},
		{ID: "d", Dependencies: []string{"a", "missing"}},
	}

	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(orderByDependencies(ops)))
}

func TestOrderByDependencies_Cycle(t *testing.T) {
	ops := []Operation{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	}

	assert.ElementsMatch(t, []string{"a", "b"}, ids(orderByDependencies(ops)))
}

func TestBuildChunks(t *testing.T) {
	creates := func(n int) []Operation {
		ops := make([]Operation, n)
		for i := range ops {
			ops[i] = Operation{ID: fmt.Sprintf("c%d", i), Type: OpCreate, Priority: PriorityCreate}
		}
		return ops
	}

	t.Run("BoundedBySize", func(t *testing.T) {
		chunks := buildChunks(creates(12), 10)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 10)
		assert.Len(t, chunks[1], 2)
	})

	t.Run("SplitByTypeAndPriority", func(t *testing.T) {
		ops := []Operation{
			{ID: "1", Type: OpCreate, Priority: PriorityCreate},
			{ID: "2", Type: OpUpdate, Priority: PriorityUpdateTitle},
			{ID: "3", Type: OpUpdate, Priority: PriorityUpdateTitle},
			{ID: "4", Type: OpUpdate, Priority: PriorityUpdateURL},
			{ID: "5", Type: OpDelete, Priority: PriorityDelete},
		}
		chunks := buildChunks(ops, 10)
		require.Len(t, chunks, 4)
		assert.Equal(t, []string{"2", "3"}, ids(chunks[1]))
	})

	t.Run("SplitOnDependency", func(t *testing.T) {
		ops := creates(4)
		ops[2].Dependencies = []string{"c0"}
		chunks := buildChunks(ops, 10)
		require.Len(t, chunks, 2)
		assert.Equal(t, []string{"c0", "c1"}, ids(chunks[0]))
		assert.Equal(t, []string{"c2", "c3"}, ids(chunks[1]))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Empty(t, buildChunks(nil, 10))
	})
}
