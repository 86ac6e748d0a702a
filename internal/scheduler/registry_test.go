package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopTask struct{}

func (noopTask) Run(ctx context.Context) error { return nil }

func newNoop(payload []byte) (Runnable, error) { return noopTask{}, nil }

func TestRegistryRegisterAndLookup(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(TaskDefinition{Name: "export", Queue: "export_queue", New: newNoop}))

	def, ok := registry.Lookup("export_queue")
	require.True(t, ok)
	assert.Equal(t, "export", def.Name)

	_, ok = registry.Lookup("unknown_queue")
	assert.False(t, ok)
}

func TestRegistryRejectsInvalidDefinitions(t *testing.T) {
	registry := NewRegistry()

	assert.Error(t, registry.Register(TaskDefinition{Queue: "q", New: newNoop}))
	assert.Error(t, registry.Register(TaskDefinition{Name: "n", New: newNoop}))
	assert.Error(t, registry.Register(TaskDefinition{Name: "n", Queue: "q"}))
}

func TestRegistryRejectsDuplicateQueue(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(TaskDefinition{Name: "first", Queue: "q", New: newNoop}))

	err := registry.Register(TaskDefinition{Name: "second", Queue: "q", New: newNoop})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(TaskDefinition{Name: "b_task", Queue: "q1", New: newNoop}))
	require.NoError(t, registry.Register(TaskDefinition{Name: "a_task", Queue: "q2", New: newNoop}))

	defs := registry.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "a_task", defs[0].Name)
	assert.Equal(t, "b_task", defs[1].Name)
}
