package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Runnable is a single task execution. Run blocks until the task completes or
// fails; the scheduler owns any retry policy.
type Runnable interface {
	Run(ctx context.Context) error
}

type ParamSpec struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// TaskDefinition describes an invocable task: its name, the queue it consumes
// from, the parameters it accepts, and a factory that builds a Runnable from a
// queued payload.
type TaskDefinition struct {
	Name   string
	Queue  string
	Params []ParamSpec

	New func(payload []byte) (Runnable, error)
}

// Registry is the set of task definitions known to the worker. Definitions
// are added by explicit Register calls at startup, and looked up by queue name
// when a message arrives.
type Registry struct {
	mu      sync.RWMutex
	byQueue map[string]TaskDefinition
}

func NewRegistry() *Registry {
	return &Registry{byQueue: make(map[string]TaskDefinition)}
}

func (r *Registry) Register(def TaskDefinition) error {
	if def.Name == "" || def.Queue == "" {
		return fmt.Errorf("task definition requires a name and a queue")
	}
	if def.New == nil {
		return fmt.Errorf("task definition %s requires a factory", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byQueue[def.Queue]; ok {
		return fmt.Errorf("queue %s is already registered to task %s", def.Queue, existing.Name)
	}
	r.byQueue[def.Queue] = def

	return nil
}

func (r *Registry) Lookup(queue string) (TaskDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.byQueue[queue]
	return def, ok
}

// Definitions returns all registered tasks sorted by name.
func (r *Registry) Definitions() []TaskDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]TaskDefinition, 0, len(r.byQueue))
	for _, def := range r.byQueue {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	return defs
}
