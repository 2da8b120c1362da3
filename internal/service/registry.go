package service

import (
	"context"
	"sort"
)

// ExecuteFunc is the body of an executor. It receives the extracted,
// schema-validated input and a TaskContext bound to the task it is driving.
type ExecuteFunc func(ctx context.Context, input map[string]any, tc *TaskContext) (any, error)

// Executor is a registry entry: one capability URI bound to one handler.
// Executors are stateless; suspension across process restarts works because
// all task state lives in storage, not in the executor.
type Executor struct {
	Extension    string // capability URI, unique registry key
	InputSchema  *Schema
	OutputSchema *Schema
	Execute      ExecuteFunc
}

// Registry maps capability URIs to executors. Construct one per server (or
// per test) and inject it into the Dispatcher; there is no ambient global
// registration.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor keyed by its extension URI. The last
// registration for a URI wins. Returns the registry for chaining.
func (r *Registry) Register(e Executor) *Registry {
	r.executors[e.Extension] = e
	return r
}

// Resolve scans the given extensions in order and returns the first one
// with a registered executor. The message's extension order decides, not
// registration order.
func (r *Registry) Resolve(extensions []string) (Executor, bool) {
	for _, uri := range extensions {
		if e, ok := r.executors[uri]; ok {
			return e, true
		}
	}
	return Executor{}, false
}

// Extensions returns the registered capability URIs, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.executors))
	for uri := range r.executors {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}
