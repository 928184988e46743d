package app

import (
	"sync"

	"github.com/yourusername/vidfetch-go/internal/domain"
)

// Registry tracks the live subprocess behind each active task so targeted
// cancellation can reach it. It holds at most one handle per task and never
// owns the process lifecycle; the downloader that started the process does.
type Registry struct {
	mu      sync.Mutex
	handles map[string]domain.Process
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]domain.Process)}
}

// Register associates a live process with a task, replacing any stale entry.
func (r *Registry) Register(taskID string, p domain.Process) {
	r.mu.Lock()
	r.handles[taskID] = p
	r.mu.Unlock()
}

// Lookup returns the live process for a task, if any.
func (r *Registry) Lookup(taskID string) (domain.Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.handles[taskID]
	return p, ok
}

// Unregister drops the association once the process has exited.
func (r *Registry) Unregister(taskID string) {
	r.mu.Lock()
	delete(r.handles, taskID)
	r.mu.Unlock()
}

// Cancel terminates the task's live process. Unknown or already-finished
// tasks are a silent no-op.
func (r *Registry) Cancel(taskID string) {
	r.mu.Lock()
	p, ok := r.handles[taskID]
	r.mu.Unlock()
	if ok {
		p.Terminate()
	}
}

// CancelAll terminates every live process. Used during shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	live := make([]domain.Process, 0, len(r.handles))
	for _, p := range r.handles {
		live = append(live, p)
	}
	r.mu.Unlock()

	for _, p := range live {
		p.Terminate()
	}
}

// Len returns the number of tasks with a live process.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
