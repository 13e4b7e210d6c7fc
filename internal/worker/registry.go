package worker

import "sync"

// registry tracks the per-job cancellation flags. An entry exists only
// while a job is executing; true means "keep going". Entries are removed on
// every exit path so the map cannot grow unbounded.
type registry struct {
	mu    sync.Mutex
	flags map[int64]bool
}

func newRegistry() *registry {
	return &registry{flags: make(map[int64]bool)}
}

func (r *registry) add(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[id] = true
}

// stop clears a job's flag, requesting cooperative termination. Returns
// false if the job has no active execution.
func (r *registry) stop(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flags[id]; !ok {
		return false
	}
	r.flags[id] = false
	return true
}

// active reports whether the job should keep going.
func (r *registry) active(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags[id]
}

func (r *registry) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flags, id)
}
