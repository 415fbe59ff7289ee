package server

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/pryzmatpl/pdfscan/internal/indexer"
)

// jobStatus is a poll-friendly snapshot of one indexing run.
type jobStatus struct {
	ID        string `json:"id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Done      bool   `json:"done"`
	Error     string `json:"error,omitempty"`
}

type job struct {
	mu     sync.Mutex
	status jobStatus
}

func (j *job) snapshot() jobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// jobRegistry tracks indexing runs by id for progress polling. Finished
// jobs are kept so clients can still read the terminal status.
type jobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*job)}
}

func (r *jobRegistry) get(id string) (*job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

// track registers run under a fresh id and follows its progress stream
// until completion.
func (r *jobRegistry) track(run *indexer.Run) string {
	id := uuid.NewString()
	j := &job{status: jobStatus{ID: id, Total: run.Total()}}
	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	go func() {
		for p := range run.Progress() {
			j.mu.Lock()
			j.status.Completed = p.Completed
			j.status.Total = p.Total
			j.mu.Unlock()
		}
		err := run.Wait(context.Background())
		j.mu.Lock()
		j.status.Done = true
		if err != nil {
			j.status.Error = err.Error()
		}
		j.mu.Unlock()
	}()
	return id
}
