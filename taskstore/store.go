// Package taskstore holds the results of async solve tasks in memory,
// bounded by a capacity cap with random eviction and a TTL cleanup loop.
package taskstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whitedemon938/Turnstile-Solver/models"
)

// Task statuses.
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
)

// Task is one async solve job and, once terminal, its result.
type Task struct {
	ID        string              `json:"task_id"`
	Status    string              `json:"status"`
	Result    *models.SolveResult `json:"result,omitempty"`
	createdAt time.Time
}

// Store is an in-memory task result store. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	tasks      map[string]*Task
	maxEntries int
	ttl        time.Duration
	done       chan struct{}
}

// New creates a Store bounded to maxEntries tasks, each retained for ttl
// after creation. A background goroutine evicts expired tasks every minute
// until Stop is called.
func New(maxEntries int, ttl time.Duration) *Store {
	s := &Store{
		tasks:      make(map[string]*Task),
		maxEntries: maxEntries,
		ttl:        ttl,
		done:       make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Create registers a new pending task and returns its id.
func (s *Store) Create() *Task {
	t := &Task{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		createdAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(s.tasks) >= s.maxEntries {
		for id := range s.tasks {
			delete(s.tasks, id)
			break
		}
	}
	s.tasks[t.ID] = t
	return t
}

// Complete attaches the terminal result to a task. Completing an unknown
// (already evicted) task is a no-op.
func (s *Store) Complete(id string, result *models.SolveResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return
	}
	t.Status = StatusComplete
	t.Result = result
}

// Get returns a snapshot of the task for id, or nil if unknown or expired.
// Callers get a copy, never the live entry: the background solve goroutine
// writes Status and Result through Complete, so handing out the stored
// pointer would let readers serialize it mid-write.
func (s *Store) Get(id string) *Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok || time.Since(t.createdAt) > s.ttl {
		return nil
	}
	snapshot := *t
	return &snapshot
}

// Len returns the number of retained tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Stop terminates the background cleanup goroutine.
func (s *Store) Stop() {
	close(s.done)
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.ttl)
			s.mu.Lock()
			for id, t := range s.tasks {
				if t.createdAt.Before(cutoff) {
					delete(s.tasks, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
