package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and the inline CLI.
type MemoryStore struct {
	mu          sync.Mutex
	runs        map[string]*Run
	checkpoints map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:        make(map[string]*Run),
		checkpoints: make(map[string][]byte),
	}
}

func (s *MemoryStore) Create(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("create run: %s already exists", run.ID)
	}
	s.runs[run.ID] = run.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return run.clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Run) error) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	run := stored.clone()
	if err := fn(run); err != nil {
		return stored.clone(), err
	}
	run.UpdatedAt = time.Now().UTC()
	s.runs[id] = run
	return run.clone(), nil
}

func (s *MemoryStore) ExecutingBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, run := range s.runs {
		if run.Status == StatusExecuting && run.StartedAt != nil && !run.StartedAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) SaveCheckpoint(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[id] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) LoadCheckpoint(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.checkpoints[id]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	ready   chan string
	mu      sync.Mutex
	delayed map[string]time.Time
}

// NewMemoryQueue creates a MemoryQueue holding up to size ready ids.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{
		ready:   make(chan string, size),
		delayed: make(map[string]time.Time),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, id string) error {
	select {
	case q.ready <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) EnqueueAt(_ context.Context, id string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed[id] = at
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (string, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case id := <-q.ready:
		return id, nil
	case <-timer.C:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *MemoryQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	var due []string
	for id, at := range q.delayed {
		if !at.After(now) {
			due = append(due, id)
			delete(q.delayed, id)
		}
	}
	q.mu.Unlock()

	sort.Strings(due)
	for i, id := range due {
		if err := q.Enqueue(ctx, id); err != nil {
			return i, err
		}
	}
	return len(due), nil
}

// Delayed returns the number of ids waiting for their due time.
func (q *MemoryQueue) Delayed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.delayed)
}
