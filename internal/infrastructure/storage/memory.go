package storage

import (
	"context"
	"sort"
	"sync"

	"ZipPicks/internal/domain"
	"ZipPicks/internal/ports"
)

// MemoryStore keeps tasks in a map guarded by a mutex. It backs tests
// and dry runs; nothing survives the process.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.GenerationTask
}

var _ ports.TaskStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]domain.GenerationTask)}
}

func (s *MemoryStore) Get(_ context.Context, key domain.TaskKey) (*domain.GenerationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[key.String()]
	if !ok {
		return nil, nil
	}
	copied := task
	return &copied, nil
}

func (s *MemoryStore) Save(_ context.Context, task domain.GenerationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.Key.String()] = task
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.GenerationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]domain.GenerationTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Key.String() < tasks[j].Key.String()
	})
	return tasks, nil
}
