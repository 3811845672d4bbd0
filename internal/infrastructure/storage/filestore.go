package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"ZipPicks/internal/domain"
	"ZipPicks/internal/ports"
)

// FileStore persists tasks as one JSON document keyed by task key. It
// is the default store for local runs; every Save rewrites the file
// through a temp-file rename so a crash never leaves a torn log.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ ports.TaskStore = (*FileStore)(nil)

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Get(_ context.Context, key domain.TaskKey) (*domain.GenerationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read()
	if err != nil {
		return nil, err
	}
	task, ok := tasks[key.String()]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (s *FileStore) Save(_ context.Context, task domain.GenerationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read()
	if err != nil {
		return err
	}
	tasks[task.Key.String()] = task
	return s.write(tasks)
}

func (s *FileStore) List(_ context.Context) ([]domain.GenerationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, err := s.read()
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.GenerationTask, 0, len(byKey))
	for _, task := range byKey {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Key.String() < tasks[j].Key.String()
	})
	return tasks, nil
}

func (s *FileStore) read() (map[string]domain.GenerationTask, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]domain.GenerationTask), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task log: %w", err)
	}
	if len(data) == 0 {
		return make(map[string]domain.GenerationTask), nil
	}

	var tasks map[string]domain.GenerationTask
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode task log %s: %w", s.path, err)
	}
	if tasks == nil {
		tasks = make(map[string]domain.GenerationTask)
	}
	return tasks, nil
}

func (s *FileStore) write(tasks map[string]domain.GenerationTask) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode task log: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write task log: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace task log: %w", err)
	}
	return nil
}
