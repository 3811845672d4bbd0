package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"ZipPicks/internal/domain"
	"ZipPicks/internal/ports"
)

// Tracker owns task lifecycle transitions. Every mutation goes through
// a Mark method that loads, validates the edge, and saves, so the store
// never holds a task that skipped a state.
type Tracker struct {
	store      ports.TaskStore
	maxRetries int
	logger     *slog.Logger
	now        func() time.Time
}

func NewTracker(store ports.TaskStore, maxRetries int, logger *slog.Logger) *Tracker {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Tracker{
		store:      store,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
	}
}

// Ensure returns the task for the key, creating a pending one when the
// key is unknown. Calling Ensure twice for one key is a no-op.
func (t *Tracker) Ensure(ctx context.Context, key domain.TaskKey) (domain.GenerationTask, error) {
	existing, err := t.store.Get(ctx, key)
	if err != nil {
		return domain.GenerationTask{}, fmt.Errorf("load task %s: %w", key, err)
	}
	if existing != nil {
		return *existing, nil
	}

	task := domain.NewTask(key, t.now().UTC())
	if err := t.store.Save(ctx, task); err != nil {
		return domain.GenerationTask{}, fmt.Errorf("create task %s: %w", key, err)
	}
	t.log("task created", key)
	return task, nil
}

// MarkDrafted records that the generator produced a response.
func (t *Tracker) MarkDrafted(ctx context.Context, key domain.TaskKey) error {
	return t.advance(ctx, key, domain.StateDrafted, func(task *domain.GenerationTask) {
		task.LastError = ""
	})
}

// MarkValidated records a draft that passed validation.
func (t *Tracker) MarkValidated(ctx context.Context, key domain.TaskKey) error {
	return t.advance(ctx, key, domain.StateValidated, func(task *domain.GenerationTask) {
		task.LastError = ""
	})
}

// MarkValidationFailed sends a drafted task back to pending and counts
// the attempt. Once the retry budget is spent the task stays drafted
// and Pending stops offering it.
func (t *Tracker) MarkValidationFailed(ctx context.Context, key domain.TaskKey, reason string) error {
	task, err := t.load(ctx, key)
	if err != nil {
		return err
	}

	task.Retries++
	task.LastError = reason
	if task.Retries >= t.maxRetries {
		task.UpdatedAt = t.now().UTC()
		if err := t.store.Save(ctx, *task); err != nil {
			return fmt.Errorf("save task %s: %w", key, err)
		}
		t.log("task exhausted retry budget", key, "retries", task.Retries)
		return nil
	}

	if err := task.Transition(domain.StatePending, t.now().UTC()); err != nil {
		return err
	}
	if err := t.store.Save(ctx, *task); err != nil {
		return fmt.Errorf("save task %s: %w", key, err)
	}
	t.log("task returned to pending", key, "retries", task.Retries)
	return nil
}

// MarkPublished records the created post and finishes the task.
// Publishing an already published task is a no-op.
func (t *Tracker) MarkPublished(ctx context.Context, key domain.TaskKey, postID int64) error {
	task, err := t.load(ctx, key)
	if err != nil {
		return err
	}
	if task.State == domain.StatePublished {
		return nil
	}
	if err := task.Transition(domain.StatePublished, t.now().UTC()); err != nil {
		return err
	}
	task.PostID = postID
	task.LastError = ""
	if err := t.store.Save(ctx, *task); err != nil {
		return fmt.Errorf("save task %s: %w", key, err)
	}
	t.log("task published", key, "post_id", postID)
	return nil
}

// MarkPublishFailed records a publish attempt that did not land.
func (t *Tracker) MarkPublishFailed(ctx context.Context, key domain.TaskKey, reason string) error {
	return t.advance(ctx, key, domain.StatePublishFailed, func(task *domain.GenerationTask) {
		task.LastError = reason
	})
}

// RetryPublish moves a publish_failed task back to validated so the
// next publish pass picks it up again.
func (t *Tracker) RetryPublish(ctx context.Context, key domain.TaskKey) error {
	return t.advance(ctx, key, domain.StateValidated, nil)
}

// MarkFailed burns the remaining retry budget, parking the task until
// an operator resets it.
func (t *Tracker) MarkFailed(ctx context.Context, key domain.TaskKey, reason string) error {
	task, err := t.load(ctx, key)
	if err != nil {
		return err
	}
	task.Retries = t.maxRetries
	task.LastError = reason
	task.UpdatedAt = t.now().UTC()
	if err := t.store.Save(ctx, *task); err != nil {
		return fmt.Errorf("save task %s: %w", key, err)
	}
	t.log("task parked", key, "reason", reason)
	return nil
}

// Pending returns tasks still waiting for a draft, oldest first,
// excluding ones that spent their retry budget. limit <= 0 means all.
func (t *Tracker) Pending(ctx context.Context, limit int) ([]domain.GenerationTask, error) {
	tasks, err := t.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var pending []domain.GenerationTask
	for _, task := range tasks {
		if task.State != domain.StatePending || task.Retries >= t.maxRetries {
			continue
		}
		pending = append(pending, task)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// InState returns every task currently in the given state.
func (t *Tracker) InState(ctx context.Context, state domain.TaskState) ([]domain.GenerationTask, error) {
	tasks, err := t.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var matched []domain.GenerationTask
	for _, task := range tasks {
		if task.State == state {
			matched = append(matched, task)
		}
	}
	return matched, nil
}

// StatusSummary is the aggregate view the status command renders.
type StatusSummary struct {
	Total   int
	ByState map[domain.TaskState]int
	ByCity  map[string]int
	ByVibe  map[string]int
	Recent  []domain.GenerationTask
}

// Summary aggregates counts over the whole store. Recent holds the five
// most recently updated tasks.
func (t *Tracker) Summary(ctx context.Context) (StatusSummary, error) {
	tasks, err := t.store.List(ctx)
	if err != nil {
		return StatusSummary{}, fmt.Errorf("list tasks: %w", err)
	}

	summary := StatusSummary{
		Total:   len(tasks),
		ByState: make(map[domain.TaskState]int),
		ByCity:  make(map[string]int),
		ByVibe:  make(map[string]int),
	}
	for _, task := range tasks {
		summary.ByState[task.State]++
		summary.ByCity[task.Key.City]++
		summary.ByVibe[task.Key.Vibe]++
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
	})
	if len(tasks) > 5 {
		tasks = tasks[:5]
	}
	summary.Recent = tasks
	return summary, nil
}

// ResetFailed clears the retry counter on exhausted tasks, optionally
// scoped to a city or vibe, and returns how many were reset.
func (t *Tracker) ResetFailed(ctx context.Context, city, vibe string) (int, error) {
	tasks, err := t.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tasks: %w", err)
	}

	reset := 0
	for _, task := range tasks {
		if task.Retries < t.maxRetries || task.State == domain.StatePublished {
			continue
		}
		if city != "" && task.Key.City != city {
			continue
		}
		if vibe != "" && task.Key.Vibe != vibe {
			continue
		}

		task.Retries = 0
		task.LastError = ""
		if task.State == domain.StateDrafted {
			if err := task.Transition(domain.StatePending, t.now().UTC()); err != nil {
				return reset, err
			}
		} else {
			task.UpdatedAt = t.now().UTC()
		}
		if err := t.store.Save(ctx, task); err != nil {
			return reset, fmt.Errorf("save task %s: %w", task.Key, err)
		}
		reset++
	}
	return reset, nil
}

func (t *Tracker) advance(ctx context.Context, key domain.TaskKey, next domain.TaskState, mutate func(*domain.GenerationTask)) error {
	task, err := t.load(ctx, key)
	if err != nil {
		return err
	}
	if err := task.Transition(next, t.now().UTC()); err != nil {
		return err
	}
	if mutate != nil {
		mutate(task)
	}
	if err := t.store.Save(ctx, *task); err != nil {
		return fmt.Errorf("save task %s: %w", key, err)
	}
	t.log("task moved to "+string(next), key)
	return nil
}

func (t *Tracker) load(ctx context.Context, key domain.TaskKey) (*domain.GenerationTask, error) {
	task, err := t.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", key, err)
	}
	if task == nil {
		return nil, fmt.Errorf("unknown task %s", key)
	}
	return task, nil
}

func (t *Tracker) log(msg string, key domain.TaskKey, args ...any) {
	if t.logger == nil {
		return
	}
	t.logger.Info(msg, append([]any{"task", key.String()}, args...)...)
}
