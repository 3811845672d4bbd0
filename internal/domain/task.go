package domain

import (
	"fmt"
	"time"
)

// TaskState enumerates the lifecycle of a generation task.
type TaskState string

const (
	StatePending       TaskState = "pending"
	StateDrafted       TaskState = "drafted"
	StateValidated     TaskState = "validated"
	StatePublishFailed TaskState = "publish_failed"
	StatePublished     TaskState = "published"
)

// transitions is the allowed forward edges per state. Published is
// terminal; drafted falls back to pending on a failed validation and
// publish_failed returns to validated on a retry request.
var transitions = map[TaskState][]TaskState{
	StatePending:       {StateDrafted},
	StateDrafted:       {StateValidated, StatePending},
	StateValidated:     {StatePublished, StatePublishFailed},
	StatePublishFailed: {StateValidated},
	StatePublished:     {},
}

// TaskKey identifies a generation task across runs.
type TaskKey struct {
	City          string `json:"city"`
	Vibe          string `json:"vibe"`
	Date          string `json:"date"`
	PromptVersion string `json:"prompt_version"`
}

// String renders the key in city/vibe/date@version form for logs.
func (k TaskKey) String() string {
	return fmt.Sprintf("%s/%s/%s@v%s", k.City, k.Vibe, k.Date, k.PromptVersion)
}

// GenerationTask is the unit of work tracked from pending to published.
// Task state is owned by the tracker; other components never mutate it.
type GenerationTask struct {
	Key       TaskKey   `json:"key"`
	State     TaskState `json:"state"`
	Retries   int       `json:"retries"`
	LastError string    `json:"last_error,omitempty"`
	PostID    int64     `json:"post_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanTransition reports whether moving from the current state to next is
// a legal edge of the lifecycle.
func (t *GenerationTask) CanTransition(next TaskState) bool {
	for _, s := range transitions[t.State] {
		if s == next {
			return true
		}
	}
	return false
}

// Transition applies a state change, refusing illegal edges. Moving a
// published task anywhere is rejected so completed work is never redone.
func (t *GenerationTask) Transition(next TaskState, now time.Time) error {
	if t.State == next {
		return nil
	}
	if !t.CanTransition(next) {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.Key, t.State, next)
	}
	t.State = next
	t.UpdatedAt = now
	return nil
}

// NewTask creates a pending task for the given key.
func NewTask(key TaskKey, now time.Time) GenerationTask {
	return GenerationTask{
		Key:       key,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidatedDraft is the publishable artifact: a validated Top 10 list
// plus the metadata the publisher needs.
type ValidatedDraft struct {
	Key         TaskKey          `json:"key"`
	CityTitle   string           `json:"city_title"`
	VibeTitle   string           `json:"vibe_title"`
	VibeSlugs   []string         `json:"vibes"`
	Entries     []ValidatedEntry `json:"restaurants"`
	ValidatedAt time.Time        `json:"validated_at"`
}
