package ports

import (
	"context"

	"ZipPicks/internal/domain"
)

// RecordSource loads and normalizes raw restaurant rows. Rows that fail
// normalization are returned separately so the caller can count them.
type RecordSource interface {
	Load(ctx context.Context) ([]domain.RestaurantRecord, []domain.RowError, error)
}

// Drafter turns a composed prompt into free text. The generator is
// opaque: the pipeline only sees the returned string.
type Drafter interface {
	Draft(ctx context.Context, prompt string) (string, error)
}

// TaskStore persists generation tasks across process runs. Get returns
// nil when the key is unknown. Save must overwrite by key.
type TaskStore interface {
	Get(ctx context.Context, key domain.TaskKey) (*domain.GenerationTask, error)
	Save(ctx context.Context, task domain.GenerationTask) error
	List(ctx context.Context) ([]domain.GenerationTask, error)
}

// Publisher pushes a validated draft to the external CMS and returns
// the created resource identifier.
type Publisher interface {
	Publish(ctx context.Context, draft domain.ValidatedDraft) (int64, error)
}

// Archive keeps the on-disk paper trail of a run: composed prompts, raw
// generator responses, validated drafts, and rejected drafts.
type Archive interface {
	SavePrompt(key domain.TaskKey, prompt string) (string, error)
	SaveResponse(key domain.TaskKey, response string) (string, error)
	LoadResponse(key domain.TaskKey) (string, error)
	SaveValidated(draft domain.ValidatedDraft) (string, error)
	SaveFailed(key domain.TaskKey, response string, reasons []string) (string, error)
	ListValidated() ([]domain.ValidatedDraft, error)
}
