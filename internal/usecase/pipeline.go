package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ZipPicks/internal/domain"
	"ZipPicks/internal/ports"
	"ZipPicks/internal/prompt"
	"ZipPicks/internal/vibes"
)

// Pipeline runs the generation flow end to end: candidates, prompt,
// draft, validation, archive, publish. Each stage talks to a port so
// every external system can be swapped in tests.
type Pipeline struct {
	source    ports.RecordSource
	taxonomy  *vibes.Taxonomy
	matcher   vibes.Matcher
	engine    *prompt.Engine
	drafter   ports.Drafter
	validator entryValidator
	tracker   *Tracker
	archive   ports.Archive
	publisher ports.Publisher
	logger    *slog.Logger
}

// entryValidator is what the pipeline needs from the validation stage.
type entryValidator interface {
	Validate(raw string, candidates domain.CandidateSet) ([]domain.ValidatedEntry, error)
}

// PipelineDeps carries everything the pipeline needs. Drafter and
// Publisher may be nil; the stages that need them fail per task instead
// of at construction, so status and validate-only runs work offline.
type PipelineDeps struct {
	Source    ports.RecordSource
	Taxonomy  *vibes.Taxonomy
	Matcher   vibes.Matcher
	Engine    *prompt.Engine
	Drafter   ports.Drafter
	Validator entryValidator
	Tracker   *Tracker
	Archive   ports.Archive
	Publisher ports.Publisher
	Logger    *slog.Logger
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:    deps.Source,
		taxonomy:  deps.Taxonomy,
		matcher:   deps.Matcher,
		engine:    deps.Engine,
		drafter:   deps.Drafter,
		validator: deps.Validator,
		tracker:   deps.Tracker,
		archive:   deps.Archive,
		publisher: deps.Publisher,
		logger:    deps.Logger,
	}
}

// RunSummary reports what one batch run did.
type RunSummary struct {
	Created   int
	Processed int
	Validated int
	Failed    int
	Skipped   int
}

// RunBatch ensures a task for every city and vibe combination, then
// processes up to limit pending tasks. Tasks already past pending are
// left alone, so re-running a batch is safe.
func (p *Pipeline) RunBatch(ctx context.Context, date time.Time, limit int) (RunSummary, error) {
	records, rowErrors, err := p.source.Load(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load records: %w", err)
	}
	if len(rowErrors) > 0 {
		p.info("rows skipped during load", "count", len(rowErrors))
	}

	var summary RunSummary
	dateStr := date.Format("2006-01-02")
	for _, city := range p.cities(records) {
		for _, vibeSlug := range p.taxonomy.VibeSlugs() {
			key := domain.TaskKey{City: city, Vibe: vibeSlug, Date: dateStr, PromptVersion: p.engine.Version()}
			task, err := p.tracker.Ensure(ctx, key)
			if err != nil {
				return summary, err
			}
			if task.State == domain.StatePending && task.CreatedAt.Equal(task.UpdatedAt) && task.Retries == 0 {
				summary.Created++
			}
		}
	}

	pending, err := p.tracker.Pending(ctx, limit)
	if err != nil {
		return summary, err
	}
	for _, task := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++
		switch err := p.ProcessTask(ctx, task.Key, records); {
		case err == nil:
			summary.Validated++
		case errors.As(err, new(*domain.ValidationFailure)):
			summary.Failed++
		case errors.Is(err, errNoCandidates):
			summary.Skipped++
		default:
			return summary, err
		}
	}
	return summary, nil
}

// RunSingle processes exactly one city and vibe pair, creating the task
// if needed.
func (p *Pipeline) RunSingle(ctx context.Context, city, vibe string, date time.Time) error {
	if _, err := p.taxonomy.Vibe(vibe); err != nil {
		return err
	}

	records, _, err := p.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	key := domain.TaskKey{City: city, Vibe: vibe, Date: date.Format("2006-01-02"), PromptVersion: p.engine.Version()}
	task, err := p.tracker.Ensure(ctx, key)
	if err != nil {
		return err
	}
	if task.State != domain.StatePending {
		p.info("task already past pending", "task", key.String(), "state", string(task.State))
		return nil
	}
	return p.ProcessTask(ctx, key, records)
}

var errNoCandidates = errors.New("no candidates matched")

// ProcessTask drives one task from pending through validation. A draft
// that fails validation sends the task back to pending with the retry
// counted; an empty candidate set parks the task permanently since
// retrying cannot grow the dataset.
func (p *Pipeline) ProcessTask(ctx context.Context, key domain.TaskKey, records []domain.RestaurantRecord) error {
	vibe, err := p.taxonomy.Vibe(key.Vibe)
	if err != nil {
		return err
	}

	candidates := p.matcher.BuildCandidates(records, vibe, key.City, p.taxonomy.Cities[key.City])
	if len(candidates.Records) == 0 {
		reason := fmt.Sprintf("no restaurants in %s match vibe %s", key.City, key.Vibe)
		p.warn("skipping task", "task", key.String(), "reason", reason)
		if err := p.tracker.MarkFailed(ctx, key, reason); err != nil {
			return err
		}
		return errNoCandidates
	}

	date, err := time.Parse("2006-01-02", key.Date)
	if err != nil {
		return fmt.Errorf("task %s: bad date: %w", key, err)
	}

	composed, err := p.engine.Compose(key.City, vibe, candidates, date)
	if err != nil {
		return err
	}
	if _, err := p.archive.SavePrompt(key, composed); err != nil {
		return err
	}

	if p.drafter == nil {
		return fmt.Errorf("task %s: no draft generator configured", key)
	}
	response, err := p.drafter.Draft(ctx, composed)
	if err != nil {
		return fmt.Errorf("task %s: draft: %w", key, err)
	}
	if err := p.tracker.MarkDrafted(ctx, key); err != nil {
		return err
	}
	if _, err := p.archive.SaveResponse(key, response); err != nil {
		return err
	}

	return p.validateDraft(ctx, key, vibe, candidates, response)
}

// ValidatePending re-validates archived responses for drafted tasks.
// Nothing is regenerated; this is how a validator fix or a new marker
// grammar gets applied to drafts already on disk.
func (p *Pipeline) ValidatePending(ctx context.Context) (RunSummary, error) {
	records, _, err := p.source.Load(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load records: %w", err)
	}

	drafted, err := p.tracker.InState(ctx, domain.StateDrafted)
	if err != nil {
		return RunSummary{}, err
	}

	var summary RunSummary
	for _, task := range drafted {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		vibe, err := p.taxonomy.Vibe(task.Key.Vibe)
		if err != nil {
			p.warn("skipping task with unknown vibe", "task", task.Key.String())
			summary.Skipped++
			continue
		}
		response, err := p.archive.LoadResponse(task.Key)
		if err != nil {
			p.warn("no archived response", "task", task.Key.String(), "error", err)
			summary.Skipped++
			continue
		}

		summary.Processed++
		candidates := p.matcher.BuildCandidates(records, vibe, task.Key.City, p.taxonomy.Cities[task.Key.City])
		switch err := p.validateDraft(ctx, task.Key, vibe, candidates, response); {
		case err == nil:
			summary.Validated++
		case errors.As(err, new(*domain.ValidationFailure)):
			summary.Failed++
		default:
			return summary, err
		}
	}
	return summary, nil
}

func (p *Pipeline) validateDraft(ctx context.Context, key domain.TaskKey, vibe domain.VibeDefinition, candidates domain.CandidateSet, response string) error {
	entries, err := p.validator.Validate(response, candidates)
	if err != nil {
		var failure *domain.ValidationFailure
		if errors.As(err, &failure) {
			reasons := failure.Reasons()
			if _, saveErr := p.archive.SaveFailed(key, response, reasons); saveErr != nil {
				return saveErr
			}
			if markErr := p.tracker.MarkValidationFailed(ctx, key, strings.Join(reasons, "; ")); markErr != nil {
				return markErr
			}
			p.warn("draft rejected", "task", key.String(), "problems", len(reasons))
			return err
		}
		return err
	}

	draft := domain.ValidatedDraft{
		Key:         key,
		CityTitle:   domain.TitleFromSlug(key.City),
		VibeTitle:   vibe.Name,
		VibeSlugs:   []string{vibe.Slug},
		Entries:     entries,
		ValidatedAt: time.Now().UTC(),
	}
	if _, err := p.archive.SaveValidated(draft); err != nil {
		return err
	}
	if err := p.tracker.MarkValidated(ctx, key); err != nil {
		return err
	}
	p.info("draft validated", "task", key.String())
	return nil
}

// PublishSummary reports what one publish pass did.
type PublishSummary struct {
	Published int
	Failed    int
	Skipped   int
}

// PublishValidated pushes every validated draft whose task is still
// unpublished. Tasks stuck in publish_failed are retried first.
func (p *Pipeline) PublishValidated(ctx context.Context) (PublishSummary, error) {
	if p.publisher == nil {
		return PublishSummary{}, fmt.Errorf("no publisher configured")
	}

	retriable, err := p.tracker.InState(ctx, domain.StatePublishFailed)
	if err != nil {
		return PublishSummary{}, err
	}
	for _, task := range retriable {
		if err := p.tracker.RetryPublish(ctx, task.Key); err != nil {
			return PublishSummary{}, err
		}
	}

	validated, err := p.tracker.InState(ctx, domain.StateValidated)
	if err != nil {
		return PublishSummary{}, err
	}
	byKey := make(map[string]domain.TaskKey, len(validated))
	for _, task := range validated {
		byKey[task.Key.String()] = task.Key
	}

	drafts, err := p.archive.ListValidated()
	if err != nil {
		return PublishSummary{}, err
	}

	var summary PublishSummary
	for _, draft := range drafts {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		key, ok := byKey[draft.Key.String()]
		if !ok {
			summary.Skipped++
			continue
		}

		postID, err := p.publisher.Publish(ctx, draft)
		if err != nil {
			summary.Failed++
			if markErr := p.tracker.MarkPublishFailed(ctx, key, err.Error()); markErr != nil {
				return summary, markErr
			}
			p.warn("publish failed", "task", key.String(), "error", err)
			continue
		}
		if err := p.tracker.MarkPublished(ctx, key, postID); err != nil {
			return summary, err
		}
		summary.Published++
	}
	return summary, nil
}

// cities returns the batch city list: configured cities when present,
// otherwise every distinct city found in the data.
func (p *Pipeline) cities(records []domain.RestaurantRecord) []string {
	if slugs := p.taxonomy.CitySlugs(); len(slugs) > 0 {
		return slugs
	}

	seen := make(map[string]bool)
	var slugs []string
	for _, r := range records {
		if r.CitySlug != "" && !seen[r.CitySlug] {
			seen[r.CitySlug] = true
			slugs = append(slugs, r.CitySlug)
		}
	}
	sort.Strings(slugs)
	return slugs
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
