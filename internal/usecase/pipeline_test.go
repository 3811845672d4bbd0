package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ZipPicks/internal/domain"
	"ZipPicks/internal/infrastructure/archive"
	"ZipPicks/internal/infrastructure/storage"
	"ZipPicks/internal/prompt"
	"ZipPicks/internal/validate"
	"ZipPicks/internal/vibes"
)

type fakeSource struct {
	records []domain.RestaurantRecord
}

func (f *fakeSource) Load(context.Context) ([]domain.RestaurantRecord, []domain.RowError, error) {
	return f.records, nil, nil
}

type fakeDrafter struct {
	response string
	err      error
	calls    int
}

func (f *fakeDrafter) Draft(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakePublisher struct {
	postID int64
	err    error
	calls  int
}

func (f *fakePublisher) Publish(context.Context, domain.ValidatedDraft) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.postID, nil
}

func candidateRecords(n int) []domain.RestaurantRecord {
	records := make([]domain.RestaurantRecord, n)
	for i := range records {
		records[i] = domain.RestaurantRecord{
			Name:        fmt.Sprintf("Restaurant %c", 'A'+i),
			Address:     fmt.Sprintf("%d Main St", 100+i),
			City:        "Austin",
			CitySlug:    "austin",
			Rating:      4.5,
			PriceRange:  "$$",
			CuisineType: "american",
			Description: "romantic candlelit room",
		}
	}
	return records
}

func validDraftResponse(records []domain.RestaurantRecord) string {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "**%d. %s**\n", i+1, records[i].Name)
		sb.WriteString("- Why: Candlelit corners and a short menu that rewards trust.\n")
		sb.WriteString("- Must-try: The tasting menu\n")
		fmt.Fprintf(&sb, "- Address: %s, Austin, TX 78701\n", records[i].Address)
		sb.WriteString("- Price: $$\n\n")
	}
	return sb.String()
}

func testTaxonomy() *vibes.Taxonomy {
	return &vibes.Taxonomy{
		Vibes: map[string]domain.VibeDefinition{
			"date-night": {
				Slug:     "date-night",
				Name:     "Date Night",
				Keywords: []string{"romantic", "candlelit"},
			},
		},
		Cities: map[string]vibes.CityConfig{
			"austin": {Name: "Austin"},
		},
	}
}

func testEngine(t *testing.T) *prompt.Engine {
	t.Helper()
	dir := t.TempDir()
	versionDir := filepath.Join(dir, "v1.0")
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	tmpl := "Top 10 {{.Vibe}} in {{.City}} ({{.Date}})\n{{.VibeDescription}}\n{{.Restaurants}}\n"
	if err := os.WriteFile(filepath.Join(versionDir, "top10_prompt.txt"), []byte(tmpl), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	engine, err := prompt.NewEngine(dir, "1.0")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

type pipelineFixture struct {
	pipeline  *Pipeline
	tracker   *Tracker
	archive   *archive.Dir
	drafter   *fakeDrafter
	publisher *fakePublisher
}

func newFixture(t *testing.T, records []domain.RestaurantRecord, drafter *fakeDrafter, publisher *fakePublisher) pipelineFixture {
	t.Helper()

	tracker := NewTracker(storage.NewMemoryStore(), 3, nil)
	dir := archive.New(t.TempDir())
	pipeline := NewPipeline(PipelineDeps{
		Source:    &fakeSource{records: records},
		Taxonomy:  testTaxonomy(),
		Matcher:   vibes.Matcher{MinRating: 4.3, MaxCandidates: 50},
		Engine:    testEngine(t),
		Drafter:   drafter,
		Validator: validate.New(),
		Tracker:   tracker,
		Archive:   dir,
		Publisher: publisher,
	})
	return pipelineFixture{pipeline: pipeline, tracker: tracker, archive: dir, drafter: drafter, publisher: publisher}
}

func TestRunBatchValidatesDrafts(t *testing.T) {
	t.Parallel()

	records := candidateRecords(12)
	fix := newFixture(t, records, &fakeDrafter{response: validDraftResponse(records)}, nil)
	ctx := context.Background()

	summary, err := fix.pipeline.RunBatch(ctx, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), 0)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if summary.Created != 1 || summary.Processed != 1 || summary.Validated != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	validated, err := fix.tracker.InState(ctx, domain.StateValidated)
	if err != nil {
		t.Fatalf("in state: %v", err)
	}
	if len(validated) != 1 {
		t.Fatalf("expected 1 validated task, got %d", len(validated))
	}

	drafts, err := fix.archive.ListValidated()
	if err != nil {
		t.Fatalf("list validated: %v", err)
	}
	if len(drafts) != 1 || len(drafts[0].Entries) != 10 {
		t.Fatalf("validated draft not archived: %+v", drafts)
	}
}

func TestRunBatchIsIdempotent(t *testing.T) {
	t.Parallel()

	records := candidateRecords(12)
	fix := newFixture(t, records, &fakeDrafter{response: validDraftResponse(records)}, nil)
	ctx := context.Background()
	date := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	if _, err := fix.pipeline.RunBatch(ctx, date, 0); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	second, err := fix.pipeline.RunBatch(ctx, date, 0)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if second.Processed != 0 {
		t.Fatalf("completed tasks must not be reprocessed: %+v", second)
	}
	if fix.drafter.calls != 1 {
		t.Fatalf("expected 1 draft call, got %d", fix.drafter.calls)
	}
}

func TestRunBatchRejectsBadDraftAndRetries(t *testing.T) {
	t.Parallel()

	records := candidateRecords(12)
	bad := strings.Replace(validDraftResponse(records), records[0].Name, "Invented Bistro", 1)
	fix := newFixture(t, records, &fakeDrafter{response: bad}, nil)
	ctx := context.Background()
	date := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	summary, err := fix.pipeline.RunBatch(ctx, date, 0)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if summary.Failed != 1 || summary.Validated != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	pending, err := fix.tracker.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Retries != 1 {
		t.Fatalf("rejected task should be pending with one retry, got %+v", pending)
	}
}

func TestRunBatchSkipsEmptyCandidateSets(t *testing.T) {
	t.Parallel()

	// No record matches the vibe keywords or attributes.
	records := []domain.RestaurantRecord{
		{Name: "Plain Diner", Address: "1 Main St", City: "Austin", CitySlug: "austin", Rating: 4.6, PriceRange: "$", CuisineType: "diner"},
	}
	drafter := &fakeDrafter{response: "never used"}
	fix := newFixture(t, records, drafter, nil)
	ctx := context.Background()

	summary, err := fix.pipeline.RunBatch(ctx, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), 0)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected 1 skipped task, got %+v", summary)
	}
	if drafter.calls != 0 {
		t.Fatal("drafter must not be called without candidates")
	}

	pending, err := fix.tracker.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("skipped task must not stay pending: %+v", pending)
	}
}

func TestPublishValidated(t *testing.T) {
	t.Parallel()

	records := candidateRecords(12)
	publisher := &fakePublisher{postID: 321}
	fix := newFixture(t, records, &fakeDrafter{response: validDraftResponse(records)}, publisher)
	ctx := context.Background()

	if _, err := fix.pipeline.RunBatch(ctx, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), 0); err != nil {
		t.Fatalf("run batch: %v", err)
	}

	summary, err := fix.pipeline.PublishValidated(ctx)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if summary.Published != 1 || publisher.calls != 1 {
		t.Fatalf("unexpected publish summary: %+v (calls %d)", summary, publisher.calls)
	}

	published, err := fix.tracker.InState(ctx, domain.StatePublished)
	if err != nil {
		t.Fatalf("in state: %v", err)
	}
	if len(published) != 1 || published[0].PostID != 321 {
		t.Fatalf("unexpected published task: %+v", published)
	}

	// A second pass finds nothing left to publish.
	again, err := fix.pipeline.PublishValidated(ctx)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if again.Published != 0 || publisher.calls != 1 {
		t.Fatalf("published task republished: %+v (calls %d)", again, publisher.calls)
	}
}

func TestPublishFailureMarksTask(t *testing.T) {
	t.Parallel()

	records := candidateRecords(12)
	publisher := &fakePublisher{err: fmt.Errorf("wordpress 502")}
	fix := newFixture(t, records, &fakeDrafter{response: validDraftResponse(records)}, publisher)
	ctx := context.Background()

	if _, err := fix.pipeline.RunBatch(ctx, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), 0); err != nil {
		t.Fatalf("run batch: %v", err)
	}

	summary, err := fix.pipeline.PublishValidated(ctx)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	failed, err := fix.tracker.InState(ctx, domain.StatePublishFailed)
	if err != nil {
		t.Fatalf("in state: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected publish_failed task, got %+v", failed)
	}

	// The next pass retries the stuck task.
	publisher.err = nil
	publisher.postID = 7
	retry, err := fix.pipeline.PublishValidated(ctx)
	if err != nil {
		t.Fatalf("retry publish: %v", err)
	}
	if retry.Published != 1 {
		t.Fatalf("expected retry to publish, got %+v", retry)
	}
}

func TestValidatePendingUsesArchivedResponses(t *testing.T) {
	t.Parallel()

	records := candidateRecords(12)
	fix := newFixture(t, records, &fakeDrafter{response: validDraftResponse(records)}, nil)
	ctx := context.Background()

	key := domain.TaskKey{City: "austin", Vibe: "date-night", Date: "2026-03-01", PromptVersion: "1.0"}
	if _, err := fix.tracker.Ensure(ctx, key); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := fix.tracker.MarkDrafted(ctx, key); err != nil {
		t.Fatalf("drafted: %v", err)
	}
	if _, err := fix.archive.SaveResponse(key, validDraftResponse(records)); err != nil {
		t.Fatalf("save response: %v", err)
	}

	summary, err := fix.pipeline.ValidatePending(ctx)
	if err != nil {
		t.Fatalf("validate pending: %v", err)
	}
	if summary.Validated != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if fix.drafter.calls != 0 {
		t.Fatal("validate-pending must not regenerate drafts")
	}
}

func TestRunSingleUnknownVibe(t *testing.T) {
	t.Parallel()

	fix := newFixture(t, candidateRecords(12), &fakeDrafter{}, nil)
	err := fix.pipeline.RunSingle(context.Background(), "austin", "no-such-vibe", time.Now())
	if err == nil {
		t.Fatal("expected error for unknown vibe")
	}
}
