package domain

import (
	"fmt"
	"strings"
)

// DataSourceError means the input file is unusable as a whole: missing,
// undecodable, or structurally broken. Fatal for the run.
type DataSourceError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DataSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data source %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("data source %s: %s", e.Path, e.Reason)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// RowError marks a single unusable input row. The row is skipped and
// counted; the run continues.
type RowError struct {
	Line   int
	Field  string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: field %q: %s", e.Line, e.Field, e.Reason)
}

// TemplateNotFoundError means the requested prompt version does not
// exist. Fatal for the task, never silently substituted.
type TemplateNotFoundError struct {
	Version string
	Dir     string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("prompt template version %s not found under %s", e.Version, e.Dir)
}

// EntryCountError means the draft did not contain exactly ten entries.
type EntryCountError struct {
	Got int
}

func (e *EntryCountError) Error() string {
	return fmt.Sprintf("expected 10 entries, got %d", e.Got)
}

// RankSequenceError means entry ranks are not the exact set 1..10.
type RankSequenceError struct {
	Ranks []int
}

func (e *RankSequenceError) Error() string {
	return fmt.Sprintf("ranks must form 1..10, got %v", e.Ranks)
}

// FieldValidationError reports a bad or missing field on one entry.
type FieldValidationError struct {
	Entry  int
	Field  string
	Reason string
}

func (e *FieldValidationError) Error() string {
	return fmt.Sprintf("entry #%d: field %q: %s", e.Entry, e.Field, e.Reason)
}

// FabricatedEntryError means a drafted restaurant is not traceable to
// the candidate set the prompt was built from.
type FabricatedEntryError struct {
	Entry int
	Name  string
}

func (e *FabricatedEntryError) Error() string {
	return fmt.Sprintf("entry #%d: restaurant %q is not in the candidate set", e.Entry, e.Name)
}

// ValidationFailure aggregates every problem found in one draft so a
// single redraft round can address all of them.
type ValidationFailure struct {
	Problems []error
}

func (e *ValidationFailure) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("draft rejected with %d problem(s): %s", len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ValidationFailure) Unwrap() []error { return e.Problems }

// Reasons returns the problem messages for persistence and reporting.
func (e *ValidationFailure) Reasons() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.Error()
	}
	return out
}

// PublishError reports a failed external publish call.
type PublishError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *PublishError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("publish failed with status %d: %s: %v", e.StatusCode, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("publish failed: %s: %v", e.Reason, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("publish failed with status %d: %s", e.StatusCode, e.Reason)
	default:
		return fmt.Sprintf("publish failed: %s", e.Reason)
	}
}

func (e *PublishError) Unwrap() error { return e.Err }
