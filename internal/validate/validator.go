package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"ZipPicks/internal/domain"
)

const (
	expectedEntries = 10
	minWhyLength    = 20
	maxWhyLength    = 500
	minMustTry      = 5
	maxMustTry      = 100

	// Bounded edit distance for provenance matching; generators tend to
	// drop accents or apostrophes rather than invent whole names.
	maxNameDistance = 2
)

var digitRE = regexp.MustCompile(`\d`)

// Validator turns a raw draft into exactly ten validated entries or a
// failure naming every problem found.
type Validator struct {
	markers []*regexp.Regexp
}

// Option tunes the validator.
type Option func(*Validator)

// WithEntryMarkers replaces the entry-boundary patterns. The draft
// format is generator-dependent and deliberately not hard-coded.
func WithEntryMarkers(markers []*regexp.Regexp) Option {
	return func(v *Validator) { v.markers = markers }
}

// New builds a validator with the default marker chain.
func New(opts ...Option) *Validator {
	v := &Validator{markers: DefaultEntryMarkers}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate parses raw generator output and checks it against the
// candidate set the prompt was built from. On success the entries come
// back sorted by rank 1..10. On failure every entry-level and
// batch-level problem is reported, never just the first.
func (v *Validator) Validate(raw string, candidates domain.CandidateSet) ([]domain.ValidatedEntry, error) {
	entries := parseEntries(strings.TrimSpace(raw), v.markers)

	var problems []error

	if len(entries) != expectedEntries {
		problems = append(problems, &domain.EntryCountError{Got: len(entries)})
	}

	if len(entries) > 0 {
		if err := checkRanks(entries); err != nil {
			problems = append(problems, err)
		}
		problems = append(problems, checkDuplicates(entries)...)
		for i, entry := range entries {
			problems = append(problems, checkFields(entry, i+1)...)
		}
		problems = append(problems, checkProvenance(entries, candidates)...)
	}

	if len(problems) > 0 {
		return nil, &domain.ValidationFailure{Problems: problems}
	}

	validated := make([]domain.ValidatedEntry, len(entries))
	for i, e := range entries {
		validated[i] = domain.ValidatedEntry{
			Rank:       e.Rank,
			Name:       e.Name,
			WhyPerfect: e.Why,
			MustTry:    e.MustTry,
			Address:    e.Address,
			PriceRange: e.Price,
		}
	}
	sort.Slice(validated, func(i, j int) bool { return validated[i].Rank < validated[j].Rank })
	return validated, nil
}

// checkRanks requires the ranks to be exactly the set 1..10.
func checkRanks(entries []rawEntry) error {
	ranks := make([]int, len(entries))
	seen := map[int]bool{}
	ok := len(entries) == expectedEntries
	for i, e := range entries {
		ranks[i] = e.Rank
		if e.Rank < 1 || e.Rank > expectedEntries || seen[e.Rank] {
			ok = false
		}
		seen[e.Rank] = true
	}
	if !ok {
		return &domain.RankSequenceError{Ranks: ranks}
	}
	return nil
}

func checkDuplicates(entries []rawEntry) []error {
	var problems []error
	seen := map[string]int{}
	for i, e := range entries {
		key := normalizeName(e.Name)
		if key == "" {
			continue
		}
		if first, dup := seen[key]; dup {
			problems = append(problems, &domain.FieldValidationError{
				Entry:  i + 1,
				Field:  "name",
				Reason: fmt.Sprintf("duplicate of entry #%d (%s)", first, e.Name),
			})
			continue
		}
		seen[key] = i + 1
	}
	return problems
}

func checkFields(e rawEntry, index int) []error {
	var problems []error

	missing := func(field string) {
		problems = append(problems, &domain.FieldValidationError{Entry: index, Field: field, Reason: "missing required field"})
	}

	if e.Name == "" {
		missing("name")
	}

	switch n := len(e.Why); {
	case n == 0:
		missing("why_perfect")
	case n < minWhyLength:
		problems = append(problems, &domain.FieldValidationError{
			Entry: index, Field: "why_perfect",
			Reason: fmt.Sprintf("too short (%d chars, need %d+)", n, minWhyLength),
		})
	case n > maxWhyLength:
		problems = append(problems, &domain.FieldValidationError{
			Entry: index, Field: "why_perfect",
			Reason: fmt.Sprintf("too long (%d chars, max %d)", n, maxWhyLength),
		})
	}

	switch n := len(e.MustTry); {
	case n == 0:
		missing("must_try")
	case n < minMustTry:
		problems = append(problems, &domain.FieldValidationError{
			Entry: index, Field: "must_try",
			Reason: fmt.Sprintf("too short (%d chars, need %d+)", n, minMustTry),
		})
	case n > maxMustTry:
		problems = append(problems, &domain.FieldValidationError{
			Entry: index, Field: "must_try",
			Reason: fmt.Sprintf("too long (%d chars, max %d)", n, maxMustTry),
		})
	}

	switch {
	case e.Address == "":
		missing("address")
	case !digitRE.MatchString(e.Address):
		problems = append(problems, &domain.FieldValidationError{
			Entry: index, Field: "address", Reason: "missing street number",
		})
	case !strings.Contains(e.Address, ",") && len(strings.Fields(e.Address)) < 4:
		problems = append(problems, &domain.FieldValidationError{
			Entry: index, Field: "address", Reason: "looks incomplete",
		})
	}

	switch {
	case e.Price == "":
		missing("price_range")
	case !domain.ValidPrice(e.Price):
		problems = append(problems, &domain.FieldValidationError{
			Entry: index, Field: "price_range",
			Reason: fmt.Sprintf("invalid price range %q (must be $, $$, $$$, or $$$$)", e.Price),
		})
	}

	return problems
}

// checkProvenance requires every drafted name to trace back to the
// candidate set: normalized exact match first, bounded edit distance as
// a fallback for minor spelling drift.
func checkProvenance(entries []rawEntry, candidates domain.CandidateSet) []error {
	normalized := make([]string, len(candidates.Records))
	for i, r := range candidates.Records {
		normalized[i] = normalizeName(r.Name)
	}

	var problems []error
	for i, e := range entries {
		if e.Name == "" {
			continue
		}
		if !traceable(normalizeName(e.Name), normalized) {
			problems = append(problems, &domain.FabricatedEntryError{Entry: i + 1, Name: e.Name})
		}
	}
	return problems
}

func traceable(name string, candidates []string) bool {
	for _, c := range candidates {
		if name == c {
			return true
		}
	}
	for _, c := range candidates {
		if levenshtein.Distance(name, c, nil) <= maxNameDistance {
			return true
		}
	}
	return false
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
