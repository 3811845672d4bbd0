package domain

import "strings"

// Price tiers accepted everywhere in the pipeline.
const (
	PriceBudget   = "$"
	PriceModerate = "$$"
	PriceUpscale  = "$$$"
	PriceLuxury   = "$$$$"
)

// PriceRanges lists the four allowed price symbols in ascending order.
var PriceRanges = []string{PriceBudget, PriceModerate, PriceUpscale, PriceLuxury}

// ValidPrice reports whether s is exactly one of the four allowed symbols.
func ValidPrice(s string) bool {
	for _, p := range PriceRanges {
		if s == p {
			return true
		}
	}
	return false
}

// RestaurantRecord is a normalized restaurant row. Created by the data
// source adapter and immutable for the rest of a pipeline run.
type RestaurantRecord struct {
	Name           string
	Address        string
	City           string
	CitySlug       string
	Rating         float64
	PriceRange     string
	CuisineType    string
	Neighborhood   string
	Description    string
	VibeAttributes []string
}

// HasAttribute reports whether the record carries the given attribute tag.
func (r RestaurantRecord) HasAttribute(tag string) bool {
	for _, a := range r.VibeAttributes {
		if strings.EqualFold(a, tag) {
			return true
		}
	}
	return false
}

// VibeFilters is the predicate portion of a vibe definition. An empty
// list means the dimension is unconstrained.
type VibeFilters struct {
	PriceRanges []string `yaml:"price_ranges"`
	Cuisines    []string `yaml:"cuisines"`
	Keywords    []string `yaml:"keywords"`
}

// VibeDefinition names a dining experience and the rules a restaurant
// must satisfy to qualify for it. Loaded once from config, read-only.
type VibeDefinition struct {
	Slug        string      `yaml:"-"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Keywords    []string    `yaml:"keywords"`
	Filters     VibeFilters `yaml:"filters"`
	Attributes  []string    `yaml:"attributes"`
}

// CandidateSet holds the restaurants eligible for one (city, vibe)
// prompt, in ranked order. May be empty, which signals insufficient data.
type CandidateSet struct {
	City    string
	Vibe    string
	Records []RestaurantRecord
}

// Names returns the candidate restaurant names in ranked order.
func (c CandidateSet) Names() []string {
	names := make([]string, len(c.Records))
	for i, r := range c.Records {
		names[i] = r.Name
	}
	return names
}

// ValidatedEntry is one accepted line item of a Top 10 draft.
type ValidatedEntry struct {
	Rank       int    `json:"rank"`
	Name       string `json:"name"`
	WhyPerfect string `json:"why_perfect"`
	MustTry    string `json:"must_try"`
	Address    string `json:"address"`
	PriceRange string `json:"price_range"`
}

// TitleFromSlug renders a slug like "san-francisco" as "San Francisco".
func TitleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == ' ' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
