package vibes

import (
	"sort"
	"strings"

	"ZipPicks/internal/domain"
)

// Matcher builds candidate sets for (city, vibe) pairs. Input records
// are never mutated.
type Matcher struct {
	MinRating     float64
	MaxCandidates int
}

// BuildCandidates filters records down to the ones qualifying for the
// vibe in the given city and ranks them. A record qualifies when it
// passes the price and cuisine filters AND matches at least one filter
// keyword or attribute tag. The result may hold fewer than ten records;
// deciding what to do about that is the caller's policy.
func (m Matcher) BuildCandidates(records []domain.RestaurantRecord, vibe domain.VibeDefinition, citySlug string, city CityConfig) domain.CandidateSet {
	type scored struct {
		record   domain.RestaurantRecord
		keywords int
	}

	keywords := make([]string, 0, len(vibe.Keywords)+len(vibe.Filters.Keywords))
	keywords = append(keywords, vibe.Keywords...)
	keywords = append(keywords, vibe.Filters.Keywords...)

	var qualified []scored
	for _, r := range records {
		if !cityMatches(r, citySlug, city) {
			continue
		}
		if r.Rating < m.MinRating {
			continue
		}
		if !priceAllowed(r, vibe.Filters.PriceRanges) {
			continue
		}
		if !cuisineAllowed(r, vibe.Filters.Cuisines) {
			continue
		}

		hits := keywordHits(r, keywords)
		if hits == 0 && !attributeMatches(r, vibe.Attributes) {
			continue
		}
		qualified = append(qualified, scored{record: r, keywords: hits})
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		a, b := qualified[i], qualified[j]
		if a.record.Rating != b.record.Rating {
			return a.record.Rating > b.record.Rating
		}
		if a.keywords != b.keywords {
			return a.keywords > b.keywords
		}
		return a.record.Name < b.record.Name
	})

	if m.MaxCandidates > 0 && len(qualified) > m.MaxCandidates {
		qualified = qualified[:m.MaxCandidates]
	}

	set := domain.CandidateSet{City: citySlug, Vibe: vibe.Slug}
	for _, q := range qualified {
		set.Records = append(set.Records, q.record)
	}
	return set
}

// cityMatches accepts a record whose slug equals the target or whose
// original city spelling is one of the configured alternates.
func cityMatches(r domain.RestaurantRecord, slug string, city CityConfig) bool {
	if r.CitySlug == slug {
		return true
	}
	for _, alt := range city.AltNames {
		if strings.EqualFold(r.City, alt) {
			return true
		}
	}
	return false
}

func priceAllowed(r domain.RestaurantRecord, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, p := range allowed {
		if r.PriceRange == p {
			return true
		}
	}
	return false
}

func cuisineAllowed(r domain.RestaurantRecord, cuisines []string) bool {
	if len(cuisines) == 0 {
		return true
	}
	have := strings.ToLower(r.CuisineType)
	for _, c := range cuisines {
		if strings.Contains(have, strings.ToLower(c)) {
			return true
		}
	}
	return false
}

// keywordHits counts case-insensitive keyword occurrences across the
// record's name and description.
func keywordHits(r domain.RestaurantRecord, keywords []string) int {
	if len(keywords) == 0 {
		return 0
	}
	haystack := strings.ToLower(r.Name + " " + r.Description)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			hits++
		}
	}
	return hits
}

func attributeMatches(r domain.RestaurantRecord, tags []string) bool {
	for _, tag := range tags {
		if r.HasAttribute(tag) {
			return true
		}
	}
	return false
}
