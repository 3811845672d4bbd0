package domain

import "testing"

func TestValidPrice(t *testing.T) {
	t.Parallel()

	for _, p := range PriceRanges {
		if !ValidPrice(p) {
			t.Fatalf("%q should be valid", p)
		}
	}
	for _, p := range []string{"", "$$$$$", "cheap", "$ "} {
		if ValidPrice(p) {
			t.Fatalf("%q should be invalid", p)
		}
	}
}

func TestTitleFromSlug(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"san-francisco": "San Francisco",
		"date-night":    "Date Night",
		"austin":        "Austin",
		"new_york city": "New York City",
	}
	for in, want := range cases {
		if got := TitleFromSlug(in); got != want {
			t.Fatalf("TitleFromSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHasAttribute(t *testing.T) {
	t.Parallel()

	r := RestaurantRecord{VibeAttributes: []string{"romantic", "Outdoor-Seating"}}
	if !r.HasAttribute("ROMANTIC") {
		t.Fatal("attribute match should ignore case")
	}
	if r.HasAttribute("family-friendly") {
		t.Fatal("unexpected attribute match")
	}
}
