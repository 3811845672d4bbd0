package validate

import "testing"

func TestParseEntriesBoldMarkers(t *testing.T) {
	t.Parallel()

	text := `Some chatty intro from the generator.

**1. The Grey Door**
- Why: Dim lighting and a short, confident menu.
- Must-try: Duck confit
- Address: 12 W 5th St, Austin, TX
- Price: $$$

**2. Lucia**
- Why: Handmade pasta in a converted bungalow.
- Must-try: Cacio e pepe
- Address: 804 Lamar Blvd, Austin, TX
- Price: $$
`
	entries := parseEntries(text, DefaultEntryMarkers)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Rank != 1 || entries[0].Name != "The Grey Door" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Price != "$$" {
		t.Fatalf("unexpected price: %q", entries[1].Price)
	}
}

func TestParseEntriesHeadingAndPlainMarkers(t *testing.T) {
	t.Parallel()

	text := `### 1. First Place
Why: Good enough reasons all around here.
Price: $

2. Second Place
Why: Also quite good, honestly.
Price: $$
`
	entries := parseEntries(text, DefaultEntryMarkers)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "First Place" || entries[1].Name != "Second Place" {
		t.Fatalf("unexpected names: %q, %q", entries[0].Name, entries[1].Name)
	}
}

func TestParseEntriesWrappedFieldContinuation(t *testing.T) {
	t.Parallel()

	text := `**1. Casa Blanca**
- Why: The kind of room that makes an anniversary
  feel like an occasion worth dressing for.
- Price: $$$$
`
	entries := parseEntries(text, DefaultEntryMarkers)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	want := "The kind of room that makes an anniversary feel like an occasion worth dressing for."
	if entries[0].Why != want {
		t.Fatalf("continuation not joined: %q", entries[0].Why)
	}
}

func TestParseEntriesIgnoresTextOutsideEntries(t *testing.T) {
	t.Parallel()

	text := `I'd be happy to help! Here are my picks.

This line is filler before any entry.

**3. Solo Entry**
- Why: Stands alone in this draft.
- Price: $$

And a closing remark.`
	entries := parseEntries(text, DefaultEntryMarkers)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Rank != 3 {
		t.Fatalf("unexpected rank: %d", entries[0].Rank)
	}
}
