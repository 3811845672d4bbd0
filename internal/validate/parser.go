package validate

import (
	"regexp"
	"strconv"
	"strings"
)

// rawEntry is one parsed but not yet validated list item.
type rawEntry struct {
	Rank    int
	Name    string
	Why     string
	MustTry string
	Address string
	Price   string
}

// Entry markers in fallback order: bold numbered, markdown heading,
// plain numbered. Generators drift between these styles, so the list is
// part of the validator's configuration rather than hard-coded.
var DefaultEntryMarkers = []*regexp.Regexp{
	regexp.MustCompile(`^\s*\*\*(\d{1,2})\.\s*(.+?)\*\*\s*$`),
	regexp.MustCompile(`^\s*#{1,4}\s*(\d{1,2})\.\s*(.+?)\s*$`),
	regexp.MustCompile(`^\s*(\d{1,2})\.\s+(\S.*?)\s*$`),
}

var fieldLine = regexp.MustCompile(`(?i)^\s*(?:[-•*]\s*)?\*{0,2}(why[^:]*|must[ -]?try|address|price)\*{0,2}\s*:\s*(.*)$`)

// parseEntries splits the draft into entries at marker lines and
// collects labeled fields inside each entry. Text outside any entry is
// conversational filler and is ignored.
func parseEntries(text string, markers []*regexp.Regexp) []rawEntry {
	var (
		entries []rawEntry
		current *rawEntry
		field   *string
	)

	flush := func() {
		if current != nil {
			entries = append(entries, *current)
			current = nil
			field = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if rank, name, ok := matchMarker(line, markers); ok {
			flush()
			current = &rawEntry{Rank: rank, Name: name}
			continue
		}
		if current == nil {
			continue
		}

		if m := fieldLine.FindStringSubmatch(line); m != nil {
			value := cleanField(m[2])
			switch key := strings.ToLower(m[1]); {
			case strings.HasPrefix(key, "why"):
				current.Why = value
				field = &current.Why
			case strings.HasPrefix(key, "must"):
				current.MustTry = value
				field = &current.MustTry
			case strings.HasPrefix(key, "address"):
				current.Address = value
				field = &current.Address
			case strings.HasPrefix(key, "price"):
				current.Price = value
				field = &current.Price
			}
			continue
		}

		// Continuation of the previous field on a wrapped line. A blank
		// line ends the field so trailing chatter is not absorbed.
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			field = nil
			continue
		}
		if field != nil {
			*field = strings.TrimSpace(*field + " " + cleanField(trimmed))
		}
	}
	flush()

	return entries
}

func matchMarker(line string, markers []*regexp.Regexp) (int, string, bool) {
	for _, marker := range markers {
		m := marker.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rank, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		name := strings.TrimSpace(strings.Trim(m[2], "*"))
		if name == "" {
			continue
		}
		return rank, name, true
	}
	return 0, "", false
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-•* ")
	s = strings.Trim(s, "*")
	return strings.TrimSpace(s)
}
