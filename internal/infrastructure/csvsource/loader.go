package csvsource

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"ZipPicks/internal/domain"
	"ZipPicks/internal/ports"
)

var requiredColumns = []string{"name", "address", "city", "rating"}

// Loader reads the restaurant CSV, normalizes every row, and merges
// duplicates. It implements ports.RecordSource.
type Loader struct {
	path   string
	logger *slog.Logger
}

var _ ports.RecordSource = (*Loader)(nil)

// NewLoader wires the dataset path and a logger.
func NewLoader(path string, logger *slog.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

// Load returns normalized records plus the row-level errors that were
// skipped. A problem with the file as a whole is a DataSourceError.
func (l *Loader) Load(ctx context.Context) ([]domain.RestaurantRecord, []domain.RowError, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, nil, &domain.DataSourceError{Path: l.path, Reason: "cannot read file", Err: err}
	}

	text, encoding, err := decodeAny(raw)
	if err != nil {
		return nil, nil, &domain.DataSourceError{Path: l.path, Reason: "no supported encoding decodes the file", Err: err}
	}
	l.debug("decoded input file", "encoding", encoding, "bytes", len(raw))

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, &domain.DataSourceError{Path: l.path, Reason: "malformed CSV", Err: err}
	}
	if len(rows) == 0 {
		return nil, nil, &domain.DataSourceError{Path: l.path, Reason: "empty file, header row required"}
	}

	columns, err := indexColumns(rows[0])
	if err != nil {
		return nil, nil, &domain.DataSourceError{Path: l.path, Reason: err.Error()}
	}

	var (
		records []domain.RestaurantRecord
		rowErrs []domain.RowError
	)
	byKey := map[string]int{}

	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		line := i + 2
		record, rowErr := l.buildRecord(columns, row, line)
		if rowErr != nil {
			rowErrs = append(rowErrs, *rowErr)
			continue
		}

		key := strings.ToLower(record.Name) + "|" + strings.ToLower(record.Address)
		if prev, ok := byKey[key]; ok {
			kept := mergeDuplicate(records[prev], record)
			l.debug("merged duplicate record", "name", record.Name, "address", record.Address, "line", line)
			records[prev] = kept
			continue
		}

		byKey[key] = len(records)
		records = append(records, record)
	}

	l.debug("dataset normalized", "records", len(records), "skipped", len(rowErrs))
	return records, rowErrs, nil
}

func (l *Loader) buildRecord(columns map[string]int, row []string, line int) (domain.RestaurantRecord, *domain.RowError) {
	get := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return cleanText(row[idx])
	}

	for _, required := range []string{"name", "address", "city"} {
		if get(required) == "" {
			return domain.RestaurantRecord{}, &domain.RowError{Line: line, Field: required, Reason: "missing required value"}
		}
	}

	ratingText := get("rating")
	if ratingText == "" {
		return domain.RestaurantRecord{}, &domain.RowError{Line: line, Field: "rating", Reason: "missing required value"}
	}
	rating, err := strconv.ParseFloat(ratingText, 64)
	if err != nil || rating <= 0 || rating > 5 {
		return domain.RestaurantRecord{}, &domain.RowError{Line: line, Field: "rating", Reason: fmt.Sprintf("invalid rating %q", ratingText)}
	}

	record := domain.RestaurantRecord{
		Name:         get("name"),
		Address:      get("address"),
		City:         get("city"),
		Rating:       rating,
		PriceRange:   NormalizePrice(get("price_range")),
		CuisineType:  get("cuisine_type"),
		Neighborhood: get("neighborhood"),
		Description:  get("description"),
	}
	record.CitySlug = Slugify(record.City)

	if record.CuisineType == "" {
		record.CuisineType = "unspecified"
	}

	if attrs := get("vibe_attributes"); attrs != "" {
		var parsed []string
		if err := json.Unmarshal([]byte(attrs), &parsed); err != nil {
			l.debug("unparseable vibe_attributes", "line", line, "error", err)
		} else {
			for _, a := range parsed {
				if a = strings.TrimSpace(a); a != "" {
					record.VibeAttributes = append(record.VibeAttributes, strings.ToLower(a))
				}
			}
		}
	}

	return record, nil
}

func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	var missing []string
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	return columns, nil
}

// mergeDuplicate keeps the more complete of two records sharing a
// (name, address) identity.
func mergeDuplicate(a, b domain.RestaurantRecord) domain.RestaurantRecord {
	if completeness(b) > completeness(a) {
		return b
	}
	return a
}

func completeness(r domain.RestaurantRecord) int {
	score := 0
	if r.PriceRange != "" {
		score++
	}
	if r.CuisineType != "" && r.CuisineType != "unspecified" {
		score++
	}
	if r.Neighborhood != "" {
		score++
	}
	if r.Description != "" {
		score++
	}
	if len(r.VibeAttributes) > 0 {
		score++
	}
	return score
}

// Slugify lowercases a display name and joins words with dashes, the
// form used for city keys throughout the pipeline.
func Slugify(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(fields, "-")
}

// NormalizePrice maps a free-text price indicator onto the four allowed
// symbols. Dollar signs win; otherwise common wording is interpreted.
func NormalizePrice(price string) string {
	count := strings.Count(price, "$")
	switch {
	case count >= 4:
		return domain.PriceLuxury
	case count > 0:
		return strings.Repeat("$", count)
	}

	lower := strings.ToLower(price)
	switch {
	case containsAny(lower, "expensive", "high", "pricey", "upscale"):
		return domain.PriceUpscale
	case containsAny(lower, "moderate", "medium", "reasonable"):
		return domain.PriceModerate
	case containsAny(lower, "cheap", "budget", "affordable", "inexpensive"):
		return domain.PriceBudget
	}
	return domain.PriceBudget
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func (l *Loader) debug(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func validUTF8(raw []byte) bool {
	return utf8.Valid(raw)
}

func hasBOM(raw []byte) bool {
	return bytes.HasPrefix(raw, utf8BOM)
}
