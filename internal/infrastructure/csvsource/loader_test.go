package csvsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ZipPicks/internal/domain"
)

func writeDataset(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restaurants.csv")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

const header = "name,address,city,rating,price_range,cuisine_type,neighborhood,description,vibe_attributes\n"

func TestLoadNormalizesRows(t *testing.T) {
	t.Parallel()

	csvData := header +
		`Bella Vista,100 Hill St,San Francisco,4.8,$$$,Italian,Nob Hill,Candlelit dining,"[""Romantic"", ""View""]"` + "\n" +
		"Taco Shack,1 South St,Austin,4.2,cheap,,,,\n"

	path := writeDataset(t, []byte(csvData))
	records, rowErrs, err := NewLoader(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("unexpected row errors: %v", rowErrs)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	bella := records[0]
	if bella.CitySlug != "san-francisco" {
		t.Fatalf("unexpected city slug: %q", bella.CitySlug)
	}
	if bella.PriceRange != "$$$" {
		t.Fatalf("unexpected price: %q", bella.PriceRange)
	}
	if len(bella.VibeAttributes) != 2 || bella.VibeAttributes[0] != "romantic" {
		t.Fatalf("attributes not lowercased: %v", bella.VibeAttributes)
	}

	taco := records[1]
	if taco.PriceRange != "$" {
		t.Fatalf("expected word price mapped to $, got %q", taco.PriceRange)
	}
	if taco.CuisineType != "unspecified" {
		t.Fatalf("expected cuisine default, got %q", taco.CuisineType)
	}
}

func TestLoadSkipsBadRowsAndContinues(t *testing.T) {
	t.Parallel()

	csvData := header +
		"Good Place,1 Main St,Austin,4.5,$$,,,,\n" +
		",2 Main St,Austin,4.5,$$,,,,\n" + // missing name
		"No Rating,3 Main St,Austin,,$$,,,,\n" +
		"Too High,4 Main St,Austin,9.7,$$,,,,\n"

	path := writeDataset(t, []byte(csvData))
	records, rowErrs, err := NewLoader(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if len(rowErrs) != 3 {
		t.Fatalf("expected 3 row errors, got %d: %v", len(rowErrs), rowErrs)
	}
	if rowErrs[0].Line != 3 || rowErrs[0].Field != "name" {
		t.Fatalf("unexpected first row error: %+v", rowErrs[0])
	}
}

func TestLoadMissingColumnIsFatal(t *testing.T) {
	t.Parallel()

	path := writeDataset(t, []byte("name,address,city\nA,1 St,Austin\n"))
	_, _, err := NewLoader(path, nil).Load(context.Background())

	var srcErr *domain.DataSourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected DataSourceError, got %v", err)
	}
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	t.Parallel()

	_, _, err := NewLoader(filepath.Join(t.TempDir(), "absent.csv"), nil).Load(context.Background())
	var srcErr *domain.DataSourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected DataSourceError, got %v", err)
	}
}

func TestLoadMergesDuplicatesKeepingCompleterRecord(t *testing.T) {
	t.Parallel()

	csvData := header +
		"Twin Spot,5 Oak St,Austin,4.4,,,,,\n" +
		"TWIN SPOT,5 Oak St,Austin,4.4,$$,Mexican,East Side,Great mole,\n"

	path := writeDataset(t, []byte(csvData))
	records, _, err := NewLoader(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected merged record, got %d", len(records))
	}
	if records[0].Neighborhood != "East Side" {
		t.Fatalf("expected the more complete duplicate to win, got %+v", records[0])
	}
}

func TestLoadUTF8BOM(t *testing.T) {
	t.Parallel()

	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(header+"Caf\xc3\xa9 Lune,9 Rue St,Austin,4.6,$$,,,,\n")...)
	path := writeDataset(t, data)
	records, _, err := NewLoader(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 || records[0].Name != "Café Lune" {
		t.Fatalf("BOM handling broke the header or name: %+v", records)
	}
}

func TestLoadLatin1Fallback(t *testing.T) {
	t.Parallel()

	// "Café" in latin-1: 0xE9 is invalid UTF-8, forcing the fallback.
	row := append([]byte("Caf"), 0xE9)
	row = append(row, []byte(" Brun,9 Rue St,Austin,4.6,$$,,,,\n")...)
	path := writeDataset(t, append([]byte(header), row...))

	records, _, err := NewLoader(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 || records[0].Name != "Café Brun" {
		t.Fatalf("latin-1 fallback failed: %+v", records)
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"San Francisco":  "san-francisco",
		"  New   York  ": "new-york",
		"Austin":         "austin",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizePrice(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"$":           "$",
		"$$":          "$$",
		"$$$":         "$$$",
		"$$$$":        "$$$$",
		"$$$$$":       "$$$$",
		"expensive":   "$$$",
		"Moderate":    "$$",
		"cheap eats":  "$",
		"":            "$",
		"no signal":   "$",
		"about $$ or": "$$",
	}
	for in, want := range cases {
		if got := NormalizePrice(in); got != want {
			t.Fatalf("NormalizePrice(%q) = %q, want %q", in, got, want)
		}
	}
}
