package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"ZipPicks/internal/domain"
)

const templateFileName = "top10_prompt.txt"

// Engine renders the versioned Top 10 prompt template. The template is
// loaded once; Compose is a pure function of its arguments.
type Engine struct {
	version string
	tmpl    *template.Template
}

// templateContext is the full set of placeholders a template may use.
type templateContext struct {
	City            string
	Vibe            string
	VibeDescription string
	Date            string
	Restaurants     string
}

// NewEngine loads the template for the requested version. A missing
// version is a TemplateNotFoundError; there is no silent fallback.
func NewEngine(dir, version string) (*Engine, error) {
	path := filepath.Join(dir, "v"+version, templateFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.TemplateNotFoundError{Version: version, Dir: dir}
		}
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}

	tmpl, err := template.New(templateFileName).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template v%s: %w", version, err)
	}

	return &Engine{version: version, tmpl: tmpl}, nil
}

// Version reports the loaded template version.
func (e *Engine) Version() string { return e.version }

// Compose renders the prompt for one (city, vibe) pair. Identical
// arguments always produce byte-identical output; the generation date
// is an explicit input for that reason.
func (e *Engine) Compose(citySlug string, vibe domain.VibeDefinition, candidates domain.CandidateSet, date time.Time) (string, error) {
	desc := vibe.Description
	if desc == "" {
		desc = fmt.Sprintf("Restaurants perfect for %s", strings.ToLower(vibe.Name))
	}

	ctx := templateContext{
		City:            domain.TitleFromSlug(citySlug),
		Vibe:            vibe.Name,
		VibeDescription: desc,
		Date:            date.Format("January 2006"),
		Restaurants:     serializeCandidates(candidates),
	}

	var sb strings.Builder
	if err := e.tmpl.Execute(&sb, ctx); err != nil {
		return "", fmt.Errorf("render prompt v%s: %w", e.version, err)
	}
	return sb.String(), nil
}

// serializeCandidates renders one block per candidate in set order.
func serializeCandidates(set domain.CandidateSet) string {
	blocks := make([]string, 0, len(set.Records))
	for _, r := range set.Records {
		lines := []string{
			fmt.Sprintf("Name: %s", r.Name),
			fmt.Sprintf("Rating: %.1f stars", r.Rating),
			fmt.Sprintf("Price: %s", r.PriceRange),
			fmt.Sprintf("Cuisine: %s", r.CuisineType),
			fmt.Sprintf("Address: %s", r.Address),
		}
		if r.Neighborhood != "" {
			lines = append(lines, fmt.Sprintf("Neighborhood: %s", r.Neighborhood))
		}
		if len(r.VibeAttributes) > 0 {
			lines = append(lines, fmt.Sprintf("Atmosphere: %s", strings.Join(r.VibeAttributes, ", ")))
		}
		if r.Description != "" {
			about := r.Description
			if len(about) > 200 {
				about = about[:200] + "..."
			}
			lines = append(lines, fmt.Sprintf("About: %s", about))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// ListVersions returns the template versions available under dir.
func ListVersions(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir %s: %w", dir, err)
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "v") {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, entry.Name(), templateFileName)); err == nil {
			versions = append(versions, strings.TrimPrefix(entry.Name(), "v"))
		}
	}
	sort.Strings(versions)
	return versions, nil
}
