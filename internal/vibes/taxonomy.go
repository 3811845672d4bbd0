package vibes

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"ZipPicks/internal/domain"
)

// CityConfig describes one supported city and the alternate spellings
// that may appear in the dataset.
type CityConfig struct {
	Name     string   `yaml:"name"`
	AltNames []string `yaml:"alt_names"`
}

// Taxonomy is the read-only vibe and city configuration loaded at
// process start.
type Taxonomy struct {
	Vibes  map[string]domain.VibeDefinition
	Cities map[string]CityConfig
}

// LoadTaxonomy reads the vibe and city YAML files and validates their
// structure. Vibe slugs are unique by construction of the YAML mapping.
func LoadTaxonomy(vibesFile, citiesFile string) (*Taxonomy, error) {
	vibes, err := loadVibes(vibesFile)
	if err != nil {
		return nil, err
	}
	cities, err := loadCities(citiesFile)
	if err != nil {
		return nil, err
	}
	return &Taxonomy{Vibes: vibes, Cities: cities}, nil
}

func loadVibes(path string) (map[string]domain.VibeDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vibes config %s: %w", path, err)
	}

	var doc struct {
		Vibes map[string]domain.VibeDefinition `yaml:"vibes"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse vibes config %s: %w", path, err)
	}

	for slug, def := range doc.Vibes {
		def.Slug = slug
		if def.Name == "" {
			def.Name = domain.TitleFromSlug(slug)
		}
		if err := validateVibe(def); err != nil {
			return nil, fmt.Errorf("vibe %q: %w", slug, err)
		}
		doc.Vibes[slug] = def
	}

	return doc.Vibes, nil
}

// validateVibe rejects filter lists that are present but empty: a
// referenced dimension must actually constrain something.
func validateVibe(def domain.VibeDefinition) error {
	for _, p := range def.Filters.PriceRanges {
		if !domain.ValidPrice(p) {
			return fmt.Errorf("filter price range %q is not one of $, $$, $$$, $$$$", p)
		}
	}
	if len(def.Keywords) == 0 && len(def.Filters.Keywords) == 0 && len(def.Attributes) == 0 {
		return fmt.Errorf("needs at least one keyword or attribute tag to match against")
	}
	return nil
}

func loadCities(path string) (map[string]CityConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]CityConfig{}, nil
		}
		return nil, fmt.Errorf("read cities config %s: %w", path, err)
	}

	var doc struct {
		Cities map[string]CityConfig `yaml:"cities"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse cities config %s: %w", path, err)
	}
	if doc.Cities == nil {
		doc.Cities = map[string]CityConfig{}
	}
	return doc.Cities, nil
}

// Vibe resolves a vibe definition by slug.
func (t *Taxonomy) Vibe(slug string) (domain.VibeDefinition, error) {
	def, ok := t.Vibes[slug]
	if !ok {
		return domain.VibeDefinition{}, fmt.Errorf("vibe %q is not defined in the taxonomy", slug)
	}
	return def, nil
}

// VibeSlugs returns the configured vibe slugs in stable order.
func (t *Taxonomy) VibeSlugs() []string {
	slugs := make([]string, 0, len(t.Vibes))
	for slug := range t.Vibes {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// CitySlugs returns the configured city slugs in stable order.
func (t *Taxonomy) CitySlugs() []string {
	slugs := make([]string, 0, len(t.Cities))
	for slug := range t.Cities {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
