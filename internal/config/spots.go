package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"gigbook/internal/models"
)

// SpotTemplate is a named, reusable spot layout for new gigs.
type SpotTemplate struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Spots       []models.Spot `yaml:"spots"`
}

// SpotTemplatesConfig is the root of spots.yaml.
type SpotTemplatesConfig struct {
	Templates []SpotTemplate `yaml:"templates"`
}

// LoadSpotTemplates loads and validates the spot templates file.
func LoadSpotTemplates(path string) (*SpotTemplatesConfig, error) {
	if path == "" {
		path = "configs/spots.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spot templates: %w", err)
	}

	var cfg SpotTemplatesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse spot templates: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate spot templates: %w", err)
	}

	return &cfg, nil
}

// Validate checks the templates for errors.
func (c *SpotTemplatesConfig) Validate() error {
	seen := make(map[string]bool, len(c.Templates))
	for i, t := range c.Templates {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("template %d: name is required", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("template %q: duplicate name", name)
		}
		seen[key] = true

		if len(t.Spots) == 0 {
			return fmt.Errorf("template %q: at least one spot is required", name)
		}
		for j, s := range t.Spots {
			if !s.Valid() {
				return fmt.Errorf("template %q: spot %d is invalid (kind=%q minutes=%d)", name, j, s.Kind, s.Minutes)
			}
		}
	}
	return nil
}

// SpotTemplates is a concurrency-safe view of the latest loaded templates.
type SpotTemplates struct {
	mu        sync.RWMutex
	templates map[string]SpotTemplate
}

func NewSpotTemplates() *SpotTemplates {
	return &SpotTemplates{templates: map[string]SpotTemplate{}}
}

// Set replaces the current templates.
func (s *SpotTemplates) Set(cfg *SpotTemplatesConfig) {
	next := make(map[string]SpotTemplate, len(cfg.Templates))
	for _, t := range cfg.Templates {
		next[strings.ToLower(strings.TrimSpace(t.Name))] = t
	}
	s.mu.Lock()
	s.templates = next
	s.mu.Unlock()
}

// Lookup returns a copy of the named template's spots.
func (s *SpotTemplates) Lookup(name string) ([]models.Spot, bool) {
	s.mu.RLock()
	t, ok := s.templates[strings.ToLower(strings.TrimSpace(name))]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	spots := make([]models.Spot, len(t.Spots))
	copy(spots, t.Spots)
	return spots, true
}

// Names lists the template names, sorted.
func (s *SpotTemplates) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.templates))
	for _, t := range s.templates {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}
