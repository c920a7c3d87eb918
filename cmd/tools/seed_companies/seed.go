package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/role-tracker/internal/types"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Companies []seedEntry `yaml:"companies"`
}

type seedEntry struct {
	Name       string `yaml:"name"`
	CareersURL string `yaml:"careers_url"`
	Domain     string `yaml:"domain"`
	Priority   int    `yaml:"priority"`
}

func (e seedEntry) company() types.Company {
	c := types.Company{Name: strings.TrimSpace(e.Name), Priority: e.Priority}
	if u := strings.TrimSpace(e.CareersURL); u != "" {
		c.CareersURL = &u
	}
	if d := strings.TrimSpace(e.Domain); d != "" {
		c.Domain = &d
	}
	return c
}

// parseSeed decodes the YAML seed and rejects unnamed or duplicate entries.
func parseSeed(r io.Reader) ([]seedEntry, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	seen := make(map[string]int, len(f.Companies))
	for i, e := range f.Companies {
		key := types.NormalizeName(e.Name)
		if key == "" {
			return nil, fmt.Errorf("entry %d: name is required", i+1)
		}
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("entry %d: %q duplicates entry %d", i+1, e.Name, prev)
		}
		seen[key] = i + 1
	}
	return f.Companies, nil
}
