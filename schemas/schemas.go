// Package schemas embeds the JSON Schemas of exported artifacts.
package schemas

import (
	"embed"
	"fmt"
)

// Schema file names.
const (
	Projection = "projection.schema.json"
	RunSummary = "run_summary.schema.json"
)

//go:embed *.schema.json
var files embed.FS

// Load returns the content of the named schema.
func Load(name string) (string, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("unknown schema %s: %w", name, err)
	}
	return string(data), nil
}

// Names lists every embedded schema.
func Names() []string {
	entries, _ := files.ReadDir(".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
