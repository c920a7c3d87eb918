// Package connector adapts each ATS to one contract: fetch the current
// postings for a source. Connectors are looked up by source type through a
// Registry, so adding an ATS never touches the rest of the system.
package connector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/role-tracker/internal/types"
)

// Connector fetches postings for one ATS. Implementations hold no state
// between calls beyond their HTTP client.
type Connector interface {
	Type() types.SourceType
	FetchPostings(ctx context.Context, src types.Source) ([]types.RawPosting, error)
}

// SlugProber is implemented by connectors whose board URL can be derived from
// a bare token, which lets discovery probe candidate slugs.
type SlugProber interface {
	BoardURL(token string) string
}

// Registry maps source types to connectors.
type Registry struct {
	mu         sync.RWMutex
	connectors map[types.SourceType]Connector
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: map[types.SourceType]Connector{}}
}

// Register adds c. Registering the same source type twice is an error.
func (r *Registry) Register(c Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connectors[c.Type()]; ok {
		return fmt.Errorf("connector %s is already registered", c.Type())
	}
	r.connectors[c.Type()] = c
	return nil
}

// Resolve returns the connector for st or an error if it is absent.
func (r *Registry) Resolve(st types.SourceType) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.connectors[st]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("connector %s is not registered", st)
}

// Types returns the registered source types in sorted order.
func (r *Registry) Types() []types.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.SourceType, 0, len(r.connectors))
	for st := range r.connectors {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fetch dispatches to the connector for src. Every error it returns is either
// a *TransientFetchError or a *PermanentFetchError.
func (r *Registry) Fetch(ctx context.Context, src types.Source) ([]types.RawPosting, error) {
	c, err := r.Resolve(src.SourceType)
	if err != nil {
		return nil, &PermanentFetchError{SourceType: src.SourceType, Err: err}
	}
	postings, err := c.FetchPostings(ctx, src)
	if err != nil {
		return nil, Classify(src.SourceType, err)
	}
	return Sanitize(postings), nil
}

// Sanitize trims display fields and blank job ids. It never drops a posting:
// a live posting missing from a successful fetch would be closed, so identity
// resolution decides what is usable.
func Sanitize(in []types.RawPosting) []types.RawPosting {
	out := make([]types.RawPosting, 0, len(in))
	for _, p := range in {
		p.Title = strings.TrimSpace(p.Title)
		p.Location = strings.TrimSpace(p.Location)
		p.ApplyURL = strings.TrimSpace(p.ApplyURL)
		if p.SourceJobID != nil {
			id := strings.TrimSpace(*p.SourceJobID)
			if id == "" {
				p.SourceJobID = nil
			} else {
				p.SourceJobID = &id
			}
		}
		out = append(out, p)
	}
	return out
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
