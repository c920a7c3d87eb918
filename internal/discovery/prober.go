package discovery

import (
	"context"

	"github.com/jonathan/role-tracker/internal/connector"
	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/types"
)

// Discoverer finds the ATS sources of one company. A returned error means
// the attempt failed; an empty slice means nothing was found.
type Discoverer interface {
	Discover(ctx context.Context, company types.Company) ([]types.Source, error)
}

// PageScanner returns the ATS board links found on a careers page.
// *crawling.Scanner implements it.
type PageScanner interface {
	BoardLinks(ctx context.Context, pageURL string) ([]string, error)
}

// Prober discovers sources by probing connectors. A known careers URL is
// tried first, either as a board URL itself or, when a PageScanner is set, as
// a page linking to boards. Slug guesses are tried for every probe type not
// yet found.
type Prober struct {
	registry   *connector.Registry
	probeTypes []types.SourceType
	pages      PageScanner
}

// NewProber returns a Prober. probeTypes limits slug guessing; nil probes
// every registered connector that supports it.
func NewProber(registry *connector.Registry, probeTypes []types.SourceType) *Prober {
	if len(probeTypes) == 0 {
		probeTypes = registry.Types()
	}
	return &Prober{registry: registry, probeTypes: probeTypes}
}

// WithPageScanner makes the prober scan careers URLs that are not board URLs.
func (p *Prober) WithPageScanner(pages PageScanner) *Prober {
	p.pages = pages
	return p
}

// Discover implements Discoverer. Transient connector errors abort the
// attempt so the caller can retry; not-found and other permanent errors just
// rule the candidate out. A careers page that cannot be scanned is skipped.
func (p *Prober) Discover(ctx context.Context, company types.Company) ([]types.Source, error) {
	var found []types.Source
	have := make(map[types.SourceType]bool)

	if company.CareersURL != nil {
		candidates := []string{*company.CareersURL}
		if platform, _ := fetch.BoardToken(*company.CareersURL); platform == fetch.PlatformUnknown && p.pages != nil {
			candidates, _ = p.pages.BoardLinks(ctx, *company.CareersURL)
		}

		for _, boardURL := range candidates {
			src, ok := p.knownBoard(company, boardURL)
			if !ok || have[src.SourceType] {
				continue
			}
			ok, err := p.probe(ctx, src, false)
			if err != nil {
				return nil, err
			}
			if ok {
				found = append(found, src)
				have[src.SourceType] = true
			}
		}
	}

	slugs := Slugs(company.Name)
	for _, st := range p.probeTypes {
		if have[st] {
			continue
		}
		c, err := p.registry.Resolve(st)
		if err != nil {
			continue
		}
		prober, ok := c.(connector.SlugProber)
		if !ok {
			continue
		}

		for _, slug := range slugs {
			src := types.Source{
				CompanyID:  company.ID,
				SourceType: st,
				CareersURL: prober.BoardURL(slug),
				Token:      slug,
				IsActive:   true,
			}
			ok, err := p.probe(ctx, src, true)
			if err != nil {
				return nil, err
			}
			if ok {
				found = append(found, src)
				break
			}
		}
	}

	return found, nil
}

// knownBoard maps a board URL to a source of a registered connector.
func (p *Prober) knownBoard(company types.Company, boardURL string) (types.Source, bool) {
	platform, token := fetch.BoardToken(boardURL)
	if platform == fetch.PlatformUnknown {
		return types.Source{}, false
	}
	st := types.SourceType(platform)
	if _, err := p.registry.Resolve(st); err != nil {
		return types.Source{}, false
	}
	return types.Source{
		CompanyID:  company.ID,
		SourceType: st,
		CareersURL: boardURL,
		Token:      token,
		IsActive:   true,
	}, true
}

// probe reports whether src answers. Guessed sources must list at least one
// posting so empty placeholder boards are not adopted.
func (p *Prober) probe(ctx context.Context, src types.Source, guessed bool) (bool, error) {
	postings, err := p.registry.Fetch(ctx, src)
	if err != nil {
		if connector.IsTransient(err) {
			return false, err
		}
		return false, nil
	}
	if guessed && len(postings) == 0 {
		return false, nil
	}
	return true, nil
}
