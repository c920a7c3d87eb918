package crawling

import (
	"context"

	"github.com/jonathan/role-tracker/internal/fetch"
)

// PageGetter loads a page. *fetch.Client implements it.
type PageGetter interface {
	Get(ctx context.Context, urlStr string) (*fetch.Result, error)
}

// Scanner finds ATS board links on careers pages.
type Scanner struct {
	pages PageGetter
}

// NewScanner returns a Scanner that loads pages through pages.
func NewScanner(pages PageGetter) *Scanner {
	return &Scanner{pages: pages}
}

// BoardLinks loads pageURL and returns the links on it that point at a
// recognized ATS board, at most one per platform and token.
func (s *Scanner) BoardLinks(ctx context.Context, pageURL string) ([]string, error) {
	res, err := s.pages.Get(ctx, pageURL)
	if err != nil {
		return nil, &CrawlError{URL: pageURL, Message: "failed to load page", Cause: err}
	}

	base := pageURL
	if res.URL != "" {
		base = res.URL
	}
	links, err := ExtractLinks(string(res.Body), base)
	if err != nil {
		return nil, &CrawlError{URL: pageURL, Message: "failed to read page", Cause: err}
	}

	return BoardLinks(links), nil
}

// BoardLinks filters links down to recognized ATS boards.
func BoardLinks(links []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, link := range links {
		platform, token := fetch.BoardToken(link)
		if platform == fetch.PlatformUnknown || token == "" {
			continue
		}
		key := string(platform) + ":" + token
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, link)
	}
	return out
}
