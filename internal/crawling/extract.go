package crawling

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkSelectors lists the elements that can point at a board. Hosted boards
// are usually plain links; embedded boards load through an iframe or script.
var linkSelectors = []struct {
	selector string
	attr     string
}{
	{"a[href]", "href"},
	{"iframe[src]", "src"},
	{"script[src]", "src"},
}

// ExtractLinks returns every absolute http(s) link in the page, resolved
// against baseURL, without fragments and in document order. Links to other
// hosts are kept since ATS boards live off-site.
func ExtractLinks(htmlContent string, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &LinkExtractionError{
			Message: "failed to parse base URL",
			Cause:   err,
		}
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, &LinkExtractionError{
			Message: fmt.Sprintf("invalid base URL: %s (must have scheme and host)", baseURL),
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &LinkExtractionError{
			Message: "failed to parse HTML",
			Cause:   err,
		}
	}

	linkSet := make(map[string]bool)
	links := make([]string, 0)

	for _, ls := range linkSelectors {
		doc.Find(ls.selector).Each(func(_ int, s *goquery.Selection) {
			ref, _ := s.Attr(ls.attr)
			ref = strings.TrimSpace(ref)
			if ref == "" {
				return
			}

			linkURL, err := url.Parse(ref)
			if err != nil {
				return
			}

			abs := base.ResolveReference(linkURL)
			if abs.Scheme != "http" && abs.Scheme != "https" {
				return
			}
			abs.Fragment = ""
			urlString := strings.TrimSuffix(abs.String(), "/")

			if !linkSet[urlString] {
				linkSet[urlString] = true
				links = append(links, urlString)
			}
		})
	}

	return links, nil
}
