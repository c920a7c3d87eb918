package connector

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/types"
)

var icimsJobPath = regexp.MustCompile(`/jobs/(\d+)/`)

// ICIMS scrapes the server-rendered job search page of an iCIMS portal.
type ICIMS struct {
	client  *fetch.Client
	apiBase string
}

// NewICIMS returns an iCIMS connector. Empty apiBase uses https://{token}.
func NewICIMS(client *fetch.Client, apiBase string) *ICIMS {
	return &ICIMS{client: client, apiBase: strings.TrimRight(apiBase, "/")}
}

// Type implements Connector.
func (c *ICIMS) Type() types.SourceType { return types.SourceICIMS }

// FetchPostings implements Connector.
func (c *ICIMS) FetchPostings(ctx context.Context, src types.Source) ([]types.RawPosting, error) {
	if src.Token == "" {
		return nil, &PermanentFetchError{SourceType: c.Type(), Err: fmt.Errorf("missing portal host")}
	}

	base := c.apiBase
	if base == "" {
		base = "https://" + src.Token
	}
	pageURL := base + "/jobs/search?ss=1&in_iframe=1"

	res, err := c.client.Get(ctx, pageURL)
	if err != nil {
		return nil, Classify(c.Type(), err)
	}

	return parseICIMS(res.Body, pageURL)
}

func parseICIMS(body []byte, pageURL string) ([]types.RawPosting, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &PermanentFetchError{SourceType: types.SourceICIMS, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}

	base, _ := url.Parse(pageURL)
	seen := make(map[string]bool)
	var out []types.RawPosting

	doc.Find("a[href*='/jobs/']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := icimsJobPath.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return
		}

		title := fetch.CleanText(a.Find("h2, h3").First().Text())
		if title == "" {
			title = fetch.CleanText(a.Text())
		}
		if title == "" {
			return
		}
		seen[m[1]] = true

		applyURL := href
		if ref, err := url.Parse(href); err == nil && base != nil {
			applyURL = base.ResolveReference(ref).String()
		}

		row := a.Closest(".iCIMS_JobsTable .row, li, tr")
		location := fetch.CleanText(row.Find("[class*='location'], .iCIMS_JobHeaderTag dd").First().Text())

		out = append(out, types.RawPosting{
			SourceJobID: optionalString(m[1]),
			Title:       title,
			Location:    location,
			ApplyURL:    applyURL,
		})
	})

	return out, nil
}
