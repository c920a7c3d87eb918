package connector

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/types"
)

// Workday paging limits. The CXS endpoint caps page size at 20.
const (
	workdayPageSize = 20
	workdayMaxPages = 50
)

// Workday reads the CXS JSON search endpoint behind myworkdayjobs.com portals.
type Workday struct {
	client  *fetch.Client
	apiBase string
}

// NewWorkday returns a Workday connector. Empty apiBase derives the host from
// the source careers URL.
func NewWorkday(client *fetch.Client, apiBase string) *Workday {
	return &Workday{client: client, apiBase: strings.TrimRight(apiBase, "/")}
}

// Type implements Connector.
func (w *Workday) Type() types.SourceType { return types.SourceWorkday }

type workdaySite struct {
	host   string
	tenant string
	site   string
	locale string
}

type workdayRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type workdayResponse struct {
	Total       int `json:"total"`
	JobPostings []struct {
		Title         string   `json:"title"`
		ExternalPath  string   `json:"externalPath"`
		LocationsText string   `json:"locationsText"`
		BulletFields  []string `json:"bulletFields"`
	} `json:"jobPostings"`
}

// FetchPostings implements Connector.
func (w *Workday) FetchPostings(ctx context.Context, src types.Source) ([]types.RawPosting, error) {
	site, err := parseWorkdaySite(src)
	if err != nil {
		return nil, &PermanentFetchError{SourceType: w.Type(), Err: err}
	}

	base := w.apiBase
	if base == "" {
		base = "https://" + site.host
	}
	endpoint := fmt.Sprintf("%s/wday/cxs/%s/%s/jobs", base, url.PathEscape(site.tenant), url.PathEscape(site.site))
	jobBase := fmt.Sprintf("https://%s/%s/%s", site.host, site.locale, site.site)

	var out []types.RawPosting
	for page := 0; page < workdayMaxPages; page++ {
		req := workdayRequest{
			AppliedFacets: map[string]any{},
			Limit:         workdayPageSize,
			Offset:        page * workdayPageSize,
		}
		var resp workdayResponse
		if err := w.client.PostJSON(ctx, endpoint, req, &resp); err != nil {
			return nil, Classify(w.Type(), err)
		}

		for _, p := range resp.JobPostings {
			applyURL := ""
			if p.ExternalPath != "" {
				applyURL = jobBase + p.ExternalPath
			}
			out = append(out, types.RawPosting{
				SourceJobID: workdayJobID(p.BulletFields, p.ExternalPath),
				Title:       p.Title,
				Location:    p.LocationsText,
				ApplyURL:    applyURL,
			})
		}

		if len(resp.JobPostings) < workdayPageSize {
			break
		}
		if resp.Total > 0 && len(out) >= resp.Total {
			break
		}
	}
	return out, nil
}

func parseWorkdaySite(src types.Source) (workdaySite, error) {
	tenant, site, ok := strings.Cut(src.Token, "/")
	if !ok || tenant == "" || site == "" {
		return workdaySite{}, fmt.Errorf("workday token %q is not tenant/site", src.Token)
	}

	host := tenant + ".myworkdayjobs.com"
	if u, err := url.Parse(src.CareersURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}

	locale := "en-US"
	if u, err := url.Parse(src.CareersURL); err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) > 1 && len(segments[0]) == 5 && segments[0][2] == '-' {
			locale = segments[0]
		}
	}

	return workdaySite{host: host, tenant: tenant, site: site, locale: locale}, nil
}

// workdayJobID prefers the requisition id bullet, then the suffix of the
// external path after its last underscore.
func workdayJobID(bullets []string, externalPath string) *string {
	if len(bullets) > 0 {
		if id := optionalString(bullets[0]); id != nil {
			return id
		}
	}
	last := path.Base(externalPath)
	if i := strings.LastIndex(last, "_"); i >= 0 && i < len(last)-1 {
		return optionalString(last[i+1:])
	}
	return nil
}
