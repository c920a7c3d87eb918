package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/types"
)

// DefaultAshbyAPI is the public posting API root.
const DefaultAshbyAPI = "https://api.ashbyhq.com"

// Ashby reads the public job board API.
type Ashby struct {
	client  *fetch.Client
	apiBase string
}

// NewAshby returns an Ashby connector. Empty apiBase uses the public API.
func NewAshby(client *fetch.Client, apiBase string) *Ashby {
	if apiBase == "" {
		apiBase = DefaultAshbyAPI
	}
	return &Ashby{client: client, apiBase: strings.TrimRight(apiBase, "/")}
}

// Type implements Connector.
func (a *Ashby) Type() types.SourceType { return types.SourceAshby }

// BoardURL implements SlugProber.
func (a *Ashby) BoardURL(token string) string {
	return "https://jobs.ashbyhq.com/" + url.PathEscape(token)
}

type ashbyResponse struct {
	Jobs []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Location    string `json:"location"`
		JobURL      string `json:"jobUrl"`
		PublishedAt string `json:"publishedAt"`
	} `json:"jobs"`
}

// FetchPostings implements Connector.
func (a *Ashby) FetchPostings(ctx context.Context, src types.Source) ([]types.RawPosting, error) {
	if src.Token == "" {
		return nil, &PermanentFetchError{SourceType: a.Type(), Err: fmt.Errorf("missing board token")}
	}

	endpoint := fmt.Sprintf("%s/posting-api/job-board/%s", a.apiBase, url.PathEscape(src.Token))
	var resp ashbyResponse
	if err := a.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, Classify(a.Type(), err)
	}

	out := make([]types.RawPosting, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		out = append(out, types.RawPosting{
			SourceJobID: optionalString(j.ID),
			Title:       j.Title,
			Location:    j.Location,
			ApplyURL:    j.JobURL,
			PostedAt:    parseTime(j.PublishedAt),
		})
	}
	return out, nil
}
