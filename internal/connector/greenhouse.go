package connector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/types"
)

// DefaultGreenhouseAPI is the public job board API root.
const DefaultGreenhouseAPI = "https://boards-api.greenhouse.io"

// Greenhouse reads the public board API.
type Greenhouse struct {
	client  *fetch.Client
	apiBase string
}

// NewGreenhouse returns a Greenhouse connector. Empty apiBase uses the public API.
func NewGreenhouse(client *fetch.Client, apiBase string) *Greenhouse {
	if apiBase == "" {
		apiBase = DefaultGreenhouseAPI
	}
	return &Greenhouse{client: client, apiBase: strings.TrimRight(apiBase, "/")}
}

// Type implements Connector.
func (g *Greenhouse) Type() types.SourceType { return types.SourceGreenhouse }

// BoardURL implements SlugProber.
func (g *Greenhouse) BoardURL(token string) string {
	return "https://boards.greenhouse.io/" + url.PathEscape(token)
}

type greenhouseResponse struct {
	Jobs []struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Location struct {
			Name string `json:"name"`
		} `json:"location"`
		AbsoluteURL string `json:"absolute_url"`
		UpdatedAt   string `json:"updated_at"`
	} `json:"jobs"`
}

// FetchPostings implements Connector.
func (g *Greenhouse) FetchPostings(ctx context.Context, src types.Source) ([]types.RawPosting, error) {
	if src.Token == "" {
		return nil, &PermanentFetchError{SourceType: g.Type(), Err: fmt.Errorf("missing board token")}
	}

	endpoint := fmt.Sprintf("%s/v1/boards/%s/jobs", g.apiBase, url.PathEscape(src.Token))
	var resp greenhouseResponse
	if err := g.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, Classify(g.Type(), err)
	}

	out := make([]types.RawPosting, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		var id *string
		if j.ID != 0 {
			id = optionalString(strconv.FormatInt(j.ID, 10))
		}
		out = append(out, types.RawPosting{
			SourceJobID: id,
			Title:       j.Title,
			Location:    j.Location.Name,
			ApplyURL:    j.AbsoluteURL,
			PostedAt:    parseTime(j.UpdatedAt),
		})
	}
	return out, nil
}
