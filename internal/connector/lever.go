package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/types"
)

// DefaultLeverAPI is the public postings API root.
const DefaultLeverAPI = "https://api.lever.co"

// Lever reads the public postings API.
type Lever struct {
	client  *fetch.Client
	apiBase string
}

// NewLever returns a Lever connector. Empty apiBase uses the public API.
func NewLever(client *fetch.Client, apiBase string) *Lever {
	if apiBase == "" {
		apiBase = DefaultLeverAPI
	}
	return &Lever{client: client, apiBase: strings.TrimRight(apiBase, "/")}
}

// Type implements Connector.
func (l *Lever) Type() types.SourceType { return types.SourceLever }

// BoardURL implements SlugProber.
func (l *Lever) BoardURL(token string) string {
	return "https://jobs.lever.co/" + url.PathEscape(token)
}

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Categories struct {
		Location string `json:"location"`
	} `json:"categories"`
	HostedURL string `json:"hostedUrl"`
	CreatedAt int64  `json:"createdAt"`
}

// FetchPostings implements Connector.
func (l *Lever) FetchPostings(ctx context.Context, src types.Source) ([]types.RawPosting, error) {
	if src.Token == "" {
		return nil, &PermanentFetchError{SourceType: l.Type(), Err: fmt.Errorf("missing board token")}
	}

	endpoint := fmt.Sprintf("%s/v0/postings/%s?mode=json", l.apiBase, url.PathEscape(src.Token))
	var resp []leverPosting
	if err := l.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, Classify(l.Type(), err)
	}

	out := make([]types.RawPosting, 0, len(resp))
	for _, p := range resp {
		out = append(out, types.RawPosting{
			SourceJobID: optionalString(p.ID),
			Title:       p.Text,
			Location:    p.Categories.Location,
			ApplyURL:    p.HostedURL,
			PostedAt:    parseMillis(p.CreatedAt),
		})
	}
	return out, nil
}
