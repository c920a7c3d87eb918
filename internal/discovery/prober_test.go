package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jonathan/role-tracker/internal/connector"
	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct {
	st     types.SourceType
	boards map[string][]types.RawPosting
	errs   map[string]error

	mu    sync.Mutex
	calls []string
}

func (c *stubConnector) Type() types.SourceType { return c.st }

func (c *stubConnector) FetchPostings(_ context.Context, src types.Source) ([]types.RawPosting, error) {
	c.mu.Lock()
	c.calls = append(c.calls, src.Token)
	c.mu.Unlock()

	if err, ok := c.errs[src.Token]; ok {
		return nil, err
	}
	postings, ok := c.boards[src.Token]
	if !ok {
		return nil, &fetch.Error{URL: src.CareersURL, StatusCode: 404, Message: "not found"}
	}
	return postings, nil
}

// slugStub is a stubConnector that supports slug probing.
type slugStub struct {
	*stubConnector
}

func (c slugStub) BoardURL(token string) string {
	return "https://" + string(c.st) + ".example/" + token
}

func registryOf(t *testing.T, cs ...connector.Connector) *connector.Registry {
	t.Helper()
	r := connector.NewRegistry()
	for _, c := range cs {
		require.NoError(t, r.Register(c))
	}
	return r
}

func onePosting() []types.RawPosting {
	return []types.RawPosting{{Title: "Engineer"}}
}

func TestProber_CareersURLAcceptsEmptyBoard(t *testing.T) {
	gh := &stubConnector{st: types.SourceGreenhouse, boards: map[string][]types.RawPosting{"acme": nil}}
	lever := slugStub{&stubConnector{st: types.SourceLever, boards: map[string][]types.RawPosting{"acme": onePosting()}}}
	p := NewProber(registryOf(t, gh, lever), nil)

	careers := "https://boards.greenhouse.io/acme"
	found, err := p.Discover(context.Background(), types.Company{Name: "Acme", CareersURL: &careers})
	require.NoError(t, err)
	require.Len(t, found, 2)

	assert.Equal(t, types.SourceGreenhouse, found[0].SourceType)
	assert.Equal(t, "acme", found[0].Token)
	assert.Equal(t, careers, found[0].CareersURL)

	assert.Equal(t, types.SourceLever, found[1].SourceType)
	assert.Equal(t, "https://lever.example/acme", found[1].CareersURL)
}

func TestProber_GuessedBoardNeedsPostings(t *testing.T) {
	lever := slugStub{&stubConnector{st: types.SourceLever, boards: map[string][]types.RawPosting{
		"acme":    nil,
		"acmeinc": onePosting(),
	}}}
	p := NewProber(registryOf(t, lever), nil)

	found, err := p.Discover(context.Background(), types.Company{Name: "Acme Inc"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "acmeinc", found[0].Token)
	assert.Equal(t, []string{"acme", "acmeinc"}, lever.calls)
}

func TestProber_NotFoundTriesNextSlug(t *testing.T) {
	ashby := slugStub{&stubConnector{st: types.SourceAshby, boards: map[string][]types.RawPosting{
		"trade-desk": onePosting(),
	}}}
	p := NewProber(registryOf(t, ashby), nil)

	found, err := p.Discover(context.Background(), types.Company{Name: "The Trade Desk"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "trade-desk", found[0].Token)
	assert.Equal(t, []string{"tradedesk", "thetradedesk", "trade-desk"}, ashby.calls)
}

func TestProber_TransientAbortsAttempt(t *testing.T) {
	lever := slugStub{&stubConnector{st: types.SourceLever, errs: map[string]error{
		"acme": &fetch.Error{StatusCode: 503, Message: "unavailable"},
	}}}
	p := NewProber(registryOf(t, lever), nil)

	found, err := p.Discover(context.Background(), types.Company{Name: "Acme"})
	require.Error(t, err)
	assert.True(t, connector.IsTransient(err))
	assert.Nil(t, found)
}

func TestProber_PermanentErrorRulesOutCandidate(t *testing.T) {
	lever := slugStub{&stubConnector{st: types.SourceLever, errs: map[string]error{
		"acme": errors.New("malformed payload"),
	}}}
	p := NewProber(registryOf(t, lever), nil)

	found, err := p.Discover(context.Background(), types.Company{Name: "Acme"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestProber_SkipsConnectorsWithoutSlugs(t *testing.T) {
	wd := &stubConnector{st: types.SourceWorkday, boards: map[string][]types.RawPosting{"acme": onePosting()}}
	p := NewProber(registryOf(t, wd), nil)

	found, err := p.Discover(context.Background(), types.Company{Name: "Acme"})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Empty(t, wd.calls)
}

func TestProber_ProbeTypesLimitGuessing(t *testing.T) {
	lever := slugStub{&stubConnector{st: types.SourceLever, boards: map[string][]types.RawPosting{"acme": onePosting()}}}
	ashby := slugStub{&stubConnector{st: types.SourceAshby, boards: map[string][]types.RawPosting{"acme": onePosting()}}}
	p := NewProber(registryOf(t, lever, ashby), []types.SourceType{types.SourceAshby})

	found, err := p.Discover(context.Background(), types.Company{Name: "Acme"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, types.SourceAshby, found[0].SourceType)
	assert.Empty(t, lever.calls)
}

type pageStub struct {
	links map[string][]string
	err   error
}

func (s pageStub) BoardLinks(_ context.Context, pageURL string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.links[pageURL], nil
}

func TestProber_ScansCareersPage(t *testing.T) {
	gh := &stubConnector{st: types.SourceGreenhouse, boards: map[string][]types.RawPosting{"acme": nil}}
	lever := slugStub{&stubConnector{st: types.SourceLever, boards: map[string][]types.RawPosting{"acme": onePosting()}}}
	careers := "https://acme.com/careers"
	p := NewProber(registryOf(t, gh, lever), nil).WithPageScanner(pageStub{links: map[string][]string{
		careers: {"https://boards.greenhouse.io/acme", "https://jobs.ashbyhq.com/acme"},
	}})

	found, err := p.Discover(context.Background(), types.Company{Name: "Acme", CareersURL: &careers})
	require.NoError(t, err)
	require.Len(t, found, 2)

	assert.Equal(t, types.SourceGreenhouse, found[0].SourceType)
	assert.Equal(t, "https://boards.greenhouse.io/acme", found[0].CareersURL)
	assert.Equal(t, types.SourceLever, found[1].SourceType)
}

func TestProber_UnreadableCareersPageFallsBackToSlugs(t *testing.T) {
	lever := slugStub{&stubConnector{st: types.SourceLever, boards: map[string][]types.RawPosting{"acme": onePosting()}}}
	careers := "https://acme.com/careers"
	p := NewProber(registryOf(t, lever), nil).WithPageScanner(pageStub{err: errors.New("connection reset")})

	found, err := p.Discover(context.Background(), types.Company{Name: "Acme", CareersURL: &careers})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, types.SourceLever, found[0].SourceType)
}
