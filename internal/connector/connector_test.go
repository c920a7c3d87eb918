package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct {
	st       types.SourceType
	postings []types.RawPosting
	err      error
}

func (s *stubConnector) Type() types.SourceType { return s.st }

func (s *stubConnector) FetchPostings(context.Context, types.Source) ([]types.RawPosting, error) {
	return s.postings, s.err
}

func testClient() *fetch.Client {
	return fetch.NewClient(&fetch.Options{RequestsPerSecond: 0})
}

func TestRegistry_RegisterResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubConnector{st: types.SourceLever}))
	require.NoError(t, r.Register(&stubConnector{st: types.SourceAshby}))
	assert.Error(t, r.Register(&stubConnector{st: types.SourceLever}))

	c, err := r.Resolve(types.SourceLever)
	require.NoError(t, err)
	assert.Equal(t, types.SourceLever, c.Type())

	_, err = r.Resolve(types.SourceWorkday)
	assert.Error(t, err)

	assert.Equal(t, []types.SourceType{types.SourceAshby, types.SourceLever}, r.Types())
}

func TestRegistry_FetchClassifiesAndSanitizes(t *testing.T) {
	r := NewRegistry()
	blank := " "
	require.NoError(t, r.Register(&stubConnector{st: types.SourceLever, postings: []types.RawPosting{
		{Title: "  Engineer ", SourceJobID: &blank, ApplyURL: " https://x.com/1 "},
		{Title: ""},
	}}))
	require.NoError(t, r.Register(&stubConnector{st: types.SourceAshby, err: errors.New("boom")}))

	got, err := r.Fetch(context.Background(), types.Source{SourceType: types.SourceLever})
	require.NoError(t, err)
	require.Len(t, got, 2, "postings without a title are kept")
	assert.Equal(t, "Engineer", got[0].Title)
	assert.Nil(t, got[0].SourceJobID)
	assert.Equal(t, "https://x.com/1", got[0].ApplyURL)
	assert.Empty(t, got[1].Title)

	_, err = r.Fetch(context.Background(), types.Source{SourceType: types.SourceAshby})
	var permanent *PermanentFetchError
	assert.ErrorAs(t, err, &permanent)

	_, err = r.Fetch(context.Background(), types.Source{SourceType: types.SourceICIMS})
	assert.ErrorAs(t, err, &permanent)
}

func TestClassify(t *testing.T) {
	notFound := &fetch.Error{URL: "u", StatusCode: http.StatusNotFound}
	unavailable := &fetch.Error{URL: "u", StatusCode: http.StatusServiceUnavailable}

	assert.Nil(t, Classify(types.SourceLever, nil))
	assert.True(t, IsNotFound(Classify(types.SourceLever, notFound)))
	assert.False(t, IsTransient(Classify(types.SourceLever, notFound)))
	assert.True(t, IsTransient(Classify(types.SourceLever, unavailable)))
	assert.True(t, IsTransient(Classify(types.SourceLever, fmt.Errorf("wrapped: %w", unavailable))))
	assert.False(t, IsTransient(Classify(types.SourceLever, errors.New("bad payload"))))

	already := &TransientFetchError{SourceType: types.SourceAshby, Err: errors.New("x")}
	assert.Same(t, already, Classify(types.SourceLever, already))
}

func TestGreenhouse_FetchPostings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/boards/acme/jobs" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"jobs":[
			{"id":101,"title":"Backend Engineer","location":{"name":"Remote"},"absolute_url":"https://boards.greenhouse.io/acme/jobs/101","updated_at":"2025-01-02T03:04:05-05:00"},
			{"id":102,"title":"Designer","location":{"name":"NYC"},"absolute_url":"https://boards.greenhouse.io/acme/jobs/102"}
		]}`))
	}))
	defer server.Close()

	g := NewGreenhouse(testClient(), server.URL)
	got, err := g.FetchPostings(context.Background(), types.Source{SourceType: types.SourceGreenhouse, Token: "acme"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "101", *got[0].SourceJobID)
	assert.Equal(t, "Remote", got[0].Location)
	require.NotNil(t, got[0].PostedAt)
	assert.Equal(t, 8, got[0].PostedAt.Hour())
	assert.Nil(t, got[1].PostedAt)

	_, err = g.FetchPostings(context.Background(), types.Source{Token: "missing"})
	assert.True(t, IsNotFound(err))

	_, err = g.FetchPostings(context.Background(), types.Source{})
	var permanent *PermanentFetchError
	assert.ErrorAs(t, err, &permanent)

	assert.Equal(t, "https://boards.greenhouse.io/acme", g.BoardURL("acme"))
}

func TestLever_FetchPostings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/postings/acme", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("mode"))
		_, _ = w.Write([]byte(`[{"id":"a-1","text":"SRE","categories":{"location":"Berlin"},"hostedUrl":"https://jobs.lever.co/acme/a-1","createdAt":1700000000000}]`))
	}))
	defer server.Close()

	got, err := NewLever(testClient(), server.URL).FetchPostings(context.Background(), types.Source{Token: "acme"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a-1", *got[0].SourceJobID)
	assert.Equal(t, "SRE", got[0].Title)
	assert.Equal(t, "Berlin", got[0].Location)
	assert.Equal(t, int64(1700000000), got[0].PostedAt.Unix())
}

func TestLever_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewLever(testClient(), server.URL).FetchPostings(context.Background(), types.Source{Token: "acme"})
	assert.True(t, IsTransient(err))
}

func TestAshby_FetchPostings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/posting-api/job-board/acme", r.URL.Path)
		_, _ = w.Write([]byte(`{"jobs":[{"id":"u-1","title":"PM","location":"London","jobUrl":"https://jobs.ashbyhq.com/acme/u-1","publishedAt":"2025-02-01T00:00:00.000Z"}]}`))
	}))
	defer server.Close()

	got, err := NewAshby(testClient(), server.URL).FetchPostings(context.Background(), types.Source{Token: "acme"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u-1", *got[0].SourceJobID)
	assert.Equal(t, 2025, got[0].PostedAt.Year())
}

func TestWorkday_FetchPostingsPaginates(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wday/cxs/acme/External/jobs", r.URL.Path)
		calls++
		if calls == 1 {
			var sb []byte
			sb = append(sb, `{"total":21,"jobPostings":[`...)
			for i := 0; i < workdayPageSize; i++ {
				if i > 0 {
					sb = append(sb, ',')
				}
				sb = append(sb, fmt.Sprintf(`{"title":"Job %d","externalPath":"/job/Remote/Job-%d_JR-%d","locationsText":"Remote"}`, i, i, i)...)
			}
			sb = append(sb, "]}"...)
			_, _ = w.Write(sb)
			return
		}
		_, _ = w.Write([]byte(`{"total":21,"jobPostings":[{"title":"Last","externalPath":"/job/X/Last_JR-99","bulletFields":["REQ-99"]}]}`))
	}))
	defer server.Close()

	src := types.Source{Token: "acme/External", CareersURL: "https://acme.wd5.myworkdayjobs.com/en-US/External"}
	got, err := NewWorkday(testClient(), server.URL).FetchPostings(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, got, 21)
	assert.Equal(t, "JR-0", *got[0].SourceJobID)
	assert.Equal(t, "https://acme.wd5.myworkdayjobs.com/en-US/External/job/Remote/Job-0_JR-0", got[0].ApplyURL)
	assert.Equal(t, "REQ-99", *got[20].SourceJobID)
}

func TestWorkday_BadToken(t *testing.T) {
	_, err := NewWorkday(testClient(), "").FetchPostings(context.Background(), types.Source{Token: "acme"})
	var permanent *PermanentFetchError
	assert.ErrorAs(t, err, &permanent)
}

func TestICIMS_FetchPostings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/search", r.URL.Path)
		_, _ = w.Write([]byte(`<html><body><div class="iCIMS_JobsTable">
			<div class="row">
				<a href="/jobs/1234/data-engineer/job"><h2>Data Engineer</h2></a>
				<span class="job-location">Austin, TX</span>
			</div>
			<div class="row">
				<a href="https://careers-acme.icims.com/jobs/5678/analyst/job?in_iframe=1">Analyst</a>
				<a href="/jobs/5678/analyst/job">Analyst (dup)</a>
			</div>
			<a href="/jobs/intro">Intro</a>
		</div></body></html>`))
	}))
	defer server.Close()

	got, err := NewICIMS(testClient(), server.URL).FetchPostings(context.Background(), types.Source{Token: "careers-acme.icims.com"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1234", *got[0].SourceJobID)
	assert.Equal(t, "Data Engineer", got[0].Title)
	assert.Equal(t, "Austin, TX", got[0].Location)
	assert.Equal(t, server.URL+"/jobs/1234/data-engineer/job", got[0].ApplyURL)
	assert.Equal(t, "5678", *got[1].SourceJobID)
}

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(testClient())
	assert.Equal(t, []types.SourceType{
		types.SourceAshby, types.SourceGreenhouse, types.SourceICIMS, types.SourceLever, types.SourceWorkday,
	}, r.Types())
}
