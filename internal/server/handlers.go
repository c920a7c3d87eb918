package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/history"
	"github.com/jonathan/role-tracker/internal/types"
)

// PostingsResponse is the body of both posting projections.
type PostingsResponse struct {
	RunID    string                `json:"run_id,omitempty"`
	RunAt    *time.Time            `json:"run_at,omitempty"`
	Postings []types.ProjectionRow `json:"postings"`
	Count    int                   `json:"count"`
}

// RunsResponse is the body of GET /runs.
type RunsResponse struct {
	Runs  []types.Run `json:"runs"`
	Count int         `json:"count"`
}

// parseQueryInt parses an integer query parameter with default and max values
func parseQueryInt(r *http.Request, key string, defaultValue, maxValue int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		return defaultValue
	}
	if maxValue > 0 && val > maxValue {
		return maxValue
	}
	return val
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(key))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: key, Message: "invalid UUID"}
	}
	return id, nil
}

// handleActivePostings lists every posting still reported by a source.
func (s *Server) handleActivePostings(w http.ResponseWriter, r *http.Request) {
	rows, err := history.ActivePostings(r.Context(), s.backend)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, postingsResponse(nil, rows))
}

// handleNewPostings lists postings first seen by a tracking run. Without
// run_id the latest finished tracking run is used.
func (s *Server) handleNewPostings(w http.ResponseWriter, r *http.Request) {
	run, err := s.trackRun(r)
	if err != nil {
		s.failure(w, r, err)
		return
	}

	rows, err := history.NewPostings(r.Context(), s.backend, run.StartedAt)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, postingsResponse(run, rows))
}

func (s *Server) trackRun(r *http.Request) (*types.Run, error) {
	raw := r.URL.Query().Get("run_id")
	if raw == "" {
		run, err := s.ledger.LatestFinishedRun(r.Context(), types.RunKindTrack)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, &ErrNotFound{Resource: "finished track run"}
		}
		return run, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &ErrValidation{Field: "run_id", Message: "invalid UUID"}
	}
	run, err := s.ledger.GetRun(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &ErrNotFound{Resource: "run", ID: raw}
	}
	if run.Kind != types.RunKindTrack {
		return nil, &ErrValidation{Field: "run_id", Message: "not a track run"}
	}
	return run, nil
}

func postingsResponse(run *types.Run, rows []types.ProjectionRow) PostingsResponse {
	if rows == nil {
		rows = []types.ProjectionRow{}
	}
	resp := PostingsResponse{Postings: rows, Count: len(rows)}
	if run != nil {
		resp.RunID = run.ID.String()
		resp.RunAt = &run.StartedAt
	}
	return resp
}

// handleListRuns lists recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 20, 100)

	runs, err := s.ledger.ListRuns(r.Context(), limit)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if runs == nil {
		runs = []types.Run{}
	}
	s.jsonResponse(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

// handleGetRun returns one run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.pathRun(r)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListSourceRuns returns the per-source attempts of a run.
func (s *Server) handleListSourceRuns(w http.ResponseWriter, r *http.Request) {
	run, err := s.pathRun(r)
	if err != nil {
		s.failure(w, r, err)
		return
	}

	srs, err := s.ledger.ListSourceRuns(r.Context(), run.ID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if srs == nil {
		srs = []types.SourceRun{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"run_id":      run.ID,
		"source_runs": srs,
		"count":       len(srs),
	})
}

func (s *Server) pathRun(r *http.Request) (*types.Run, error) {
	id, err := pathUUID(r, "id")
	if err != nil {
		return nil, err
	}
	run, err := s.ledger.GetRun(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &ErrNotFound{Resource: "run", ID: id.String()}
	}
	return run, nil
}
