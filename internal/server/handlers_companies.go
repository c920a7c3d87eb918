package server

import (
	"net/http"

	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
)

// handleListCompanies pages through the registry in cursor order.
func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50, 500)
	offset := parseQueryInt(r, "offset", 0, 0)

	total, err := s.backend.CountCompanies(r.Context())
	if err != nil {
		s.failure(w, r, store.IOError(err, "failed to count companies"))
		return
	}
	companies, err := s.backend.ListCompaniesRange(r.Context(), offset, limit)
	if err != nil {
		s.failure(w, r, store.IOError(err, "failed to list companies"))
		return
	}
	if companies == nil {
		companies = []types.Company{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"companies": companies,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// handleGetCompany returns a company with its sources.
func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.failure(w, r, err)
		return
	}

	company, err := s.backend.GetCompany(r.Context(), id)
	if err != nil {
		s.failure(w, r, store.IOError(err, "failed to get company"))
		return
	}
	if company == nil {
		s.failure(w, r, &ErrNotFound{Resource: "company", ID: id.String()})
		return
	}

	sources, err := s.backend.ListSources(r.Context(), id)
	if err != nil {
		s.failure(w, r, store.IOError(err, "failed to list sources"))
		return
	}
	if sources == nil {
		sources = []types.Source{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"company": company,
		"sources": sources,
	})
}

// handleCursor returns the persisted discovery cursor.
func (s *Server) handleCursor(w http.ResponseWriter, r *http.Request) {
	cursor, err := s.backend.LoadCursor(r.Context())
	if err != nil {
		s.failure(w, r, store.IOError(err, "failed to load cursor"))
		return
	}
	s.jsonResponse(w, http.StatusOK, cursor)
}
