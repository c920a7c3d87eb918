package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestErrNotFound(t *testing.T) {
	err := &ErrNotFound{Resource: "run", ID: "abc"}
	assert.Equal(t, "run not found: abc", err.Error())
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))

	assert.Equal(t, "finished track run not found", (&ErrNotFound{Resource: "finished track run"}).Error())
}

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "run_id", Message: "invalid UUID"}
	assert.Equal(t, "validation error: run_id - invalid UUID", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"wrapped not found", fmt.Errorf("lookup: %w", &ErrNotFound{Resource: "company"}), http.StatusNotFound},
		{"run not found", types.ErrRunNotFound, http.StatusNotFound},
		{"store failure", store.IOError(errors.New("conn reset"), "failed to list runs"), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
