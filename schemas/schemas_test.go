package schemas

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/schemas"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllSchemaFiles_ValidJSON(t *testing.T) {
	names := Names()
	assert.ElementsMatch(t, []string{Projection, RunSummary}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			content, err := Load(name)
			require.NoError(t, err)

			var schemaObj map[string]any
			require.NoError(t, json.Unmarshal([]byte(content), &schemaObj))
			assert.Contains(t, schemaObj, "$schema")
			assert.Contains(t, schemaObj, "properties")
		})
	}
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("unknown.schema.json")
	assert.Error(t, err)
}

func TestProjectionSchema(t *testing.T) {
	content, err := Load(Projection)
	require.NoError(t, err)

	valid := map[string]any{
		"kind":         "new",
		"run_id":       uuid.NewString(),
		"generated_at": time.Now().UTC(),
		"postings": []types.ProjectionRow{{
			Company:     "Acme",
			Title:       "Engineer",
			Location:    "Remote",
			ApplyURL:    "https://example.com/jobs/1",
			FirstSeenAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
			Status:      types.PostingActive,
		}},
	}
	assert.NoError(t, schemas.ValidateValue(content, valid))

	valid["kind"] = "stale"
	assert.Error(t, schemas.ValidateValue(content, valid))
}

func TestRunSummarySchema(t *testing.T) {
	content, err := Load(RunSummary)
	require.NoError(t, err)

	finished := time.Now().UTC()
	msg := "connection refused"
	run := types.Run{
		ID:         uuid.New(),
		Kind:       types.RunKindTrack,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
		Status:     types.RunStatusFailed,
		Counters:   types.RunCounters{Attempted: 3, Succeeded: 2, Failed: 1},
		Error:      &msg,
	}
	assert.NoError(t, schemas.ValidateValue(content, run))
}
