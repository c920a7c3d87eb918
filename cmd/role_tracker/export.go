package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/history"
	intschemas "github.com/jonathan/role-tracker/internal/schemas"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/jonathan/role-tracker/schemas"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Export file names.
const (
	activeFile     = "active_postings.json"
	newFile        = "new_postings.json"
	runSummaryFile = "run_summary.json"
)

// projectionFile is the exported document; it must satisfy
// schemas/projection.schema.json.
type projectionFile struct {
	Kind        string                `json:"kind"`
	RunID       string                `json:"run_id,omitempty"`
	GeneratedAt time.Time             `json:"generated_at"`
	Postings    []types.ProjectionRow `json:"postings"`
}

var exportFlags struct {
	dir   string
	runID string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the new and active posting projections as JSON",
	Long: `Writes active_postings.json with every open posting, and new_postings.json plus run_summary.json
for a tracking run (--run-id, or the latest finished one). Every file is validated against its
JSON Schema before it is written.`,
	RunE: runExportCmd,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlags.dir, "out", "o", "", "Output directory (defaults to export.dir)")
	exportCmd.Flags().StringVar(&exportFlags.runID, "run-id", "", "Tracking run whose new postings to export")
	rootCmd.AddCommand(exportCmd)
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := exportFlags.dir
	if dir == "" {
		dir = a.cfg.Export.Dir
	}
	var runID *uuid.UUID
	if exportFlags.runID != "" {
		id, err := uuid.Parse(exportFlags.runID)
		if err != nil {
			return fmt.Errorf("invalid --run-id: %w", err)
		}
		runID = &id
	}

	paths, err := a.export(cmd.Context(), dir, runID)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

// export writes the projections to dir and returns the written paths.
// Without runID the latest finished tracking run is used; when there is none
// only the active projection is written.
func (a *app) export(ctx context.Context, dir string, runID *uuid.UUID) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	now := time.Now().UTC()

	active, err := history.ActivePostings(ctx, a.store)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, activeFile)
	if err := writeProjection(path, projectionFile{Kind: "active", GeneratedAt: now, Postings: active}); err != nil {
		return nil, err
	}
	paths := []string{path}

	run, err := a.exportRun(ctx, runID)
	if err != nil {
		return paths, err
	}
	if run == nil {
		a.logger.Warn("no finished tracking run; skipping new postings export")
		return paths, nil
	}

	fresh, err := history.NewPostings(ctx, a.store, run.StartedAt)
	if err != nil {
		return paths, err
	}
	path = filepath.Join(dir, newFile)
	doc := projectionFile{Kind: "new", RunID: run.ID.String(), GeneratedAt: now, Postings: fresh}
	if err := writeProjection(path, doc); err != nil {
		return paths, err
	}
	paths = append(paths, path)

	path = filepath.Join(dir, runSummaryFile)
	if err := writeValidated(path, schemas.RunSummary, run); err != nil {
		return paths, err
	}
	paths = append(paths, path)

	a.logger.Info("exported projections",
		zap.String("dir", dir),
		zap.Int("active", len(active)),
		zap.Int("new", len(fresh)),
	)
	return paths, nil
}

func (a *app) exportRun(ctx context.Context, runID *uuid.UUID) (*types.Run, error) {
	if runID == nil {
		return a.ledger.LatestFinishedRun(ctx, types.RunKindTrack)
	}
	run, err := a.ledger.GetRun(ctx, *runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrRunNotFound, *runID)
	}
	if run.Kind != types.RunKindTrack {
		return nil, fmt.Errorf("run %s is a %s run, not a track run", *runID, run.Kind)
	}
	return run, nil
}

func writeProjection(path string, doc projectionFile) error {
	if doc.Postings == nil {
		doc.Postings = []types.ProjectionRow{}
	}
	return writeValidated(path, schemas.Projection, doc)
}

// writeValidated checks v against the named schema and writes it as
// indented JSON.
func writeValidated(path, schemaName string, v any) error {
	schema, err := schemas.Load(schemaName)
	if err != nil {
		return err
	}
	if err := intschemas.ValidateValue(schema, v); err != nil {
		return fmt.Errorf("%s does not match %s: %w", filepath.Base(path), schemaName, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
