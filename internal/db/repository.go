package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"patron-sync/internal/model"
	"patron-sync/pkg/errors"

	"github.com/google/uuid"
)

type Repository interface {
	CreateRun(ctx context.Context, command string, dryRun bool) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, summary any) error
	RecordOutcome(ctx context.Context, outcome model.OutcomeRecord) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListOutcomes(ctx context.Context, runID string, outcome model.Outcome) ([]model.OutcomeRecord, error)
}

type repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) CreateRun(ctx context.Context, command string, dryRun bool) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.NewString(),
		Command:   command,
		DryRun:    dryRun,
		StartedAt: r.now().UTC(),
	}

	query := `INSERT INTO sync_runs (id, command, dry_run, started_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, run.ID, run.Command, run.DryRun, run.StartedAt); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run as finished and stores its summary counters.
func (r *repository) FinishRun(ctx context.Context, runID string, summary any) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	query := `UPDATE sync_runs SET finished_at = ?, summary_json = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, r.now().UTC(), string(data), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", errors.ErrRunNotFound, runID)
	}
	return nil
}

func (r *repository) RecordOutcome(ctx context.Context, outcome model.OutcomeRecord) error {
	query := `INSERT INTO sync_outcomes (run_id, username, universal_id, outcome, detail, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	var detail *string
	if outcome.Detail != "" {
		detail = &outcome.Detail
	}

	_, err := r.db.ExecContext(ctx, query, outcome.RunID, outcome.Username, outcome.UniversalID,
		string(outcome.Outcome), detail, outcome.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

func (r *repository) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	query := `SELECT id, command, dry_run, started_at, finished_at, summary_json FROM sync_runs WHERE id = ?`

	var run model.Run
	var finishedAt sql.NullTime
	var summary sql.NullString
	err := r.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID, &run.Command, &run.DryRun, &run.StartedAt, &finishedAt, &summary,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", errors.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if summary.Valid {
		run.Summary = json.RawMessage(summary.String)
	}
	return &run, nil
}

// ListOutcomes returns a run's outcomes in insertion order. An empty
// outcome returns all of them.
func (r *repository) ListOutcomes(ctx context.Context, runID string, outcome model.Outcome) ([]model.OutcomeRecord, error) {
	query := `SELECT run_id, username, universal_id, outcome, detail, created_at
			  FROM sync_outcomes WHERE run_id = ?`
	args := []any{runID}
	if outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, string(outcome))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []model.OutcomeRecord{}
	for rows.Next() {
		var rec model.OutcomeRecord
		var detail sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Username, &rec.UniversalID, &rec.Outcome, &detail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		rec.Detail = detail.String
		outcomes = append(outcomes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}

	return outcomes, nil
}
