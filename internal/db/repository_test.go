package db

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"patron-sync/internal/model"
	"patron-sync/pkg/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)

func newMockRepository(t *testing.T) (*repository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &repository{db: conn, now: func() time.Time { return fixedNow }}, mock
}

func TestCreateRun(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sync_runs (id, command, dry_run, started_at) VALUES (?, ?, ?, ?)`)).
		WithArgs(sqlmock.AnyArg(), "update", true, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run, err := repo.CreateRun(context.Background(), "update", true)
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, "update", run.Command)
	assert.True(t, run.DryRun)
	assert.Equal(t, fixedNow, run.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRun(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sync_runs SET finished_at = ?, summary_json = ? WHERE id = ?`)).
		WithArgs(fixedNow, `{"updated":1,"unchanged":0,"name_change":0,"prox_change":1,"no_prox":0,"prox_unchanged":0,"skipped":0,"missing":0,"error":0}`, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := model.NewBatchResult()
	result.Updated = 1
	result.ProxChanges = 1
	require.NoError(t, repo.FinishRun(context.Background(), "run-1", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRun_UnknownRun(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE sync_runs`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.FinishRun(context.Background(), "nope", map[string]int{})
	assert.ErrorIs(t, err, errors.ErrRunNotFound)
}

func TestRecordOutcome(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`INSERT INTO sync_outcomes`).
		WithArgs("run-1", "alee", "1000001", "missing", nil, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO sync_outcomes`).
		WithArgs("run-1", "bchen", "1000002", "updated", "prox", fixedNow).
		WillReturnResult(sqlmock.NewResult(2, 1))

	ctx := context.Background()
	require.NoError(t, repo.RecordOutcome(ctx, model.OutcomeRecord{
		RunID: "run-1", Username: "alee", UniversalID: "1000001", Outcome: model.OutcomeMissing, CreatedAt: fixedNow,
	}))
	require.NoError(t, repo.RecordOutcome(ctx, model.OutcomeRecord{
		RunID: "run-1", Username: "bchen", UniversalID: "1000002", Outcome: model.OutcomeUpdated, Detail: "prox", CreatedAt: fixedNow,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	repo, mock := newMockRepository(t)

	finished := fixedNow.Add(time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, command, dry_run, started_at, finished_at, summary_json FROM sync_runs WHERE id = ?`)).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "command", "dry_run", "started_at", "finished_at", "summary_json"}).
			AddRow("run-1", "update", false, fixedNow, finished, `{"updated":3}`))

	run, err := repo.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "update", run.Command)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, finished, *run.FinishedAt)
	assert.JSONEq(t, `{"updated":3}`, string(run.Summary))
}

func TestGetRun_Unfinished(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT id, command`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "command", "dry_run", "started_at", "finished_at", "summary_json"}).
			AddRow("run-2", "csv", false, fixedNow, nil, nil))

	run, err := repo.GetRun(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Nil(t, run.FinishedAt)
	assert.Nil(t, run.Summary)
}

func TestGetRun_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT id, command`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrRunNotFound)
}

func TestListOutcomes(t *testing.T) {
	repo, mock := newMockRepository(t)

	columns := []string{"run_id", "username", "universal_id", "outcome", "detail", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sync_outcomes WHERE run_id = ? AND outcome = ? ORDER BY id`)).
		WithArgs("run-1", "missing").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("run-1", "alee", "1000001", "missing", nil, fixedNow))

	outcomes, err := repo.ListOutcomes(context.Background(), "run-1", model.OutcomeMissing)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, model.OutcomeMissing, outcomes[0].Outcome)
	assert.Empty(t, outcomes[0].Detail)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM sync_outcomes WHERE run_id = ? ORDER BY id`)).
		WithArgs("run-2").
		WillReturnRows(sqlmock.NewRows(columns))

	outcomes, err = repo.ListOutcomes(context.Background(), "run-2", "")
	require.NoError(t, err)
	assert.NotNil(t, outcomes)
	assert.Empty(t, outcomes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS sync_runs`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS sync_outcomes`)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), conn))
	assert.NoError(t, mock.ExpectationsWereMet())
}
