package main

import (
	"context"

	"patron-sync/internal/batch"
	"patron-sync/internal/db"
	"patron-sync/internal/model"

	"github.com/rs/zerolog"
)

// history records a run in the database when database.enabled is set.
// All methods are no-ops on a nil history, and failures are logged only.
type history struct {
	repo  db.Repository
	close func()
	run   *model.Run
	log   zerolog.Logger
}

// connectHistory opens the MySQL run history and makes sure its tables
// exist.
func (a *app) connectHistory(ctx context.Context) (db.Repository, func(), error) {
	conn, err := db.NewConnection(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return db.NewRepository(conn), func() { conn.Close() }, nil
}

func (a *app) startHistory(ctx context.Context, command string, dryRun bool) *history {
	if !a.cfg.Database.Enabled {
		return nil
	}

	repo, closeFn, err := a.openHistory(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("Run history unavailable")
		return nil
	}

	run, err := repo.CreateRun(ctx, command, dryRun)
	if err != nil {
		a.log.Warn().Err(err).Msg("Run history unavailable")
		closeFn()
		return nil
	}

	a.log.Info().Str("run_id", run.ID).Msg("Recording run history")
	return &history{repo: repo, close: closeFn, run: run, log: a.log}
}

func (h *history) attach(d *batch.Driver) *batch.Driver {
	if h == nil {
		return d
	}
	return d.WithRecorder(h.repo, h.run.ID)
}

func (h *history) finish(ctx context.Context, summary any) {
	if h == nil {
		return
	}
	if err := h.repo.FinishRun(ctx, h.run.ID, summary); err != nil {
		h.log.Warn().Err(err).Str("run_id", h.run.ID).Msg("Failed to finish run")
	}
	h.close()
}
