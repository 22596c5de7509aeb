package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"patron-sync/internal/config"
	"patron-sync/internal/logger"
	"patron-sync/internal/mapping"
	"patron-sync/internal/model"
	"patron-sync/internal/prox"
	"patron-sync/internal/reconcile"

	"github.com/rs/zerolog"
)

type Reconciler interface {
	CheckPatron(ctx context.Context, person model.Person, badge string, dryRun bool) (reconcile.Result, error)
}

// Recorder receives every per-record outcome of a run.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome model.OutcomeRecord) error
}

type Options struct {
	DryRun bool
	// Limit truncates the input; zero means no limit.
	Limit int
	// Previous, when set, restricts lookups to people whose badge is new or
	// changed since that report.
	Previous  prox.IdentifierMap
	OutputDir string
}

type Driver struct {
	engine   Reconciler
	badges   prox.IdentifierMap
	opts     Options
	recorder Recorder
	runID    string
	now      func() time.Time
	log      zerolog.Logger
}

func NewDriver(cfg *config.Config, engine Reconciler, badges prox.IdentifierMap, opts Options) *Driver {
	if opts.OutputDir == "" {
		opts.OutputDir = cfg.Output.Dir
	}
	return &Driver{
		engine: engine,
		badges: badges,
		opts:   opts,
		now:    time.Now,
		log:    logger.Get(),
	}
}

func (d *Driver) WithRecorder(recorder Recorder, runID string) *Driver {
	d.recorder = recorder
	d.runID = runID
	return d
}

// Run reconciles every record in order. A DataInconsistencyError stops the
// batch and is returned along with the counts so far; every other failure
// is counted and the batch moves on.
func (d *Driver) Run(ctx context.Context, records []model.Record) (*model.BatchResult, error) {
	if d.opts.Limit > 0 && len(records) > d.opts.Limit {
		records = records[:d.opts.Limit]
	}

	d.log.Info().
		Int("records", len(records)).
		Int("badges", len(d.badges)).
		Bool("dry_run", d.opts.DryRun).
		Bool("changed_only", d.opts.Previous != nil).
		Msg("Starting patron reconciliation")

	result := model.NewBatchResult()
	runErr := d.run(ctx, records, result)

	if len(result.MissingRecords) > 0 {
		path, err := WriteMissing(d.opts.OutputDir, d.now(), result.MissingRecords)
		if err != nil {
			d.log.Error().Err(err).Msg("Failed to write missing patrons file")
			if runErr == nil {
				runErr = err
			}
		} else {
			result.MissingFile = path
			d.log.Info().Int("count", len(result.MissingRecords)).Str("file", path).Msg("Wrote missing patrons")
		}
	}

	return result, runErr
}

func (d *Driver) run(ctx context.Context, records []model.Record, result *model.BatchResult) error {
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		ident := record.Person.Ident()
		log := d.log.With().Str("username", ident.Username).Logger()

		if reason := mapping.ReconcileSkipReason(record.Person); reason != "" {
			result.Skipped++
			log.Debug().Str("reason", reason).Msg("Skipping record")
			d.record(ctx, ident, model.OutcomeSkipped, reason)
			continue
		}

		badge, hasBadge := d.badges.Lookup(ident.UniversalID)
		if !hasBadge {
			result.NoProx++
			log.Info().
				Str("universal_id", ident.UniversalID).
				Str("name", ident.FirstName+" "+ident.LastName).
				Msg("No prox number for universal ID")
		}

		if d.opts.Previous != nil {
			if !hasBadge {
				continue
			}
			if prev, ok := d.opts.Previous.Lookup(ident.UniversalID); ok && prev == badge {
				result.ProxUnchanged++
				log.Debug().Msg("Prox number unchanged since previous report")
				continue
			}
		}

		res, err := d.engine.CheckPatron(ctx, record.Person, badge, d.opts.DryRun)
		if err != nil {
			result.Errors++
			d.record(ctx, ident, model.OutcomeError, err.Error())
			return fmt.Errorf("failed to reconcile %s: %w", ident.Username, err)
		}

		detail := ""
		switch res.Outcome {
		case model.OutcomeUpdated:
			result.Updated++
			var changed []string
			if res.NameChanged {
				result.NameChanges++
				changed = append(changed, "name")
			}
			if res.ProxChanged {
				result.ProxChanges++
				changed = append(changed, "prox")
			}
			detail = strings.Join(changed, ",")
		case model.OutcomeUnchanged:
			result.Unchanged++
		case model.OutcomeMissing:
			result.AddMissing(record.Raw)
		case model.OutcomeError:
			result.Errors++
			if res.Err != nil {
				detail = res.Err.Error()
			}
		}
		d.record(ctx, ident, res.Outcome, detail)
	}
	return nil
}

func (d *Driver) record(ctx context.Context, ident model.Identity, outcome model.Outcome, detail string) {
	if d.recorder == nil {
		return
	}
	err := d.recorder.RecordOutcome(ctx, model.OutcomeRecord{
		RunID:       d.runID,
		Username:    ident.Username,
		UniversalID: ident.UniversalID,
		Outcome:     outcome,
		Detail:      detail,
		CreatedAt:   d.now(),
	})
	if err != nil {
		d.log.Warn().Err(err).Str("username", ident.Username).Msg("Failed to record outcome")
	}
}
