package main

import (
	"context"
	"fmt"

	"patron-sync/internal/batch"
	"patron-sync/internal/koha"
	"patron-sync/internal/prox"
	"patron-sync/internal/reconcile"
	"patron-sync/internal/snapshot"
	"patron-sync/internal/workday"

	"github.com/spf13/cobra"
)

type updateOptions struct {
	prox        string
	hr          string
	dryRun      bool
	limit       int
	previous    string
	changedOnly bool
	archive     bool
}

func newUpdateCmd(a *app) *cobra.Command {
	var opts updateOptions

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Correct badge numbers and names of existing patrons",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpdate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.prox, "prox", "", "badge report (CSV or XLSX)")
	cmd.Flags().StringVar(&opts.hr, "hr", "", "HR export (JSON)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report changes without writing them")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "only process the first N records")
	cmd.Flags().StringVar(&opts.previous, "previous", "", "previous badge report; only changed badges are checked")
	cmd.Flags().BoolVar(&opts.changedOnly, "changed-only", false, "only check badges changed since the last saved snapshot")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "upload inputs and the missing patrons file to the archive bucket")
	_ = cmd.MarkFlagRequired("prox")
	_ = cmd.MarkFlagRequired("hr")
	return cmd
}

func (a *app) runUpdate(cmd *cobra.Command, opts updateOptions) error {
	ctx := cmd.Context()
	for _, path := range []string{opts.prox, opts.hr} {
		if err := requireFile(path); err != nil {
			return err
		}
	}

	badges, err := a.loadBadges(opts.prox)
	if err != nil {
		return err
	}
	records, err := workday.NewNormalizer().LoadFile(opts.hr)
	if err != nil {
		return err
	}

	previous, err := a.previousBadges(ctx, opts)
	if err != nil {
		return err
	}

	client, err := koha.Connect(ctx, a.cfg)
	if err != nil {
		return err
	}

	hist := a.startHistory(ctx, "update", opts.dryRun)
	driver := hist.attach(batch.NewDriver(a.cfg, reconcile.NewEngine(a.cfg, client), badges, batch.Options{
		DryRun:   opts.dryRun,
		Limit:    opts.limit,
		Previous: previous,
	}))

	result, runErr := driver.Run(ctx, records)
	hist.finish(ctx, result)
	fmt.Fprint(cmd.OutOrStdout(), result.Summary())

	if runErr == nil && !opts.dryRun {
		a.saveSnapshot(ctx, badges)
	}
	if opts.archive {
		a.archive(ctx, opts.prox, opts.hr, result.MissingFile)
	}
	return runErr
}

// previousBadges resolves the comparison map for changed-only runs: an
// explicit --previous report wins over the saved snapshot.
func (a *app) previousBadges(ctx context.Context, opts updateOptions) (prox.IdentifierMap, error) {
	if opts.previous != "" {
		if err := requireFile(opts.previous); err != nil {
			return nil, err
		}
		return a.loadBadges(opts.previous)
	}
	if !opts.changedOnly {
		return nil, nil
	}
	if !a.cfg.Redis.Enabled {
		return nil, fmt.Errorf("--changed-only without --previous needs redis.enabled")
	}

	client, err := snapshot.NewRedisClient(a.cfg)
	if err != nil {
		return nil, err
	}
	store := snapshot.NewStore(a.cfg, client)
	defer store.Close()

	previous, ok, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.log.Warn().Msg("No saved badge snapshot, checking every record")
		return nil, nil
	}
	return previous, nil
}

func (a *app) saveSnapshot(ctx context.Context, badges prox.IdentifierMap) {
	if !a.cfg.Redis.Enabled {
		return
	}
	client, err := snapshot.NewRedisClient(a.cfg)
	if err != nil {
		a.log.Warn().Err(err).Msg("Badge snapshot not saved")
		return
	}
	store := snapshot.NewStore(a.cfg, client)
	defer store.Close()

	if err := store.Save(ctx, badges); err != nil {
		a.log.Warn().Err(err).Msg("Badge snapshot not saved")
	}
}
