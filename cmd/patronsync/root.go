package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"patron-sync/internal/config"
	"patron-sync/internal/db"
	"patron-sync/internal/logger"
	"patron-sync/internal/mapping"
	"patron-sync/internal/prox"
	"patron-sync/internal/storage"
	"patron-sync/pkg/errors"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root command has
// loaded configuration.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	out       io.Writer
	logLevel  string
	logFormat string
	today     func() time.Time

	openHistory func(ctx context.Context) (db.Repository, func(), error)
}

func newApp() *app {
	a := &app{out: os.Stdout, today: time.Now}
	a.openHistory = a.connectHistory
	return a
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(newApp())
}

func newRootCmdFor(a *app) *cobra.Command {

	root := &cobra.Command{
		Use:           "patronsync",
		Short:         "Keep library patron records in step with HR exports and the badge system",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetOut(a.out)

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "console", "log format (console or json)")

	root.AddCommand(
		newCSVCmd(a),
		newUpdateCmd(a),
		newNamesCmd(a),
		newCreateCmd(a),
		newDeleteCmd(a),
		newFetchCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	cfg.Logging.Format = a.logFormat

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	a.cfg = cfg
	a.log = logger.Get()
	return nil
}

func (a *app) loadBadges(path string) (prox.IdentifierMap, error) {
	badges, err := prox.NewBuilder().BuildFile(path)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("file", path).Int("badges", len(badges)).Msg("Loaded badge report")
	return badges, nil
}

func (a *app) newMapper(badges prox.IdentifierMap, termEnd string) (*mapping.Mapper, error) {
	end, err := time.Parse(mapping.DateLayout, termEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid --term-end %q, expected YYYY-MM-DD: %w", termEnd, err)
	}

	tables, err := mapping.LoadTables(a.cfg.Mapping.TablesFile)
	if err != nil {
		return nil, err
	}
	return mapping.NewMapper(a.cfg, tables, badges, end), nil
}

// archive uploads files to the configured bucket. Archive failures are
// logged and do not fail the command.
func (a *app) archive(ctx context.Context, paths ...string) {
	store, err := storage.NewS3Storage(a.cfg)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to open archive storage")
		return
	}
	if _, err := storage.NewArchiver(a.cfg, store).Archive(ctx, paths...); err != nil {
		a.log.Error().Err(err).Msg("Failed to archive run files")
	}
}

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errors.ErrMissingInput, path)
		}
		return err
	}
	return nil
}
