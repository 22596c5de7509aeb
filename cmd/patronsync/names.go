package main

import (
	"fmt"

	"patron-sync/internal/batch"
	"patron-sync/internal/koha"
	"patron-sync/internal/reconcile"

	"github.com/spf13/cobra"
)

func newNamesCmd(a *app) *cobra.Command {
	var path string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "names",
		Short: "Apply an HR name-change report to existing patrons",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			changes, err := batch.ReadNameChangesFile(path)
			if err != nil {
				return err
			}
			a.log.Info().Str("file", path).Int("changes", len(changes)).Msg("Processing name changes")

			client, err := koha.Connect(ctx, a.cfg)
			if err != nil {
				return err
			}

			hist := a.startHistory(ctx, "names", dryRun)
			result, err := batch.ApplyNameChanges(ctx, reconcile.NewEngine(a.cfg, client), changes, dryRun)
			hist.finish(ctx, result)
			fmt.Fprint(cmd.OutOrStdout(), result.Summary())
			return err
		},
	}

	cmd.Flags().StringVar(&path, "csv", "", "name-change report (CSV)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without writing them")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}
