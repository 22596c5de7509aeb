package main

import (
	"fmt"

	"patron-sync/internal/batch"
	"patron-sync/internal/koha"
	"patron-sync/internal/workday"

	"github.com/spf13/cobra"
)

func newCreateCmd(a *app) *cobra.Command {
	var missing, proxPath, termEnd string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create patrons listed in a missing-patrons file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			for _, path := range []string{missing, proxPath} {
				if err := requireFile(path); err != nil {
					return err
				}
			}

			badges, err := a.loadBadges(proxPath)
			if err != nil {
				return err
			}
			mapper, err := a.newMapper(badges, termEnd)
			if err != nil {
				return err
			}
			records, err := workday.NewNormalizer().LoadFile(missing)
			if err != nil {
				return err
			}

			var creator batch.PatronCreator
			if !dryRun {
				client, err := koha.Connect(ctx, a.cfg)
				if err != nil {
					return err
				}
				creator = client
			}

			hist := a.startHistory(ctx, "create", dryRun)
			result, err := batch.CreateMissing(ctx, creator, mapper, records, dryRun)
			hist.finish(ctx, result)
			fmt.Fprint(cmd.OutOrStdout(), result.Summary())
			return err
		},
	}

	cmd.Flags().StringVar(&missing, "missing", "", "missing-patrons file written by update")
	cmd.Flags().StringVar(&proxPath, "prox", "", "badge report (CSV or XLSX)")
	cmd.Flags().StringVar(&termEnd, "term-end", "", "last day of the current term (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "map records without creating them")
	for _, name := range []string{"missing", "prox", "term-end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
