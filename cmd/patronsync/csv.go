package main

import (
	"fmt"
	"os"
	"path/filepath"

	"patron-sync/internal/export"
	"patron-sync/internal/workday"

	"github.com/spf13/cobra"
)

type csvOptions struct {
	students  string
	employees string
	prox      string
	termEnd   string
	outDir    string
	archive   bool
}

func newCSVCmd(a *app) *cobra.Command {
	var opts csvOptions

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Write the patron bulk-import CSV from HR exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCSV(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.students, "students", "", "student HR export (JSON)")
	cmd.Flags().StringVar(&opts.employees, "employees", "", "employee HR export (JSON)")
	cmd.Flags().StringVar(&opts.prox, "prox", "", "badge report (CSV or XLSX)")
	cmd.Flags().StringVar(&opts.termEnd, "term-end", "", "last day of the current term (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "output directory (default output.dir)")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "upload inputs and output to the archive bucket")
	for _, name := range []string{"students", "employees", "prox", "term-end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) runCSV(cmd *cobra.Command, opts csvOptions) error {
	ctx := cmd.Context()
	for _, path := range []string{opts.students, opts.employees, opts.prox} {
		if err := requireFile(path); err != nil {
			return err
		}
	}

	badges, err := a.loadBadges(opts.prox)
	if err != nil {
		return err
	}
	mapper, err := a.newMapper(badges, opts.termEnd)
	if err != nil {
		return err
	}

	normalizer := workday.NewNormalizer()
	students, err := normalizer.LoadFile(opts.students)
	if err != nil {
		return err
	}
	employees, err := normalizer.LoadFile(opts.employees)
	if err != nil {
		return err
	}

	outDir := opts.outDir
	if outDir == "" {
		outDir = a.cfg.Output.Dir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outPath := filepath.Join(outDir, export.FileName(a.today()))

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create import file: %w", err)
	}

	hist := a.startHistory(ctx, "csv", false)
	stats, err := export.WriteAll(f, mapper, students, employees)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close import file: %w", closeErr)
	}
	hist.finish(ctx, stats)
	if err != nil {
		return err
	}

	a.log.Info().
		Str("file", outPath).
		Int("written", stats.Written).
		Int("skipped", stats.Skipped).
		Int("mapping_gaps", stats.Gaps).
		Msg("Wrote patron import file")
	fmt.Fprintln(cmd.OutOrStdout(), outPath)

	if opts.archive {
		a.archive(ctx, opts.students, opts.employees, opts.prox, outPath)
	}
	return nil
}
