package main

import (
	"fmt"

	"patron-sync/internal/storage"

	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "fetch KEY...",
		Short: "Download HR exports from the bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest == "" {
				dest = a.cfg.Output.Dir
			}

			store, err := storage.NewS3Storage(a.cfg)
			if err != nil {
				return err
			}
			for _, key := range args {
				path, err := storage.Fetch(cmd.Context(), store, key, dest)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dest, "dest", "", "destination directory (default output.dir)")
	return cmd
}
