package main

import (
	"patron-sync/internal/koha"

	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	var patronID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete one patron by its API id",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := koha.Connect(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			return client.Delete(cmd.Context(), patronID)
		},
	}

	cmd.Flags().StringVar(&patronID, "id", "", "patron id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
