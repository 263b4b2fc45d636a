package main

import (
	"github.com/spf13/cobra"

	"github.com/warp/ta-engine/api"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "seed <scenario>...",
		Short:     "Load demo scenarios into the database",
		Long:      "Load demo scenarios: cmpt-current, cmpt-legacy, math-labs. Loading a scenario twice is a no-op.",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"cmpt-current", "cmpt-legacy", "math-labs"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, service, err := openService()
			if err != nil {
				return err
			}
			defer store.Close()

			h := api.NewHandler(store, service, log)
			for _, id := range args {
				if err := h.Seed(cmd.Context(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
