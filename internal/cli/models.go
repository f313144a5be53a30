package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available to the configured API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.connect(cmd.Context(), a.modelConfig())
			if err != nil {
				return fmt.Errorf("connect to model: %w", err)
			}
			names, err := backend.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
