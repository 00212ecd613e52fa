package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/dblab/cmd/dblab/handlers"
)

// Status returns the command that prints the recorded inventory.
func Status(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the recorded cluster inventory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), opts)
		},
	}
}
