package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/dblab/cmd/dblab/handlers"
	"github.com/imamik/dblab/internal/config"
)

// AddInstances returns the command that grows a role.
func AddInstances(opts *handlers.Options) *cobra.Command {
	var (
		role  string
		count int
	)

	cmd := &cobra.Command{
		Use:   "add-instances",
		Short: "Add instances to a role",
		Long: `Raise the instance count of a role and provision the new hosts.

New hosts continue the role's alias sequence and zone rotation, so existing
hosts keep their names and placement.

Examples:
  dblab add-instances --role db --count 2`,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if !config.ParseRole(role).Known() {
				return fmt.Errorf("unknown role %q (want db, app or control)", role)
			}
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.AddInstances(cmd.Context(), opts, config.ParseRole(role), count)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Role to grow (db, app, control)")
	cmd.Flags().IntVar(&count, "count", 1, "Number of instances to add")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}
