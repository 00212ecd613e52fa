package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/dblab/cmd/dblab/handlers"
)

// Init returns the command that mints a cluster identity.
//
// Optional flags:
//
//	--config, -c: Path to topology YAML file (default: auto-detect dblab.yaml)
func Init(opts *handlers.Options) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Validate the topology and create the cluster checkpoint",
		Long: `Validate the topology file and create the cluster checkpoint.

A new cluster id is minted and the topology is snapshotted into the
checkpoint. Nothing is created in AWS until 'dblab up' runs.

Examples:
  # Initialize from dblab.yaml in the current directory
  dblab init

  # Initialize from a specific file
  dblab init -c perf-lab.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), opts, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to topology file (default: dblab.yaml)")

	return cmd
}
