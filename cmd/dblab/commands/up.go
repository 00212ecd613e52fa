package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/dblab/cmd/dblab/handlers"
)

// Up returns the command that provisions the cluster.
//
// Environment variables:
//
//	DBLAB_AWS_ACCESS_KEY_ID, DBLAB_AWS_SECRET_ACCESS_KEY: static credentials (optional)
//	DBLAB_AWS_PROFILE: shared config profile (optional)
func Up(opts *handlers.Options) *cobra.Command {
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create or complete the cluster",
		Long: `Create or complete the cluster described by the checkpoint.

Existing resources tagged with the cluster id are adopted; only what is
missing is created. The command exits non-zero when any role or managed
service could not be provisioned, after printing the report.

Examples:
  dblab up
  dblab up --metrics-file /var/lib/node_exporter/dblab.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Up(cmd.Context(), opts, metricsFile)
		},
	}

	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	return cmd
}
