// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/dblab/cmd/dblab/handlers"
)

// Root returns the root command for the dblab CLI.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "dblab",
		Short:         "Provision database lab clusters on AWS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.StatePath, "state", "", "Path to the state checkpoint (default: state.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(Init(opts))
	cmd.AddCommand(Up(opts))
	cmd.AddCommand(AddInstances(opts))
	cmd.AddCommand(Status(opts))
	cmd.AddCommand(Version())

	return cmd
}
