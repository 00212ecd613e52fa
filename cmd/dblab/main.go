// Package main is the entry point for the dblab CLI.
//
// dblab provisions disposable database lab clusters on AWS: role-grouped EC2
// instances in a dedicated VPC, an IAM instance profile, an S3 bucket, and
// optionally an EMR cluster and an OpenSearch domain. Every run is
// idempotent and resumes from the local checkpoint.
//
// Commands: init, up, add-instances, status, version.
//
// For detailed usage information, run:
//
//	dblab --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/dblab/cmd/dblab/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
