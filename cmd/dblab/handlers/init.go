package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/orchestration"
)

// loadTopologyFile loads a topology from file (for testing injection).
var loadTopologyFile = config.LoadTopology

// findConfigFile finds the default topology file (for testing injection).
var findConfigFile = config.FindConfigFile

// Init validates the topology and writes the first checkpoint.
func Init(_ context.Context, opts *Options, configPath string) error {
	if configPath == "" {
		found, err := findConfigFile()
		if err != nil {
			return fmt.Errorf("no config file found: %w (create %s first)", err, config.DefaultConfigFilename)
		}
		configPath = found
	}

	topo, err := loadTopologyFile(configPath)
	if err != nil {
		return err
	}

	cs, err := orchestration.Initialize(opts.store(), topo, now())
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Initialized cluster %s (%s)\n", cs.Name, cs.ClusterID)
	fmt.Fprintf(stdout, "  bucket: %s\n", cs.Bucket)
	fmt.Fprintln(stdout, "Run 'dblab up' to provision it.")
	return nil
}
