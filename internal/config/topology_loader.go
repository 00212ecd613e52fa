package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFilename is the default topology filename.
const DefaultConfigFilename = "dblab.yaml"

// LoadTopology loads, defaults and validates a topology from a file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadTopologyFromBytes(data)
}

// LoadTopologyFromBytes loads, defaults and validates a topology from bytes.
func LoadTopologyFromBytes(data []byte) (*Topology, error) {
	t, err := parseTopology(data)
	if err != nil {
		return nil, err
	}

	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return t, nil
}

func parseTopology(data []byte) (*Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &t, nil
}

// FindConfigFile searches the current directory and its parents for dblab.yaml.
func FindConfigFile() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := cwd
	for {
		path := filepath.Join(dir, DefaultConfigFilename)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("config file %s not found", DefaultConfigFilename)
}

// SaveTopology writes a topology to a file.
func SaveTopology(t *Topology, path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
