package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// DefaultFilename is the checkpoint filename in the working directory.
const DefaultFilename = "state.yaml"

// Store loads and saves checkpoints. Implementations need not be safe for
// concurrent use; Recorder serializes access.
type Store interface {
	Load() (*ClusterState, error)
	Save(*ClusterState) error
}

// FileStore persists the checkpoint as YAML on the local filesystem.
type FileStore struct {
	Path string
}

// NewFileStore returns a store for the given path, or DefaultFilename if empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilename
	}
	return &FileStore{Path: path}
}

// Load returns the last checkpoint, or a fresh empty state if none exists.
func (f *FileStore) Load() (*ClusterState, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	return Unmarshal(data)
}

// Save atomically replaces the checkpoint: the document is written to a
// temporary file in the same directory, synced, then renamed over the target.
func (f *FileStore) Save(s *ClusterState) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to set state file permissions: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Marshal renders a checkpoint as YAML with json field names.
func Marshal(s *ClusterState) ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return data, nil
}

// Unmarshal parses a checkpoint and normalizes nil collections.
func Unmarshal(data []byte) (*ClusterState, error) {
	s := Empty()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if s.Hosts == nil {
		s.Hosts = Hosts{}
	}
	if s.Services == nil {
		s.Services = map[ServiceKind]ManagedServiceState{}
	}
	for _, records := range s.Hosts {
		SortHosts(records)
	}
	return s, nil
}
