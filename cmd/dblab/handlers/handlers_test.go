package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/logging"
	"github.com/imamik/dblab/internal/metrics"
	"github.com/imamik/dblab/internal/orchestration"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/state"
	testutil "github.com/imamik/dblab/internal/testing"
	"github.com/imamik/dblab/pkg/cloud"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// saveAndRestoreFactories saves all factory variables and restores them after the test.
func saveAndRestoreFactories(t *testing.T) {
	t.Helper()
	origNewLogger := newLogger
	origNewClients := newClients
	origNewInfraClient := newInfraClient
	origNewReconciler := newReconciler
	origLoadTopologyFile := loadTopologyFile
	origFindConfigFile := findConfigFile
	origStdout := stdout
	origNow := now

	t.Cleanup(func() {
		newLogger = origNewLogger
		newClients = origNewClients
		newInfraClient = origNewInfraClient
		newReconciler = origNewReconciler
		loadTopologyFile = origLoadTopologyFile
		findConfigFile = origFindConfigFile
		stdout = origStdout
		now = origNow
	})

	newLogger = func(string) zerolog.Logger { return logging.Nop() }
	now = func() time.Time { return fixedNow }
}

// captureStdout redirects report output into a buffer.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	stdout = &buf
	return &buf
}

// useFakeCloud wires the handlers to an in-memory cloud.
func useFakeCloud(t *testing.T) *testutil.CloudFixture {
	t.Helper()
	fixture := testutil.NewCloudFixture(t, "us-west-2").WithDefaultImage()

	newClients = func(_ context.Context, opts cloud.Options) (*cloud.Clients, error) {
		assert.Equal(t, "us-west-2", opts.Region)
		return &cloud.Clients{}, nil
	}
	newInfraClient = func(*cloud.Clients, zerolog.Logger, *metrics.Metrics) aws.InfrastructureManager {
		return fixture.Client
	}
	newReconciler = func(store state.Store, infra aws.InfrastructureManager, opts ...orchestration.Option) Reconciler {
		opts = append(opts, orchestration.WithTimeouts(config.TestTimeouts()))
		return orchestration.NewReconciler(store, infra, opts...)
	}
	return fixture
}

// initCluster writes a checkpoint for topo and returns options pointing at it.
func initCluster(t *testing.T, topo *config.Topology) *Options {
	t.Helper()
	opts := &Options{StatePath: filepath.Join(t.TempDir(), state.DefaultFilename), LogLevel: "info"}
	loadTopologyFile = func(string) (*config.Topology, error) { return topo, nil }
	require.NoError(t, Init(context.Background(), opts, "dblab.yaml"))
	return opts
}

func TestInit_WritesCheckpoint(t *testing.T) {
	saveAndRestoreFactories(t)
	out := captureStdout(t)

	topo := testutil.NewTopologyBuilder().Build()
	opts := initCluster(t, topo)

	cs, err := state.NewFileStore(opts.StatePath).Load()
	require.NoError(t, err)
	assert.True(t, cs.Initialized())
	assert.Equal(t, "test-lab", cs.Name)
	assert.True(t, fixedNow.Equal(cs.CreatedAt))
	assert.Contains(t, out.String(), "Initialized cluster test-lab")
	assert.Contains(t, out.String(), cs.Bucket)
}

func TestInit_UsesDefaultConfigFile(t *testing.T) {
	saveAndRestoreFactories(t)
	captureStdout(t)

	var loaded string
	findConfigFile = func() (string, error) { return "/work/dblab.yaml", nil }
	loadTopologyFile = func(path string) (*config.Topology, error) {
		loaded = path
		return testutil.NewTopologyBuilder().Build(), nil
	}

	opts := &Options{StatePath: filepath.Join(t.TempDir(), state.DefaultFilename)}
	require.NoError(t, Init(context.Background(), opts, ""))
	assert.Equal(t, "/work/dblab.yaml", loaded)
}

func TestInit_NoConfigFile(t *testing.T) {
	saveAndRestoreFactories(t)

	findConfigFile = func() (string, error) {
		return "", errors.New("config file dblab.yaml not found")
	}

	err := Init(context.Background(), &Options{StatePath: filepath.Join(t.TempDir(), "state.yaml")}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config file found")
	assert.Contains(t, err.Error(), config.DefaultConfigFilename)
}

func TestInit_LoadError(t *testing.T) {
	saveAndRestoreFactories(t)

	loadTopologyFile = func(string) (*config.Topology, error) {
		return nil, errors.New("yaml: line 3: did not find expected key")
	}

	err := Init(context.Background(), &Options{StatePath: filepath.Join(t.TempDir(), "state.yaml")}, "bad.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not find expected key")
}

func TestInit_Twice(t *testing.T) {
	saveAndRestoreFactories(t)
	captureStdout(t)

	opts := initCluster(t, testutil.NewTopologyBuilder().Build())
	err := Init(context.Background(), opts, "dblab.yaml")
	assert.ErrorIs(t, err, orchestration.ErrAlreadyInitialized)
}

func TestUp_NotInitialized(t *testing.T) {
	saveAndRestoreFactories(t)

	err := Up(context.Background(), &Options{StatePath: filepath.Join(t.TempDir(), "state.yaml")}, "")
	assert.ErrorIs(t, err, orchestration.ErrNotInitialized)
}

func TestUp_ProvisionsAndReports(t *testing.T) {
	saveAndRestoreFactories(t)
	out := captureStdout(t)
	fixture := useFakeCloud(t)

	topo := testutil.NewTopologyBuilder().
		WithZones("a", "b").
		WithRole(config.RoleDB, "c5.2xlarge", 2).
		Build()
	opts := initCluster(t, topo)
	out.Reset()

	metricsFile := filepath.Join(t.TempDir(), "dblab.prom")
	require.NoError(t, Up(context.Background(), opts, metricsFile))

	assert.Contains(t, out.String(), "dblab up: test-lab")
	assert.Contains(t, out.String(), "db0")
	assert.Contains(t, out.String(), "db1")
	assert.Contains(t, out.String(), "All units succeeded")
	assert.Equal(t, 2, fixture.EC2.Calls("RunInstances"))
	assert.FileExists(t, metricsFile)

	cs, err := state.NewFileStore(opts.StatePath).Load()
	require.NoError(t, err)
	assert.True(t, cs.InfrastructureUp)
}

func TestUp_ClientError(t *testing.T) {
	saveAndRestoreFactories(t)
	captureStdout(t)

	opts := initCluster(t, testutil.NewTopologyBuilder().Build())
	newClients = func(context.Context, cloud.Options) (*cloud.Clients, error) {
		return nil, errors.New("failed to load AWS config: no credentials")
	}

	err := Up(context.Background(), opts, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestUp_UnitFailureReturnsError(t *testing.T) {
	saveAndRestoreFactories(t)
	out := captureStdout(t)
	fixture := useFakeCloud(t)

	opts := initCluster(t, testutil.NewTopologyBuilder().Build())
	fixture.EC2.FailNext("RunInstances", &smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "bad instance type"})

	err := Up(context.Background(), opts, "")
	require.ErrorIs(t, err, ErrUnitsFailed)
	assert.Contains(t, out.String(), "Failures")
	assert.Contains(t, out.String(), "bad instance type")
}

func TestAddInstances_GrowsRole(t *testing.T) {
	saveAndRestoreFactories(t)
	captureStdout(t)
	useFakeCloud(t)

	opts := initCluster(t, testutil.NewTopologyBuilder().WithZones("a", "b").Build())
	require.NoError(t, Up(context.Background(), opts, ""))
	require.NoError(t, AddInstances(context.Background(), opts, config.RoleDB, 2))

	cs, err := state.NewFileStore(opts.StatePath).Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cs.Topology.Roles[config.RoleDB].Count)
	require.Len(t, cs.Hosts[config.RoleDB], 3)
	assert.Equal(t, "db2", cs.Hosts[config.RoleDB][2].Alias)
	assert.Equal(t, "us-west-2a", cs.Hosts[config.RoleDB][2].AvailabilityZone)
}

func TestAddInstances_NotInitialized(t *testing.T) {
	saveAndRestoreFactories(t)

	err := AddInstances(context.Background(), &Options{StatePath: filepath.Join(t.TempDir(), "state.yaml")}, config.RoleDB, 1)
	assert.ErrorIs(t, err, orchestration.ErrNotInitialized)
}

func TestStatus_RendersCheckpoint(t *testing.T) {
	saveAndRestoreFactories(t)
	out := captureStdout(t)

	opts := initCluster(t, testutil.NewTopologyBuilder().Build())
	out.Reset()

	require.NoError(t, Status(context.Background(), opts))
	assert.Contains(t, out.String(), "dblab status: test-lab")
	assert.Contains(t, out.String(), "us-west-2")
	assert.Contains(t, out.String(), "(none)")
}

func TestStatus_NotInitialized(t *testing.T) {
	saveAndRestoreFactories(t)
	stdout = io.Discard

	err := Status(context.Background(), &Options{StatePath: filepath.Join(t.TempDir(), "state.yaml")})
	assert.ErrorIs(t, err, orchestration.ErrNotInitialized)
}
