// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/logging"
	"github.com/imamik/dblab/internal/metrics"
	"github.com/imamik/dblab/internal/orchestration"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/pkg/cloud"
)

// Credential environment variables. The default AWS chain applies when unset.
const (
	envAccessKeyID     = "DBLAB_AWS_ACCESS_KEY_ID"
	envSecretAccessKey = "DBLAB_AWS_SECRET_ACCESS_KEY"
	envSessionToken    = "DBLAB_AWS_SESSION_TOKEN"
	envProfile         = "DBLAB_AWS_PROFILE"
)

// ErrUnitsFailed is returned after the report when any unit failed.
var ErrUnitsFailed = errors.New("provisioning finished with failures")

// Options are the global flags shared by every command.
type Options struct {
	StatePath string
	LogLevel  string
}

// Reconciler interface for testing - matches orchestration.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context) (*orchestration.Result, error)
	AddInstances(ctx context.Context, role config.Role, n int) (*orchestration.Result, error)
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newLogger creates the CLI logger.
	newLogger = logging.NewStderr

	// newClients constructs the AWS service clients.
	newClients = cloud.New

	// newInfraClient wraps the service clients with the retry policy.
	newInfraClient = func(clients *cloud.Clients, logger zerolog.Logger, m *metrics.Metrics) aws.InfrastructureManager {
		return aws.NewRealClient(clients,
			aws.WithLogger(logger),
			aws.WithMetrics(m),
			aws.WithTimeouts(config.LoadTimeouts()),
		)
	}

	// newReconciler creates the provisioning reconciler.
	newReconciler = func(store state.Store, infra aws.InfrastructureManager, opts ...orchestration.Option) Reconciler {
		return orchestration.NewReconciler(store, infra, opts...)
	}

	// stdout receives reports (for testing injection).
	stdout io.Writer = os.Stdout

	// now returns the current time (for testing injection).
	now = time.Now
)

func (o *Options) store() *state.FileStore {
	return state.NewFileStore(o.StatePath)
}

// loadInitialized returns the checkpoint or ErrNotInitialized.
func loadInitialized(store state.Store) (*state.ClusterState, error) {
	cs, err := store.Load()
	if err != nil {
		return nil, err
	}
	if !cs.Initialized() || cs.Topology == nil {
		return nil, orchestration.ErrNotInitialized
	}
	return cs, nil
}

// reconcilerFor builds the AWS clients for the cluster's region and a
// reconciler over them.
func reconcilerFor(ctx context.Context, opts *Options, cs *state.ClusterState, m *metrics.Metrics) (Reconciler, error) {
	logger := newLogger(opts.LogLevel).With().Str("cluster", cs.Name).Logger()

	clients, err := newClients(ctx, cloud.Options{
		Region:          cs.Topology.Region,
		AccessKeyID:     os.Getenv(envAccessKeyID),
		SecretAccessKey: os.Getenv(envSecretAccessKey),
		SessionToken:    os.Getenv(envSessionToken),
		Profile:         os.Getenv(envProfile),
	})
	if err != nil {
		return nil, err
	}

	infra := newInfraClient(clients, logger, m)
	return newReconciler(opts.store(), infra,
		orchestration.WithLogger(logger),
		orchestration.WithMetrics(m),
	), nil
}

// finish prints the report, writes metrics and maps unit failures to an error.
func finish(name string, result *orchestration.Result, m *metrics.Metrics, metricsFile string) error {
	fmt.Fprint(stdout, renderReport(name, result))

	if metricsFile != "" {
		if err := m.WriteTextfile(metricsFile); err != nil {
			return err
		}
	}

	if !result.OK() {
		return fmt.Errorf("%w: %d of the provisioning units failed", ErrUnitsFailed, len(result.Failures))
	}
	return nil
}
