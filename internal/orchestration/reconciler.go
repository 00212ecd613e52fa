package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/metrics"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/provisioning/compute"
	"github.com/imamik/dblab/internal/provisioning/discovery"
	"github.com/imamik/dblab/internal/provisioning/image"
	"github.com/imamik/dblab/internal/provisioning/infrastructure"
	"github.com/imamik/dblab/internal/provisioning/services"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/naming"
)

var (
	// ErrNotInitialized is returned when no cluster identity has been minted yet.
	ErrNotInitialized = errors.New("cluster not initialized, run init first")
	// ErrAlreadyInitialized is returned by Initialize when a checkpoint already carries an identity.
	ErrAlreadyInitialized = errors.New("cluster already initialized")
)

// Reconciler orchestrates the cluster provisioning workflow.
type Reconciler struct {
	store state.Store
	infra aws.InfrastructureManager

	logger   zerolog.Logger
	observer provisioning.Observer
	timeouts *config.Timeouts
	metrics  *metrics.Metrics
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger behind the default observer.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithObserver replaces the default zerolog observer.
func WithObserver(o provisioning.Observer) Option {
	return func(r *Reconciler) { r.observer = o }
}

// WithTimeouts overrides the environment-derived timeouts.
func WithTimeouts(t *config.Timeouts) Option {
	return func(r *Reconciler) { r.timeouts = t }
}

// WithMetrics records unit outcomes into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// NewReconciler creates a new orchestration reconciler.
func NewReconciler(store state.Store, infra aws.InfrastructureManager, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		infra:  infra,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize mints a cluster identity for topology and writes the first
// checkpoint. The topology is snapshotted and is read-only afterwards.
func Initialize(store state.Store, topology *config.Topology, now time.Time) (*state.ClusterState, error) {
	existing, err := store.Load()
	if err != nil {
		return nil, err
	}
	if existing.Initialized() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrAlreadyInitialized, existing.Name, existing.ClusterID)
	}
	if err := topology.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cs := state.New(topology, now)
	if err := store.Save(cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// Reconcile brings the cloud up to the checkpoint's topology. It returns an
// error only when the run could not reach the unit fan-out; unit failures are
// reported in the Result.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	recorder, err := r.load()
	if err != nil {
		return nil, err
	}
	pCtx := r.context(ctx, recorder)

	var inv *discovery.Inventory
	discoverer := discovery.NewDiscoverer(r.infra, pCtx.Observer)

	phases := []provisioning.Phase{
		provisioning.NewValidationPhase(),
		provisioning.PhaseFunc{
			PhaseName: "discovery",
			Fn: func(c *provisioning.Context) error {
				var err error
				inv, err = discoverer.Inventory(c, c.ClusterID, c.Topology)
				if err != nil {
					return err
				}
				c.Observer.Printf("[discovery] Found %d hosts and %d managed services", inv.Hosts.Count(), len(inv.Services))
				return discovery.Record(c.Recorder, inv)
			},
		},
		infrastructure.NewProvisioner(),
	}
	if err := provisioning.RunPhases(pCtx, phases); err != nil {
		return nil, err
	}

	deps := Deps{
		Compute:  compute.NewProvisioner(image.NewResolver(r.infra, pCtx.Topology.Image.Owners)),
		Services: services.NewProvisioner(),
	}
	result := ProvisionAll(pCtx, deps, inv)

	if result.OK() {
		if err := recorder.Update(func(s *state.ClusterState) { s.InfrastructureUp = true }); err != nil {
			return result, err
		}
	} else {
		for _, f := range result.Failures {
			pCtx.Observer.Printf("[orchestration] Unit %s failed: %s", f.Key, f.Message)
		}
		if err := recorder.Update(func(s *state.ClusterState) { s.InfrastructureUp = false }); err != nil {
			return result, err
		}
	}

	r.mirror(pCtx)
	return result, nil
}

// AddInstances raises the desired count of role by n and reconciles. It is
// the only mutation of the topology after initialization.
func (r *Reconciler) AddInstances(ctx context.Context, role config.Role, n int) (*Result, error) {
	if !role.Known() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if n <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", n)
	}

	recorder, err := r.load()
	if err != nil {
		return nil, err
	}
	spec := recorder.Snapshot().Topology.Roles[role]
	if spec.InstanceType == "" {
		return nil, fmt.Errorf("role %s has no instance type in the topology", role)
	}

	err = recorder.Update(func(s *state.ClusterState) {
		spec := s.Topology.Roles[role]
		spec.Count += n
		s.Topology.Roles[role] = spec
		s.InfrastructureUp = false
	})
	if err != nil {
		return nil, err
	}

	return r.Reconcile(ctx)
}

func (r *Reconciler) load() (*state.Recorder, error) {
	cs, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	if !cs.Initialized() || cs.Topology == nil {
		return nil, ErrNotInitialized
	}
	return state.NewRecorder(r.store, cs), nil
}

func (r *Reconciler) context(ctx context.Context, recorder *state.Recorder) *provisioning.Context {
	pCtx := provisioning.NewContext(ctx, recorder, r.infra, r.logger)
	if r.observer != nil {
		pCtx.Observer = r.observer
	}
	if r.timeouts != nil {
		pCtx.Timeouts = r.timeouts
	}
	if r.metrics != nil {
		pCtx.Metrics = r.metrics
	}
	return pCtx
}

// mirror copies the checkpoint into the cluster bucket. Failures are logged only.
func (r *Reconciler) mirror(ctx *provisioning.Context) {
	snap := ctx.State()
	if snap.Bucket == "" {
		return
	}
	data, err := state.Marshal(snap)
	if err == nil {
		err = ctx.Infra.PutObject(ctx, snap.Bucket, naming.CheckpointKey, data)
	}
	if err != nil {
		ctx.Observer.Printf("[orchestration] Failed to mirror checkpoint to s3://%s/%s: %v", snap.Bucket, naming.CheckpointKey, err)
		return
	}
	ctx.Observer.Printf("[orchestration] Checkpoint mirrored to s3://%s/%s", snap.Bucket, naming.CheckpointKey)
}
