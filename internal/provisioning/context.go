package provisioning

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/metrics"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/labels"
)

// Context wraps all dependencies needed for a provisioning phase or unit.
type Context struct {
	context.Context
	ClusterID string
	Topology  *config.Topology
	Recorder  *state.Recorder
	Infra     aws.InfrastructureManager
	Observer  Observer
	Timeouts  *config.Timeouts
	Metrics   *metrics.Metrics
}

// NewContext creates a provisioning context for the cluster held by recorder.
// The topology is taken from the checkpoint snapshot, never from the file.
func NewContext(
	ctx context.Context,
	recorder *state.Recorder,
	infra aws.InfrastructureManager,
	logger zerolog.Logger,
) *Context {
	snap := recorder.Snapshot()
	return &Context{
		Context:   ctx,
		ClusterID: snap.ClusterID,
		Topology:  snap.Topology,
		Recorder:  recorder,
		Infra:     infra,
		Observer:  NewObserver(logger.With().Str("cluster", snap.Name).Logger()),
		Timeouts:  config.LoadTimeouts(),
		Metrics:   metrics.New(),
	}
}

// WithContext returns a shallow copy bound to ctx.
func (c *Context) WithContext(ctx context.Context) *Context {
	cp := *c
	cp.Context = ctx
	return &cp
}

// WithObserver returns a shallow copy that logs through o.
func (c *Context) WithObserver(o Observer) *Context {
	cp := *c
	cp.Observer = o
	return &cp
}

// State returns a deep copy of the current checkpoint.
func (c *Context) State() *state.ClusterState {
	return c.Recorder.Snapshot()
}

// Labels returns a builder pre-filled with the cluster identity and user tags.
func (c *Context) Labels() *labels.LabelBuilder {
	return labels.NewLabelBuilder(c.ClusterID, c.Topology.Name).Merge(c.Topology.Tags)
}
