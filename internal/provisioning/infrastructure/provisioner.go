package infrastructure

import (
	"context"

	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/util/async"
)

const phase = "infrastructure"

// Provisioner handles cluster-wide infrastructure (networking, identity, bucket).
type Provisioner struct{}

// NewProvisioner creates a new infrastructure provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface. Networking runs
// first; identity and bucket do not depend on it or on each other.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if _, err := p.EnsureNetworking(ctx); err != nil {
		return err
	}

	return async.RunParallel(ctx, []async.Task{
		{Name: "identity", Func: func(c context.Context) error {
			_, err := p.EnsureIdentity(ctx.WithContext(c))
			return err
		}},
		{Name: "bucket", Func: func(c context.Context) error {
			return p.EnsureBucket(ctx.WithContext(c))
		}},
	})
}
