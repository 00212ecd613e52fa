package services

import (
	"context"
	"fmt"
	"math"

	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/retry"
)

const phase = "services"

// Provisioner creates managed services.
type Provisioner struct{}

// NewProvisioner creates a managed service provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Provision creates the service of the given kind.
func (p *Provisioner) Provision(ctx *provisioning.Context, kind state.ServiceKind) (state.ManagedServiceState, error) {
	switch kind {
	case state.ServiceEMR:
		return p.ProvisionEMR(ctx)
	case state.ServiceOpenSearch:
		return p.ProvisionOpenSearch(ctx)
	default:
		return state.ManagedServiceState{}, fmt.Errorf("unknown service kind %q", kind)
	}
}

// readiness classifies a polled service status.
type readiness struct {
	ready  func(*aws.ServiceStatus) bool
	failed func(*aws.ServiceStatus) bool
}

// waitReady polls until the service is ready, failed, or the service-ready
// timeout expires. Only a failed state is returned as an error; a timeout is
// logged and the last observed status is returned.
func waitReady(ctx *provisioning.Context, name string, current *aws.ServiceStatus,
	poll func(context.Context) (*aws.ServiceStatus, error), r readiness,
) (*aws.ServiceStatus, error) {
	if r.failed(current) {
		return current, fmt.Errorf("%s is %s", name, current.State)
	}
	if r.ready(current) {
		return current, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, ctx.Timeouts.ServiceReady)
	defer cancel()

	last := current
	err := retry.WithExponentialBackoff(waitCtx, func(c context.Context) error {
		got, err := poll(c)
		if err != nil {
			return err
		}
		if got == nil {
			return fmt.Errorf("%s not visible yet", name)
		}
		last = got
		if r.failed(got) {
			return retry.Fatal(fmt.Errorf("%s is %s", name, got.State))
		}
		if !r.ready(got) {
			return fmt.Errorf("%s is %s", name, got.State)
		}
		return nil
	},
		retry.WithMaxRetries(math.MaxInt32),
		retry.WithInitialDelay(ctx.Timeouts.PollInterval),
		retry.WithMaxDelay(4*ctx.Timeouts.PollInterval),
	)
	if r.failed(last) {
		return last, fmt.Errorf("%s is %s", name, last.State)
	}
	if err != nil {
		ctx.Observer.Printf("[%s] %s not ready within %v (last state %s), recording anyway",
			phase, name, ctx.Timeouts.ServiceReady, last.State)
	}
	return last, nil
}
