package compute

import (
	"context"
	"fmt"
	"math"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/provisioning/discovery"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/naming"
	"github.com/imamik/dblab/internal/util/retry"
)

// InstanceSpec defines one instance launch.
type InstanceSpec struct {
	Role         config.Role
	Alias        string
	Zone         string
	InstanceType string
	Image        *aws.Image
	SubnetID     string
	Networking   state.Networking
	Identity     state.Identity
}

// maxReplacements bounds the chain of replacement tokens followed for one
// alias. Every run walks the chain from the first token, so it also caps how
// often an alias can be replaced over the cluster's life.
const maxReplacements = 16

// ensureInstance launches the instance for spec.Alias (or returns the one a
// previous launch with the same client token created) and waits, advisory
// only, for it to become healthy. A token that resolves to a terminated
// instance is followed by a launch under a token derived from that
// instance's ID, so reruns walk the same chain of tokens.
func (p *Provisioner) ensureInstance(ctx *provisioning.Context, spec InstanceSpec) (state.HostRecord, error) {
	t := ctx.Topology
	name := naming.Instance(t.Name, spec.Alias)
	provisioning.LogResourceCreating(ctx.Observer, phase, "instance", name)

	tags := ctx.Labels().
		WithName(name).
		WithRole(string(spec.Role)).
		WithAlias(spec.Alias).
		Build()

	opts := aws.InstanceCreateOpts{
		ImageID:             spec.Image.ID,
		RootDeviceName:      spec.Image.RootDeviceName,
		InstanceType:        spec.InstanceType,
		SubnetID:            spec.SubnetID,
		SecurityGroupID:     spec.Networking.SecurityGroupID,
		KeyName:             t.KeyName,
		InstanceProfileName: spec.Identity.InstanceProfileName,
		ClientToken:         naming.ClientToken(ctx.ClusterID, spec.Alias),
		Storage:             t.Storage,
		Tags:                tags,
	}

	var inst *aws.Instance
	for replaced := 0; ; replaced++ {
		launched, err := ctx.Infra.RunInstance(ctx, opts)
		if err != nil {
			return state.HostRecord{}, fmt.Errorf("failed to launch %s: %w", name, err)
		}
		provisioning.LogResourceCreated(ctx.Observer, phase, "instance", name, launched.ID)

		inst = p.waitHealthy(ctx, launched)
		if !terminal(inst) {
			break
		}
		if replaced == maxReplacements {
			return state.HostRecord{}, fmt.Errorf("instance %s for %s is %s", inst.ID, name, inst.State)
		}
		ctx.Observer.Printf("[%s] Instance %s for %s is %s, launching a replacement", phase, inst.ID, name, inst.State)
		opts.ClientToken = naming.ReplacementToken(ctx.ClusterID, spec.Alias, inst.ID)
	}
	if inst.AvailabilityZone == "" {
		inst.AvailabilityZone = spec.Zone
	}
	return discovery.HostRecord(spec.Alias, *inst), nil
}

// waitHealthy polls until the instance is running with a public IP or the
// health timeout expires. Expiry is logged, never returned: the last
// observed instance is recorded regardless.
func (p *Provisioner) waitHealthy(ctx *provisioning.Context, inst *aws.Instance) *aws.Instance {
	if healthy(inst) || terminal(inst) {
		return inst
	}

	waitCtx, cancel := context.WithTimeout(ctx, ctx.Timeouts.InstanceHealth)
	defer cancel()

	last := inst
	err := retry.WithExponentialBackoff(waitCtx, func(c context.Context) error {
		got, err := ctx.Infra.GetInstance(c, inst.ID)
		if err != nil {
			return err
		}
		if got == nil {
			return fmt.Errorf("instance %s not visible yet", inst.ID)
		}
		last = got
		if terminal(got) {
			return retry.Fatal(fmt.Errorf("instance %s is %s", got.ID, got.State))
		}
		if !healthy(got) {
			return fmt.Errorf("instance %s is %s", got.ID, got.State)
		}
		return nil
	},
		retry.WithMaxRetries(math.MaxInt32),
		retry.WithInitialDelay(ctx.Timeouts.PollInterval),
		retry.WithMaxDelay(4*ctx.Timeouts.PollInterval),
	)
	if err != nil {
		ctx.Observer.Printf("[%s] Instance %s not healthy within %v, recording anyway: %v",
			phase, inst.ID, ctx.Timeouts.InstanceHealth, err)
	}
	return last
}

func healthy(inst *aws.Instance) bool {
	return inst.State == "running" && inst.PublicIP != ""
}

func terminal(inst *aws.Instance) bool {
	return inst.State == "terminated" || inst.State == "shutting-down"
}
