package compute

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/async"
	"github.com/imamik/dblab/internal/util/naming"
)

// ErrNetworkingNotReady is returned when a role unit starts before networking ids are recorded.
var ErrNetworkingNotReady = errors.New("networking not initialized")

// RoleSpec defines the instances to add to one role.
// All fields are self-documenting - no need to remember parameter order.
type RoleSpec struct {
	Role         config.Role
	InstanceType string
	Existing     []state.HostRecord // hosts already present for the role
	Add          int                // number of instances to create
}

// ProvisionRole creates spec.Add instances at the next free ordinals of the
// role. Instances are launched in parallel; hosts that were created are
// returned even when others failed, alongside the joined error.
func (p *Provisioner) ProvisionRole(ctx *provisioning.Context, spec RoleSpec) ([]state.HostRecord, error) {
	if spec.Add <= 0 {
		return nil, nil
	}

	snap := ctx.State()
	if !snap.Networking.Ready() {
		return nil, ErrNetworkingNotReady
	}

	t := ctx.Topology
	img, err := p.resolver.Resolve(ctx, t.Image.ID, t.Arch, t.Image.NamePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image: %w", err)
	}

	used := state.Hosts{spec.Role: spec.Existing}.Ordinals(spec.Role)
	plan := Plan(used, spec.Add, t.ZoneNames())

	ctx.Observer.Printf("[%s] Creating %d %s instances (%s)...", phase, len(plan), spec.Role, spec.InstanceType)

	var mu sync.Mutex
	var hosts []state.HostRecord

	tasks := make([]async.Task, len(plan))
	for i, a := range plan {
		alias := spec.Role.Alias(a.Index)
		tasks[i] = async.Task{
			Name: naming.Instance(t.Name, alias),
			Func: func(c context.Context) error {
				subnetID, ok := snap.Networking.SubnetIDs[a.Zone]
				if !ok {
					return fmt.Errorf("no subnet recorded for zone %s", a.Zone)
				}
				host, err := p.ensureInstance(ctx.WithContext(c), InstanceSpec{
					Role:         spec.Role,
					Alias:        alias,
					Zone:         a.Zone,
					InstanceType: spec.InstanceType,
					Image:        img,
					SubnetID:     subnetID,
					Networking:   snap.Networking,
					Identity:     snap.Identity,
				})
				if err != nil {
					return err
				}
				mu.Lock()
				hosts = append(hosts, host)
				mu.Unlock()
				return nil
			},
		}
	}

	var errs []error
	for _, res := range async.RunAll(ctx, tasks, 0) {
		if res.Err != nil {
			provisioning.LogResourceFailed(ctx.Observer, phase, "instance", res.Name, res.Err)
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}

	state.SortHosts(hosts)
	if len(errs) > 0 {
		return hosts, fmt.Errorf("failed to provision %d of %d %s instances: %w",
			len(errs), len(plan), spec.Role, errors.Join(errs...))
	}

	ctx.Observer.Printf("[%s] Successfully created %d %s instances", phase, len(hosts), spec.Role)
	return hosts, nil
}
