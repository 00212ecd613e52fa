package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/provisioning/compute"
	"github.com/imamik/dblab/internal/provisioning/discovery"
	"github.com/imamik/dblab/internal/provisioning/services"
	"github.com/imamik/dblab/internal/util/async"
)

// Deps are the provisioners units delegate to.
type Deps struct {
	Compute  *compute.Provisioner
	Services *services.Provisioner
}

// ProvisionAll runs every planned unit concurrently. A failing unit never
// cancels its siblings; its error is reported under the unit key. Each unit
// records its outcome through the context's Recorder as soon as it
// completes, including the hosts of a partially successful role unit.
func ProvisionAll(ctx *provisioning.Context, deps Deps, inv *discovery.Inventory) *Result {
	units := PlanUnits(ctx.Topology, inv)
	kinds := make(map[string]UnitKind, len(units))

	tasks := make([]async.Task, len(units))
	for i, u := range units {
		kinds[u.Key] = u.Kind
		transition(ctx, u.Key, "", UnitPending)
		tasks[i] = async.Task{
			Name: u.Key,
			Func: func(c context.Context) error {
				return runUnit(ctx.WithContext(c), deps, u)
			},
		}
	}

	if len(units) > 0 {
		ctx.Observer.Printf("[orchestration] Running %d provisioning units", len(units))
	}

	res := &Result{}
	for _, r := range async.RunAll(ctx, tasks, 0) {
		if r.Err == nil {
			continue
		}
		res.Failures = append(res.Failures, Failure{
			Key:     r.Name,
			Kind:    kinds[r.Name],
			Message: r.Err.Error(),
		})
	}

	snap := ctx.State()
	res.Hosts = snap.Hosts
	res.Services = snap.Services
	return res
}

func runUnit(ctx *provisioning.Context, deps Deps, u Unit) (err error) {
	start := time.Now()
	transition(ctx, u.Key, UnitPending, UnitInProgress)
	defer func() {
		result, to := "succeeded", UnitSucceeded
		if err != nil {
			result, to = "failed", UnitFailed
		}
		transition(ctx, u.Key, UnitInProgress, to)
		ctx.Metrics.RecordUnit(string(u.Kind), result, time.Since(start))
	}()

	switch u.Kind {
	case UnitRole:
		return runRoleUnit(ctx, deps, u)
	case UnitService:
		return runServiceUnit(ctx, deps, u)
	default:
		return fmt.Errorf("unknown unit kind %q", u.Kind)
	}
}

func runRoleUnit(ctx *provisioning.Context, deps Deps, u Unit) error {
	hosts, provisionErr := deps.Compute.ProvisionRole(ctx, u.Role)
	if len(hosts) > 0 {
		if err := ctx.Recorder.RecordHosts(u.Role.Role, hosts); err != nil {
			return errors.Join(provisionErr, fmt.Errorf("failed to record %s hosts: %w", u.Role.Role, err))
		}
	}
	return provisionErr
}

func runServiceUnit(ctx *provisioning.Context, deps Deps, u Unit) error {
	svc, provisionErr := deps.Services.Provision(ctx, u.Service)
	if svc.ID != "" {
		if err := ctx.Recorder.RecordService(svc); err != nil {
			return errors.Join(provisionErr, fmt.Errorf("failed to record %s: %w", u.Service, err))
		}
	}
	return provisionErr
}

func transition(ctx *provisioning.Context, key string, from, to UnitState) {
	provisioning.LogUnitTransition(ctx.Observer, key, string(from), string(to))
}
