package orchestration

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/provisioning/compute"
	"github.com/imamik/dblab/internal/provisioning/discovery"
	"github.com/imamik/dblab/internal/state"
)

// UnitKind distinguishes instance units from managed service units.
type UnitKind string

const (
	UnitRole    UnitKind = "role"
	UnitService UnitKind = "service"
)

// UnitState is a step of the per-unit state machine.
type UnitState string

const (
	UnitPending    UnitState = "PENDING"
	UnitInProgress UnitState = "IN_PROGRESS"
	UnitSucceeded  UnitState = "SUCCEEDED"
	UnitFailed     UnitState = "FAILED"
)

// Unit is one independent piece of provisioning work.
type Unit struct {
	Key  string
	Kind UnitKind

	// Role units
	Role compute.RoleSpec

	// Service units
	Service state.ServiceKind
}

// PlanUnits derives the units needed to bring the discovered inventory up to
// the topology: one per role with fewer hosts than its count and one per
// enabled managed service that was not found. Units are ordered by key.
func PlanUnits(t *config.Topology, inv *discovery.Inventory) []Unit {
	var units []Unit

	for _, role := range config.Roles {
		spec, ok := t.Roles[role]
		if !ok {
			continue
		}
		existing := inv.Hosts[role]
		if missing := spec.Count - len(existing); missing > 0 {
			units = append(units, Unit{
				Key:  string(role),
				Kind: UnitRole,
				Role: compute.RoleSpec{
					Role:         role,
					InstanceType: spec.InstanceType,
					Existing:     slices.Clone(existing),
					Add:          missing,
				},
			})
		}
	}

	wanted := map[state.ServiceKind]bool{
		state.ServiceEMR:        t.EMR.Enabled,
		state.ServiceOpenSearch: t.OpenSearch.Enabled,
	}
	for kind, enabled := range wanted {
		if _, found := inv.Services[kind]; enabled && !found {
			units = append(units, Unit{Key: string(kind), Kind: UnitService, Service: kind})
		}
	}

	slices.SortFunc(units, func(a, b Unit) int { return cmp.Compare(a.Key, b.Key) })
	return units
}

// Failure is a unit that did not complete.
type Failure struct {
	Key     string
	Kind    UnitKind
	Message string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s (%s): %s", f.Key, f.Kind, f.Message)
}

// Result is the outcome of a provisioning run: the full inventory after the
// run plus the failures of any unit.
type Result struct {
	Hosts    state.Hosts
	Services map[state.ServiceKind]state.ManagedServiceState
	Failures []Failure
}

// OK reports whether every unit succeeded.
func (r *Result) OK() bool {
	return len(r.Failures) == 0
}
