package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/provisioning/discovery"
	"github.com/imamik/dblab/internal/state"
	testutil "github.com/imamik/dblab/internal/testing"
)

func TestPlanUnits(t *testing.T) {
	topo := testutil.NewTopologyBuilder().
		WithRole(config.RoleDB, "c5.2xlarge", 3).
		WithRole(config.RoleApp, "c5.xlarge", 1).
		WithRole(config.RoleControl, "t3.xlarge", 0).
		WithEMR().
		WithOpenSearch().
		Build()

	inv := &discovery.Inventory{
		Hosts: state.Hosts{
			config.RoleDB:  {{Alias: "db0"}},
			config.RoleApp: {{Alias: "app0"}},
		},
		Services: map[state.ServiceKind]state.ManagedServiceState{
			state.ServiceOpenSearch: {Kind: state.ServiceOpenSearch, ID: "d-1"},
		},
	}

	units := PlanUnits(topo, inv)

	assert.Len(t, units, 2)
	assert.Equal(t, "db", units[0].Key)
	assert.Equal(t, UnitRole, units[0].Kind)
	assert.Equal(t, 2, units[0].Role.Add)
	assert.Equal(t, "c5.2xlarge", units[0].Role.InstanceType)
	assert.Equal(t, []state.HostRecord{{Alias: "db0"}}, units[0].Role.Existing)
	assert.Equal(t, "emr", units[1].Key)
	assert.Equal(t, UnitService, units[1].Kind)
	assert.Equal(t, state.ServiceEMR, units[1].Service)
}

func TestPlanUnits_NothingMissing(t *testing.T) {
	topo := testutil.NewTopologyBuilder().Build()
	inv := &discovery.Inventory{
		Hosts: state.Hosts{config.RoleDB: {{Alias: "db0"}}},
	}

	assert.Empty(t, PlanUnits(topo, inv))
}

func TestPlanUnits_SurplusHostsAreLeftAlone(t *testing.T) {
	topo := testutil.NewTopologyBuilder().Build()
	inv := &discovery.Inventory{
		Hosts: state.Hosts{config.RoleDB: {{Alias: "db0"}, {Alias: "db1"}}},
	}

	assert.Empty(t, PlanUnits(topo, inv))
}

func TestResultOK(t *testing.T) {
	assert.True(t, (&Result{}).OK())
	r := &Result{Failures: []Failure{{Key: "db", Kind: UnitRole, Message: "boom"}}}
	assert.False(t, r.OK())
	assert.Equal(t, "db (role): boom", r.Failures[0].String())
}
