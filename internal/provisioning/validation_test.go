package provisioning_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	testutil "github.com/imamik/dblab/internal/testing"
)

func TestValidationPhase_Passes(t *testing.T) {
	t.Parallel()
	cluster := testutil.NewClusterFixture(t, testutil.NewTopologyBuilder().Build())

	err := provisioning.NewValidationPhase().Provision(cluster.Context(&aws.MockClient{}))

	require.NoError(t, err)
	assert.Empty(t, cluster.Observer.EventsOfType(provisioning.EventValidationError))
}

func TestValidationPhase_Warnings(t *testing.T) {
	t.Parallel()
	topo := testutil.NewTopologyBuilder().
		WithZones("a").
		WithRole(config.RoleDB, "c5.2xlarge", 3).
		WithSSHCIDRs().
		Build()
	cluster := testutil.NewClusterFixture(t, topo)

	err := provisioning.NewValidationPhase().Provision(cluster.Context(&aws.MockClient{}))

	require.NoError(t, err)
	warnings := cluster.Observer.EventsOfType(provisioning.EventValidationWarning)
	resources := make([]string, 0, len(warnings))
	for _, w := range warnings {
		resources = append(resources, w.Resource)
	}
	assert.ElementsMatch(t, []string{"roles.db", "ssh_cidrs"}, resources)
}

func TestValidationPhase_Errors(t *testing.T) {
	t.Parallel()
	cluster := testutil.NewClusterFixture(t, testutil.NewTopologyBuilder().Build())
	ctx := cluster.Context(&aws.MockClient{
		CallerAccountFunc: func(context.Context) (string, error) {
			return "", errors.New("expired token")
		},
	})
	ctx.ClusterID = ""

	err := provisioning.NewValidationPhase().Provision(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster_id")
	assert.Contains(t, err.Error(), "expired token")
	assert.Len(t, cluster.Observer.EventsOfType(provisioning.EventValidationError), 2)
}

func TestValidationError(t *testing.T) {
	t.Parallel()
	ve := provisioning.ValidationError{Field: "f", Message: "m", Severity: "warning"}

	assert.Equal(t, "[warning] f: m", ve.Error())
	assert.False(t, ve.IsError())
}
