package compute

import (
	"context"
	"testing"

	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/provisioning/image"
	"github.com/imamik/dblab/internal/provisioning/infrastructure"
	"github.com/imamik/dblab/internal/state"
	testutil "github.com/imamik/dblab/internal/testing"
	"github.com/imamik/dblab/internal/util/labels"
)

type harness struct {
	cloud   *testutil.CloudFixture
	cluster *testutil.ClusterFixture
	ctx     *provisioning.Context
	p       *Provisioner
}

func newHarness(t *testing.T, topo *config.Topology) *harness {
	t.Helper()
	cloud := testutil.NewCloudFixture(t, topo.Region).WithDefaultImage()
	cluster := testutil.NewClusterFixture(t, topo)
	ctx := cluster.Context(cloud.Client)
	require.NoError(t, infrastructure.NewProvisioner().Provision(ctx))
	return &harness{
		cloud:   cloud,
		cluster: cluster,
		ctx:     ctx,
		p:       NewProvisioner(image.NewResolver(cloud.Client, topo.Image.Owners)),
	}
}

func threeZones() *testutil.TopologyBuilder {
	return testutil.NewTopologyBuilder().WithZones("a", "b", "c")
}

func TestProvisionRole_PlacesAcrossZones(t *testing.T) {
	h := newHarness(t, threeZones().Build())

	hosts, err := h.p.ProvisionRole(h.ctx, RoleSpec{Role: config.RoleDB, InstanceType: "c5.2xlarge", Add: 4})

	require.NoError(t, err)
	require.Len(t, hosts, 4)
	assert.Equal(t, "db0", hosts[0].Alias)
	assert.Equal(t, "us-west-2a", hosts[0].AvailabilityZone)
	assert.Equal(t, "us-west-2b", hosts[1].AvailabilityZone)
	assert.Equal(t, "us-west-2c", hosts[2].AvailabilityZone)
	assert.Equal(t, "us-west-2a", hosts[3].AvailabilityZone)
	assert.Equal(t, 4, h.cloud.EC2.Calls("RunInstances"))
	for _, host := range hosts {
		assert.NotEmpty(t, host.InstanceID)
		assert.NotEmpty(t, host.PublicIP)
		assert.NotEmpty(t, host.PrivateIP)
	}
}

func TestProvisionRole_ContinuesOrdinals(t *testing.T) {
	h := newHarness(t, threeZones().Build())

	first, err := h.p.ProvisionRole(h.ctx, RoleSpec{Role: config.RoleDB, InstanceType: "c5.2xlarge", Add: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "db0", first[0].Alias)
	assert.Equal(t, "us-west-2a", first[0].AvailabilityZone)

	added, err := h.p.ProvisionRole(h.ctx, RoleSpec{
		Role:         config.RoleDB,
		InstanceType: "c5.2xlarge",
		Existing:     first,
		Add:          2,
	})

	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "db1", added[0].Alias)
	assert.Equal(t, "us-west-2b", added[0].AvailabilityZone)
	assert.Equal(t, "db2", added[1].Alias)
	assert.Equal(t, "us-west-2c", added[1].AvailabilityZone)
}

func TestProvisionRole_TagsInstances(t *testing.T) {
	h := newHarness(t, threeZones().WithTags(map[string]string{"team": "perf"}).Build())

	_, err := h.p.ProvisionRole(h.ctx, RoleSpec{Role: config.RoleApp, InstanceType: "c5.large", Add: 1})
	require.NoError(t, err)

	insts, err := h.cloud.Client.DescribeInstances(context.Background(),
		map[string]string{labels.KeyClusterID: h.ctx.ClusterID}, nil)
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.Equal(t, "app", insts[0].Tags[labels.KeyRole])
	assert.Equal(t, "app0", insts[0].Tags[labels.KeyAlias])
	assert.Equal(t, "perf", insts[0].Tags["team"])
	assert.Equal(t, "test-lab-app0", insts[0].Tags[labels.KeyName])
}

func TestProvisionRole_ClientTokenPreventsDuplicates(t *testing.T) {
	h := newHarness(t, threeZones().Build())
	spec := RoleSpec{Role: config.RoleDB, InstanceType: "c5.2xlarge", Add: 1}

	first, err := h.p.ProvisionRole(h.ctx, spec)
	require.NoError(t, err)
	// Re-issuing the same launch without having recorded the first result.
	again, err := h.p.ProvisionRole(h.ctx, spec)
	require.NoError(t, err)

	assert.Equal(t, first[0].InstanceID, again[0].InstanceID)
	assert.Len(t, h.cloud.EC2.Instances, 1)
}

func TestProvisionRole_NothingToAdd(t *testing.T) {
	mock := &aws.MockClient{
		RunInstanceFunc: func(context.Context, aws.InstanceCreateOpts) (*aws.Instance, error) {
			t.Fatal("RunInstance must not be called")
			return nil, nil
		},
	}
	cluster := testutil.NewClusterFixture(t, threeZones().Build())

	hosts, err := NewProvisioner(image.NewResolver(mock, nil)).
		ProvisionRole(cluster.Context(mock), RoleSpec{Role: config.RoleDB, Add: 0})

	require.NoError(t, err)
	assert.Empty(t, hosts)
}

func TestProvisionRole_RequiresNetworking(t *testing.T) {
	mock := &aws.MockClient{}
	cluster := testutil.NewClusterFixture(t, threeZones().Build())

	_, err := NewProvisioner(image.NewResolver(mock, nil)).
		ProvisionRole(cluster.Context(mock), RoleSpec{Role: config.RoleDB, Add: 1})

	require.ErrorIs(t, err, ErrNetworkingNotReady)
}

func TestProvisionRole_ArchMismatchLaunchesNothing(t *testing.T) {
	h := newHarness(t, threeZones().WithArch(config.ArchARM64).WithImageID("ami-default").Build())

	hosts, err := h.p.ProvisionRole(h.ctx, RoleSpec{Role: config.RoleDB, InstanceType: "c6g.large", Add: 2})

	require.ErrorIs(t, err, image.ErrArchitectureMismatch)
	assert.Empty(t, hosts)
	assert.Zero(t, h.cloud.EC2.Calls("RunInstances"))
}

func TestProvisionRole_PartialFailureKeepsCreatedHosts(t *testing.T) {
	h := newHarness(t, threeZones().Build())
	h.cloud.EC2.FailNext("RunInstances", &smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "bad request"})

	hosts, err := h.p.ProvisionRole(h.ctx, RoleSpec{Role: config.RoleDB, InstanceType: "c5.2xlarge", Add: 3})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to provision 1 of 3 db instances")
	assert.Len(t, hosts, 2)
	assert.NotEmpty(t, h.cluster.Observer.EventsOfType(provisioning.EventResourceFailed))
}

func TestProvisionRole_UnhealthyInstanceIsStillRecorded(t *testing.T) {
	h := newHarness(t, threeZones().Build())
	h.cloud.EC2.LaunchState = ec2types.InstanceStateNamePending

	hosts, err := h.p.ProvisionRole(h.ctx, RoleSpec{Role: config.RoleDB, InstanceType: "c5.2xlarge", Add: 1})

	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "db0", hosts[0].Alias)
	assert.Positive(t, h.cloud.EC2.Calls("DescribeInstances"))
}

func TestProvisionRole_TerminatedInstanceFails(t *testing.T) {
	h := newHarness(t, threeZones().Build())
	h.cloud.EC2.LaunchState = ec2types.InstanceStateNameTerminated

	hosts, err := h.p.ProvisionRole(h.ctx, RoleSpec{Role: config.RoleDB, InstanceType: "c5.2xlarge", Add: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminated")
	assert.Empty(t, hosts)
	assert.Equal(t, maxReplacements+1, h.cloud.EC2.Calls("RunInstances"))
}

func TestProvisionRole_ReplacesTerminatedInstance(t *testing.T) {
	h := newHarness(t, threeZones().Build())
	spec := RoleSpec{Role: config.RoleDB, InstanceType: "c5.2xlarge", Add: 1}

	first, err := h.p.ProvisionRole(h.ctx, spec)
	require.NoError(t, err)
	require.Len(t, first, 1)
	h.cloud.EC2.SetInstanceState(first[0].InstanceID, ec2types.InstanceStateNameTerminated)

	second, err := h.p.ProvisionRole(h.ctx, spec)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "db0", second[0].Alias)
	assert.NotEqual(t, first[0].InstanceID, second[0].InstanceID)
	assert.NotEmpty(t, second[0].PublicIP)
	assert.Equal(t, 3, h.cloud.EC2.Calls("RunInstances"))

	third, err := h.p.ProvisionRole(h.ctx, spec)
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, second[0].InstanceID, third[0].InstanceID, "replacement token replays the replacement")
	assert.Len(t, h.cloud.EC2.Instances, 2)
}

func TestHealthy(t *testing.T) {
	assert.True(t, healthy(&aws.Instance{State: "running", PublicIP: "1.2.3.4"}))
	assert.False(t, healthy(&aws.Instance{State: "pending", PublicIP: "1.2.3.4"}))
	assert.False(t, healthy(&aws.Instance{State: "running"}))
}

func TestRoleSpecHostsOrdinals(t *testing.T) {
	existing := []state.HostRecord{{Alias: "db0"}, {Alias: "db2"}}
	used := state.Hosts{config.RoleDB: existing}.Ordinals(config.RoleDB)
	assert.Equal(t, []int{1, 3}, NextIndices(used, 2))
}
