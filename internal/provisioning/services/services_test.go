package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"
	ostypes "github.com/aws/aws-sdk-go-v2/service/opensearch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/state"
	testutil "github.com/imamik/dblab/internal/testing"
	"github.com/imamik/dblab/internal/util/labels"
)

func readyCluster(t *testing.T, b *testutil.TopologyBuilder) *testutil.ClusterFixture {
	t.Helper()
	cluster := testutil.NewClusterFixture(t, b.WithZones("a", "b").Build())
	require.NoError(t, cluster.Recorder.Update(func(s *state.ClusterState) {
		s.Networking = state.Networking{
			VPCID:           "vpc-1",
			SubnetIDs:       map[string]string{"us-west-2a": "subnet-a", "us-west-2b": "subnet-b"},
			SecurityGroupID: "sg-1",
		}
		s.Bucket = state.BucketName(s.ClusterID)
		s.Identity = state.Identity{RoleName: "dblab-test-lab-instance", InstanceProfileName: "dblab-test-lab-instance"}
	}))
	return cluster
}

func TestProvisionEMR_Creates(t *testing.T) {
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithEMR())
	var got aws.EMRClusterOpts
	mock := &aws.MockClient{
		CreateEMRClusterFunc: func(_ context.Context, opts aws.EMRClusterOpts) (*aws.ServiceStatus, error) {
			got = opts
			return &aws.ServiceStatus{ID: "j-1", Name: opts.Name, State: "STARTING"}, nil
		},
		DescribeEMRClusterFunc: func(_ context.Context, id string) (*aws.ServiceStatus, error) {
			return &aws.ServiceStatus{ID: id, Name: "dblab-test-lab", State: EMRStateWaiting, Endpoints: []string{"master.example"}}, nil
		},
	}

	svc, err := NewProvisioner().ProvisionEMR(cluster.Context(mock))

	require.NoError(t, err)
	assert.Equal(t, state.ServiceEMR, svc.Kind)
	assert.Equal(t, "j-1", svc.ID)
	assert.Equal(t, EMRStateWaiting, svc.State)
	assert.Equal(t, []string{"master.example"}, svc.Endpoints)

	assert.Equal(t, "dblab-test-lab", got.Name)
	assert.Equal(t, "subnet-a", got.SubnetID)
	assert.Equal(t, "sg-1", got.SecurityGroupID)
	assert.Equal(t, "dblab-test-lab-instance", got.InstanceProfileName)
	assert.Equal(t, "s3://"+cluster.Recorder.Snapshot().Bucket+"/emr-logs/", got.LogURI)
	assert.Equal(t, int32(3), got.InstanceCount)
	assert.Equal(t, []string{"Spark"}, got.Applications)
}

func TestProvisionEMR_AdoptsExisting(t *testing.T) {
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithEMR())
	mock := &aws.MockClient{
		FindEMRClusterFunc: func(_ context.Context, name, clusterID string) (*aws.ServiceStatus, error) {
			assert.Equal(t, cluster.Recorder.Snapshot().ClusterID, clusterID)
			return &aws.ServiceStatus{ID: "j-old", Name: name, State: EMRStateRunning}, nil
		},
		CreateEMRClusterFunc: func(context.Context, aws.EMRClusterOpts) (*aws.ServiceStatus, error) {
			t.Fatal("must not create an existing cluster")
			return nil, nil
		},
	}

	svc, err := NewProvisioner().ProvisionEMR(cluster.Context(mock))

	require.NoError(t, err)
	assert.Equal(t, "j-old", svc.ID)
	assert.Len(t, cluster.Observer.EventsOfType(provisioning.EventResourceExists), 1)
}

func TestProvisionEMR_TerminatedIsFailure(t *testing.T) {
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithEMR())
	mock := &aws.MockClient{
		DescribeEMRClusterFunc: func(_ context.Context, id string) (*aws.ServiceStatus, error) {
			return &aws.ServiceStatus{ID: id, State: EMRStateTerminatedWithErrors}, nil
		},
	}

	svc, err := NewProvisioner().ProvisionEMR(cluster.Context(mock))

	require.Error(t, err)
	assert.Contains(t, err.Error(), EMRStateTerminatedWithErrors)
	assert.Equal(t, EMRStateTerminatedWithErrors, svc.State)
}

func TestProvisionEMR_SlowStartIsRecorded(t *testing.T) {
	cloud := testutil.NewCloudFixture(t, "us-west-2")
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithEMR())

	svc, err := NewProvisioner().ProvisionEMR(cluster.Context(cloud.Client))

	require.NoError(t, err, "readiness timeout is advisory")
	assert.Equal(t, string(emrtypes.ClusterStateStarting), svc.State)
	assert.Equal(t, "dblab-test-lab", svc.Name)
	assert.Equal(t, 1, cloud.EMR.Calls("RunJobFlow"))
	assert.Positive(t, cloud.EMR.Calls("DescribeCluster"))
}

func TestProvisionEMR_RequiresNetworking(t *testing.T) {
	cluster := testutil.NewClusterFixture(t, testutil.NewTopologyBuilder().WithEMR().Build())

	_, err := NewProvisioner().ProvisionEMR(cluster.Context(&aws.MockClient{}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "networking not initialized")
}

func TestProvisionOpenSearch_CreatesWithAccessPolicy(t *testing.T) {
	cloud := testutil.NewCloudFixture(t, "us-west-2")
	cloud.OpenSearch.Endpoint = "search-dblab-test-lab.us-west-2.es.amazonaws.com"
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithOpenSearch())

	svc, err := NewProvisioner().ProvisionOpenSearch(cluster.Context(cloud.Client))

	require.NoError(t, err)
	assert.Equal(t, state.ServiceOpenSearch, svc.Kind)
	assert.Equal(t, "dblab-test-lab", svc.Name)
	assert.Equal(t, aws.DomainStateActive, svc.State)
	assert.Equal(t, []string{cloud.OpenSearch.Endpoint}, svc.Endpoints)
	assert.Equal(t, 1, cloud.STS.Calls("GetCallerIdentity"))
	assert.Equal(t, 1, cloud.OpenSearch.Calls("CreateDomain"))
}

func TestProvisionOpenSearch_PassesPolicy(t *testing.T) {
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithOpenSearch())
	var got aws.OpenSearchDomainOpts
	mock := &aws.MockClient{
		CallerAccountFunc: func(context.Context) (string, error) { return "210987654321", nil },
		CreateOpenSearchDomainFunc: func(_ context.Context, opts aws.OpenSearchDomainOpts) (*aws.ServiceStatus, error) {
			got = opts
			return &aws.ServiceStatus{ID: "d-1", Name: opts.Name, State: aws.DomainStateActive, Endpoints: []string{"ep"}}, nil
		},
	}

	_, err := NewProvisioner().ProvisionOpenSearch(cluster.Context(mock))

	require.NoError(t, err)
	assert.Contains(t, got.AccessPolicy, "arn:aws:iam::210987654321:root")
	assert.Equal(t, "OpenSearch_2.13", got.EngineVersion)
	assert.Equal(t, int32(10), got.VolumeSizeGB)
}

func TestProvisionOpenSearch_AdoptsAfterAlreadyExists(t *testing.T) {
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithOpenSearch())
	lookups := 0
	mock := &aws.MockClient{
		GetOpenSearchDomainFunc: func(_ context.Context, name string) (*aws.ServiceStatus, error) {
			lookups++
			if lookups == 1 {
				return nil, nil
			}
			return &aws.ServiceStatus{
				ID: "d-1", Name: name, State: aws.DomainStateActive, Endpoints: []string{"ep"},
				Tags: map[string]string{labels.KeyClusterID: cluster.Recorder.Snapshot().ClusterID},
			}, nil
		},
		CreateOpenSearchDomainFunc: func(context.Context, aws.OpenSearchDomainOpts) (*aws.ServiceStatus, error) {
			return nil, fmt.Errorf("es:CreateDomain: %w", aws.ErrAlreadyExists)
		},
	}

	svc, err := NewProvisioner().ProvisionOpenSearch(cluster.Context(mock))

	require.NoError(t, err)
	assert.Equal(t, "d-1", svc.ID)
	assert.Equal(t, 2, lookups)
}

func TestProvisionOpenSearch_RaceLostToForeignDomain(t *testing.T) {
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithOpenSearch())
	lookups := 0
	mock := &aws.MockClient{
		GetOpenSearchDomainFunc: func(_ context.Context, name string) (*aws.ServiceStatus, error) {
			lookups++
			if lookups == 1 {
				return nil, nil
			}
			return &aws.ServiceStatus{ID: "d-9", Name: name, State: aws.DomainStateActive,
				Tags: map[string]string{labels.KeyClusterID: "someone-else"}}, nil
		},
		CreateOpenSearchDomainFunc: func(context.Context, aws.OpenSearchDomainOpts) (*aws.ServiceStatus, error) {
			return nil, fmt.Errorf("es:CreateDomain: %w", aws.ErrAlreadyExists)
		},
	}

	_, err := NewProvisioner().ProvisionOpenSearch(cluster.Context(mock))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to another cluster")
}

func TestProvisionOpenSearch_RefusesForeignDomain(t *testing.T) {
	cloud := testutil.NewCloudFixture(t, "us-west-2")
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithOpenSearch())
	arn := "arn:aws:es:us-west-2:123456789012:domain/dblab-test-lab"
	cloud.OpenSearch.Domains["dblab-test-lab"] = ostypes.DomainStatus{
		ARN:        awssdk.String(arn),
		DomainId:   awssdk.String("123456789012/dblab-test-lab"),
		DomainName: awssdk.String("dblab-test-lab"),
		Created:    awssdk.Bool(true),
		Deleted:    awssdk.Bool(false),
		Endpoint:   awssdk.String("search-foreign.us-west-2.es.amazonaws.com"),
	}
	cloud.OpenSearch.Tags[arn] = []ostypes.Tag{{Key: awssdk.String(labels.KeyClusterID), Value: awssdk.String("someone-else")}}

	_, err := NewProvisioner().ProvisionOpenSearch(cluster.Context(cloud.Client))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "opensearch domain dblab-test-lab belongs to another cluster")
	assert.Zero(t, cloud.OpenSearch.Calls("CreateDomain"))
}

func TestProvisionOpenSearch_ProcessingIsRecorded(t *testing.T) {
	cloud := testutil.NewCloudFixture(t, "us-west-2")
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithOpenSearch())

	svc, err := NewProvisioner().ProvisionOpenSearch(cluster.Context(cloud.Client))

	require.NoError(t, err)
	assert.Equal(t, aws.DomainStateProcessing, svc.State)
	assert.Empty(t, svc.Endpoints)
}

func TestAccessPolicy(t *testing.T) {
	policy, err := AccessPolicy("eu-central-1", "111122223333", "dblab-lab")
	require.NoError(t, err)

	var doc struct {
		Version   string
		Statement []struct {
			Effect    string
			Principal map[string]string
			Action    string
			Resource  string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(policy), &doc))
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, "2012-10-17", doc.Version)
	assert.Equal(t, "arn:aws:iam::111122223333:root", doc.Statement[0].Principal["AWS"])
	assert.Equal(t, "arn:aws:es:eu-central-1:111122223333:domain/dblab-lab/*", doc.Statement[0].Resource)
}

func TestProvision_Dispatch(t *testing.T) {
	cluster := readyCluster(t, testutil.NewTopologyBuilder().WithEMR())
	mock := &aws.MockClient{}

	svc, err := NewProvisioner().Provision(cluster.Context(mock), state.ServiceEMR)
	require.NoError(t, err)
	assert.Equal(t, state.ServiceEMR, svc.Kind)

	_, err = NewProvisioner().Provision(cluster.Context(mock), state.ServiceKind("redshift"))
	require.Error(t, err)
}

func TestEMRLogURI(t *testing.T) {
	assert.Equal(t, "s3://dblab-abc/emr-logs/", EMRLogURI("dblab-abc"))
	assert.Empty(t, EMRLogURI(""))
}
