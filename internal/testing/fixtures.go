package testing

import (
	"context"
	"path/filepath"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/metrics"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/labels"
	"github.com/imamik/dblab/pkg/cloud"
	"github.com/imamik/dblab/pkg/cloud/fakes"
)

// TB is the subset of testing.TB the fixtures need. Both *testing.T and
// GinkgoT() satisfy it.
type TB interface {
	Helper()
	TempDir() string
	Fatalf(format string, args ...any)
}

// DefaultImageName is the image registered by CloudFixture.WithDefaultImage.
const DefaultImageName = "rustyrazorblade/images/easy-db-lab-cassandra-amd64-20240101"

// CloudFixture is a RealClient backed by the in-memory AWS fakes.
type CloudFixture struct {
	EC2        *fakes.FakeEC2
	IAM        *fakes.FakeIAM
	S3         *fakes.FakeS3
	EMR        *fakes.FakeEMR
	OpenSearch *fakes.FakeOpenSearch
	STS        *fakes.FakeSTS
	Metrics    *metrics.Metrics
	Client     *aws.RealClient
}

// NewCloudFixture builds fakes for region with short test timeouts.
func NewCloudFixture(t TB, region string) *CloudFixture {
	t.Helper()
	f := &CloudFixture{
		EC2:        fakes.NewFakeEC2(),
		IAM:        fakes.NewFakeIAM(),
		S3:         fakes.NewFakeS3(),
		EMR:        fakes.NewFakeEMR(),
		OpenSearch: fakes.NewFakeOpenSearch(),
		STS:        fakes.NewFakeSTS(),
		Metrics:    metrics.New(),
	}
	clients := &cloud.Clients{
		Config:     sdkaws.Config{Region: region},
		EC2:        f.EC2,
		IAM:        f.IAM,
		S3:         f.S3,
		EMR:        f.EMR,
		OpenSearch: f.OpenSearch,
		STS:        f.STS,
	}
	f.Client = aws.NewRealClient(clients,
		aws.WithTimeouts(config.TestTimeouts()),
		aws.WithMetrics(f.Metrics),
	)
	return f
}

// WithDefaultImage registers an amd64 image matching the default name pattern.
func (f *CloudFixture) WithDefaultImage() *CloudFixture {
	f.EC2.AddImage("ami-default", DefaultImageName, ec2types.ArchitectureValuesX8664,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return f
}

// InstanceProfileARN returns the ARN the fake IAM assigns to a profile.
func InstanceProfileARN(name string) string {
	return arn.ARN{Partition: "aws", Service: "iam", AccountID: "123456789012", Resource: "instance-profile/" + name}.String()
}

// ClusterFixture is an initialized cluster checkpoint on disk.
type ClusterFixture struct {
	Path     string
	Store    *state.FileStore
	Recorder *state.Recorder
	Observer *RecordingObserver
}

// NewClusterFixture mints a cluster identity for topo and saves it under t.TempDir().
func NewClusterFixture(t TB, topo *config.Topology) *ClusterFixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), state.DefaultFilename)
	store := state.NewFileStore(path)
	cs := state.New(topo, time.Now())
	if err := store.Save(cs); err != nil {
		t.Fatalf("failed to save checkpoint: %v", err)
	}
	return &ClusterFixture{
		Path:     path,
		Store:    store,
		Recorder: state.NewRecorder(store, cs),
		Observer: NewRecordingObserver(),
	}
}

// Context builds a provisioning context over infra with test timeouts.
func (c *ClusterFixture) Context(infra aws.InfrastructureManager) *provisioning.Context {
	return c.ContextWith(context.Background(), infra)
}

// ContextWith is Context with an explicit parent context.
func (c *ClusterFixture) ContextWith(ctx context.Context, infra aws.InfrastructureManager) *provisioning.Context {
	snap := c.Recorder.Snapshot()
	return &provisioning.Context{
		Context:   ctx,
		ClusterID: snap.ClusterID,
		Topology:  snap.Topology,
		Recorder:  c.Recorder,
		Infra:     infra,
		Observer:  c.Observer,
		Timeouts:  config.TestTimeouts(),
		Metrics:   metrics.New(),
	}
}

// Reload reads the checkpoint back from disk.
func (c *ClusterFixture) Reload(t TB) *state.ClusterState {
	t.Helper()
	cs, err := c.Store.Load()
	if err != nil {
		t.Fatalf("failed to load checkpoint: %v", err)
	}
	return cs
}

// TaggedInstance builds a pre-existing EC2 instance carrying the cluster tags
// discovery relies on. An empty role or alias leaves that tag off.
func TaggedInstance(clusterID, role, alias, zone string, st ec2types.InstanceStateName) ec2types.Instance {
	tags := []ec2types.Tag{{Key: sdkaws.String(labels.KeyClusterID), Value: sdkaws.String(clusterID)}}
	if role != "" {
		tags = append(tags, ec2types.Tag{Key: sdkaws.String(labels.KeyRole), Value: sdkaws.String(role)})
	}
	if alias != "" {
		tags = append(tags, ec2types.Tag{Key: sdkaws.String(labels.KeyAlias), Value: sdkaws.String(alias)})
	}
	return ec2types.Instance{
		State:            &ec2types.InstanceState{Name: st},
		Placement:        &ec2types.Placement{AvailabilityZone: sdkaws.String(zone)},
		PrivateIpAddress: sdkaws.String("10.0.0.10"),
		PublicIpAddress:  sdkaws.String("54.0.0.10"),
		Tags:             tags,
	}
}
