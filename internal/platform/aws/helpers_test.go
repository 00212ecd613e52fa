package aws

import (
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/metrics"
	"github.com/imamik/dblab/pkg/cloud"
	"github.com/imamik/dblab/pkg/cloud/fakes"
)

type testEnv struct {
	ec2     *fakes.FakeEC2
	iam     *fakes.FakeIAM
	s3      *fakes.FakeS3
	emr     *fakes.FakeEMR
	os      *fakes.FakeOpenSearch
	sts     *fakes.FakeSTS
	metrics *metrics.Metrics
	client  *RealClient
}

func newTestEnv(t *testing.T, region string) *testEnv {
	t.Helper()
	env := &testEnv{
		ec2:     fakes.NewFakeEC2(),
		iam:     fakes.NewFakeIAM(),
		s3:      fakes.NewFakeS3(),
		emr:     fakes.NewFakeEMR(),
		os:      fakes.NewFakeOpenSearch(),
		sts:     fakes.NewFakeSTS(),
		metrics: metrics.New(),
	}
	clients := &cloud.Clients{
		Config:     sdkaws.Config{Region: region},
		EC2:        env.ec2,
		IAM:        env.iam,
		S3:         env.s3,
		EMR:        env.emr,
		OpenSearch: env.os,
		STS:        env.sts,
	}
	env.client = NewRealClient(clients,
		WithTimeouts(config.TestTimeouts()),
		WithMetrics(env.metrics),
	)
	return env
}
