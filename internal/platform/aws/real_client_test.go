package aws

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/dblab/internal/util/netutil"
	"github.com/imamik/dblab/pkg/cloud"
)

func TestNewRealClient_Defaults(t *testing.T) {
	c := NewRealClient(&cloud.Clients{Config: sdkaws.Config{Region: "eu-west-1"}})

	assert.Equal(t, "eu-west-1", c.region)
	assert.NotNil(t, c.timeouts)
	assert.NotNil(t, c.ip)
	assert.NotNil(t, c.Clients())
}

func TestGetPublicIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintln(w, "198.51.100.23")
	}))
	defer srv.Close()

	d := netutil.NewIPDetector(nil)
	d.Endpoint = srv.URL
	c := NewRealClient(&cloud.Clients{}, WithIPDetector(d))

	ip, err := c.GetPublicIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.23", ip)
}

func TestMockClient_Defaults(t *testing.T) {
	m := &MockClient{}
	ctx := context.Background()

	vpc, err := m.EnsureVPC(ctx, "n", "10.0.0.0/16", nil)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/16", vpc.CIDR)

	n, err := m.EnsureIngressRules(ctx, "sg", []IngressRule{{}, {}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	svc, err := m.FindEMRCluster(ctx, "x", "c1")
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestMockClient_CustomFunc(t *testing.T) {
	m := &MockClient{
		RunInstanceFunc: func(_ context.Context, opts InstanceCreateOpts) (*Instance, error) {
			return &Instance{ID: "i-" + opts.ClientToken}, nil
		},
	}

	inst, err := m.RunInstance(context.Background(), InstanceCreateOpts{ClientToken: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "i-abc", inst.ID)
}
