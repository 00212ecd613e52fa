package aws

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/logging"
	"github.com/imamik/dblab/internal/metrics"
	"github.com/imamik/dblab/internal/util/netutil"
	"github.com/imamik/dblab/pkg/cloud"
)

// RealClient implements InfrastructureManager using the AWS APIs.
type RealClient struct {
	clients  *cloud.Clients
	region   string
	timeouts *config.Timeouts
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	ip       *netutil.IPDetector
}

var _ InfrastructureManager = (*RealClient)(nil)

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// WithLogger sets the logger used for retry and resource events.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *RealClient) {
		c.logger = l
	}
}

// WithMetrics records API calls and retries.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *RealClient) {
		c.metrics = m
	}
}

// WithIPDetector sets the detector used by GetPublicIP.
func WithIPDetector(d *netutil.IPDetector) ClientOption {
	return func(c *RealClient) {
		c.ip = d
	}
}

// NewRealClient creates a new RealClient with optional configuration.
func NewRealClient(clients *cloud.Clients, opts ...ClientOption) *RealClient {
	c := &RealClient{
		clients:  clients,
		region:   clients.Config.Region,
		timeouts: config.LoadTimeouts(),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ip == nil {
		c.ip = netutil.NewIPDetector(logging.NewLeveledLogger(c.logger))
	}
	return c
}

// Clients returns the underlying service clients for operations not exposed
// through the RealClient interface.
func (c *RealClient) Clients() *cloud.Clients {
	return c.clients
}

// GetPublicIP returns the public IPv4 address of the host running dblab.
func (c *RealClient) GetPublicIP(ctx context.Context) (string, error) {
	return c.ip.PublicIP(ctx)
}
