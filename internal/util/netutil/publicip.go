// Package netutil detects the operator's public address for SSH ingress rules.
package netutil

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultIPEndpoint returns the caller's public IPv4 address as plain text.
const DefaultIPEndpoint = "https://checkip.amazonaws.com"

// IPDetector looks up the public IPv4 address of the current host.
type IPDetector struct {
	Endpoint string
	client   *retryablehttp.Client
}

// NewIPDetector creates a detector with a small retry budget. logger may be nil.
func NewIPDetector(logger retryablehttp.LeveledLogger) *IPDetector {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil
	if logger != nil {
		rc.Logger = logger
	}
	return &IPDetector{Endpoint: DefaultIPEndpoint, client: rc}
}

// PublicIP returns the detected address.
func (d *IPDetector) PublicIP(ctx context.Context) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, d.Endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to detect public IP: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to detect public IP: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))
	if parsed := net.ParseIP(ip); parsed == nil || parsed.To4() == nil {
		return "", fmt.Errorf("endpoint returned invalid IPv4 address %q", ip)
	}
	return ip, nil
}

// HostCIDR returns the /32 CIDR for an IPv4 address.
func HostCIDR(ip string) string {
	return ip + "/32"
}
