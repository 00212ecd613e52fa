package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout and retry values.
// These values can be customized via environment variables.
type Timeouts struct {
	APICall           time.Duration // Per-attempt ceiling for a single cloud API call
	InstanceHealth    time.Duration // Advisory wait for launched instances to report running
	ServiceReady      time.Duration // Advisory wait for managed services to leave their initial state
	PollInterval      time.Duration // Interval between health/readiness polls
	RetryMaxAttempts  int           // Maximum number of retries after the first attempt
	RetryInitialDelay time.Duration // Initial delay between retries
	RetryMaxDelay     time.Duration // Upper bound of the backoff delay
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - DBLAB_TIMEOUT_API_CALL (default: 60s)
//   - DBLAB_TIMEOUT_INSTANCE_HEALTH (default: 5m)
//   - DBLAB_TIMEOUT_SERVICE_READY (default: 2m)
//   - DBLAB_POLL_INTERVAL (default: 10s)
//   - DBLAB_RETRY_MAX_ATTEMPTS (default: 5)
//   - DBLAB_RETRY_INITIAL_DELAY (default: 1s)
//   - DBLAB_RETRY_MAX_DELAY (default: 30s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		APICall:           parseDuration("DBLAB_TIMEOUT_API_CALL", 60*time.Second),
		InstanceHealth:    parseDuration("DBLAB_TIMEOUT_INSTANCE_HEALTH", 5*time.Minute),
		ServiceReady:      parseDuration("DBLAB_TIMEOUT_SERVICE_READY", 2*time.Minute),
		PollInterval:      parseDuration("DBLAB_POLL_INTERVAL", 10*time.Second),
		RetryMaxAttempts:  parseInt("DBLAB_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("DBLAB_RETRY_INITIAL_DELAY", 1*time.Second),
		RetryMaxDelay:     parseDuration("DBLAB_RETRY_MAX_DELAY", 30*time.Second),
	}
}

// TestTimeouts returns short timeouts for unit tests.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		APICall:           time.Second,
		InstanceHealth:    50 * time.Millisecond,
		ServiceReady:      50 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		RetryMaxAttempts:  2,
		RetryInitialDelay: time.Millisecond,
		RetryMaxDelay:     5 * time.Millisecond,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
