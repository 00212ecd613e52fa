// Package aws wraps the AWS service clients with the retry policy, timeout
// management and idempotent ensure semantics the provisioning engine relies on.
//
// # Architecture
//
// The package is organized into domain-specific modules:
//
//   - client.go: Domain types and the manager interfaces
//   - real_client.go: RealClient construction and options
//   - call.go: The retry wrapper applied to every SDK call
//   - errors.go: Error classification for retry logic
//   - operations.go: Generic Ensure pattern
//   - network.go: VPC, subnet, internet gateway and route management
//   - security_group.go: Security group and ingress rule management
//   - image.go: Machine image lookup
//   - instances.go: Instance launch and listing
//   - iam.go: Instance role and instance profile
//   - bucket.go: Cluster bucket and object access
//   - emr.go, opensearch.go: Managed services
//
// # Error Classification
//
// Every SDK error is reduced to an ErrorDescriptor (HTTP status, error code,
// provider flag) and classified in priority order:
//
//  1. already exists: never retried, returned wrapping ErrAlreadyExists
//  2. 403 / access denied: never retried, returned as *PermissionError
//  3. 5xx, throttling, connection reset: retried
//  4. 404 / not found: retried (eventual consistency)
//  5. validation: fatal
//  6. any other provider error: retried
//  7. errors outside the provider family: fatal
//
// # Retry and Timeout Configuration
//
// Timeouts and retry parameters come from config.Timeouts:
//
//   - DBLAB_TIMEOUT_API_CALL: per-attempt ceiling (default: 60s)
//   - DBLAB_RETRY_MAX_ATTEMPTS: retries after the first attempt (default: 5)
//   - DBLAB_RETRY_INITIAL_DELAY: first backoff delay (default: 1s)
//   - DBLAB_RETRY_MAX_DELAY: backoff ceiling (default: 30s)
//
// # Example Usage
//
//	clients, err := cloud.New(ctx, cloud.Options{Region: "us-west-2"})
//	if err != nil {
//	    return err
//	}
//	client := aws.NewRealClient(clients, aws.WithLogger(logger))
//
//	vpc, err := client.EnsureVPC(ctx, "dblab-lab", "10.0.0.0/16", tags)
package aws
