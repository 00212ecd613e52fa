// Package retry provides exponential backoff retry logic for transient failures.
//
// The [WithExponentialBackoff] function retries an operation with configurable
// max attempts, initial delay, maximum delay and a per-attempt timeout. It is
// used for every AWS API call, where the error classifier in
// internal/platform/aws decides which failures are wrapped with [Fatal].
package retry
