// Package naming provides consistent names for AWS resources.
//
// Network resources are named {cluster}-{type} so describe-by-name finds
// them on every run. Instances are named {cluster}-{alias}. Idempotency
// tokens combine the cluster id with the alias so a retried launch can
// never produce a second instance for the same host.
package naming
