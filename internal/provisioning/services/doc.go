// Package services provisions the optional managed services of a cluster:
// an EMR cluster and an OpenSearch domain. Each is one provisioning unit and
// is adopted by name when it already exists.
package services
