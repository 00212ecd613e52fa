// Package orchestration coordinates a full provisioning run.
//
// # Workflow
//
// The Reconciler executes the following steps in order:
//  1. Validation - pre-flight topology and credential checks
//  2. Discovery - adopt instances and managed services already tagged with the cluster id
//  3. Infrastructure - VPC, subnets, gateway, route, security group, identity, bucket
//  4. Units - one concurrent unit per under-provisioned role and per missing managed service
//
// The checkpoint is saved after every step and after every completed unit,
// so an interrupted run loses at most the work of the units in flight.
//
// # Usage
//
//	reconciler := orchestration.NewReconciler(store, infra, orchestration.WithLogger(logger))
//	result, err := reconciler.Reconcile(ctx)
//
// The reconciler is idempotent - it can be run multiple times and will only
// create what discovery did not find.
package orchestration
