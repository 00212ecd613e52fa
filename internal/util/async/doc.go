// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunAll] executes operations concurrently without cross-task cancellation
// and reports every terminal result; [RunParallel] joins all failures into
// one error. Both are built on golang.org/x/sync/errgroup.
package async
