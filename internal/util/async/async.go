// Package async provides utilities for parallel task execution.
//
// This package contains generic helpers for running multiple operations concurrently,
// collecting results, and handling errors. It's used for the pre-fan-out
// infrastructure phase and for the per-role/per-service provisioning units.
package async

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Result is the terminal outcome of a single task.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// RunAll executes every task concurrently and waits until all of them reach a
// terminal state. A failing task never cancels its siblings: the shared context
// is passed through unchanged. Results are returned in task order.
//
// limit bounds the number of tasks running at once; zero or negative means unbounded.
func RunAll(ctx context.Context, tasks []Task, limit int) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, task := range tasks {
		g.Go(func() error {
			start := time.Now()
			err := runRecovered(ctx, task)
			results[i] = Result{Name: task.Name, Err: err, Duration: time.Since(start)}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// RunParallel executes multiple tasks in parallel and waits for all of them.
// Every failure is returned, joined with errors.Join and prefixed with the task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "identity", Func: p.EnsureIdentity},
//	    {Name: "bucket", Func: p.EnsureBucket},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	var errs []error
	for _, res := range RunAll(ctx, tasks, 0) {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("failed to reconcile %s: %w", res.Name, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Failed returns only the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

func runRecovered(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	return task.Func(ctx)
}
