package handlers

import (
	"context"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/metrics"
)

// Up reconciles the cluster and prints the report. Unit failures are
// returned as ErrUnitsFailed after the report is printed.
func Up(ctx context.Context, opts *Options, metricsFile string) error {
	cs, err := loadInitialized(opts.store())
	if err != nil {
		return err
	}

	m := metrics.New()
	r, err := reconcilerFor(ctx, opts, cs, m)
	if err != nil {
		return err
	}

	result, err := r.Reconcile(ctx)
	if err != nil {
		return err
	}
	return finish(cs.Name, result, m, metricsFile)
}

// AddInstances raises a role's count and reconciles.
func AddInstances(ctx context.Context, opts *Options, role config.Role, count int) error {
	cs, err := loadInitialized(opts.store())
	if err != nil {
		return err
	}

	m := metrics.New()
	r, err := reconcilerFor(ctx, opts, cs, m)
	if err != nil {
		return err
	}

	result, err := r.AddInstances(ctx, role, count)
	if err != nil {
		return err
	}
	return finish(cs.Name, result, m, "")
}
