package infrastructure

import (
	"fmt"

	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/state"
)

// EnsureBucket ensures the cluster bucket exists and records its name.
func (p *Provisioner) EnsureBucket(ctx *provisioning.Context) error {
	bucket := state.BucketName(ctx.ClusterID)
	ctx.Observer.Printf("[%s] Reconciling bucket %s...", phase, bucket)

	if err := ctx.Infra.EnsureBucket(ctx, bucket, ctx.Labels().WithName(bucket).Build()); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}
	return ctx.Recorder.Update(func(s *state.ClusterState) { s.Bucket = bucket })
}
