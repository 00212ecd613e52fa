package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/provisioning/discovery"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/naming"
)

// EMR cluster states.
const (
	EMRStateRunning              = "RUNNING"
	EMRStateWaiting              = "WAITING"
	EMRStateTerminating          = "TERMINATING"
	EMRStateTerminated           = "TERMINATED"
	EMRStateTerminatedWithErrors = "TERMINATED_WITH_ERRORS"
)

var emrReadiness = readiness{
	ready: func(s *aws.ServiceStatus) bool {
		return s.State == EMRStateRunning || s.State == EMRStateWaiting
	},
	failed: func(s *aws.ServiceStatus) bool {
		return slices.Contains([]string{EMRStateTerminating, EMRStateTerminated, EMRStateTerminatedWithErrors}, s.State)
	},
}

// EMRLogURI is where EMR writes its logs inside the cluster bucket. Without
// a bucket EMR keeps its logs on the cluster.
func EMRLogURI(bucket string) string {
	if bucket == "" {
		return ""
	}
	return fmt.Sprintf("s3://%s/emr-logs/", bucket)
}

// ProvisionEMR adopts or launches the cluster's EMR cluster inside the
// first zone's subnet, running as the cluster instance profile.
func (p *Provisioner) ProvisionEMR(ctx *provisioning.Context) (state.ManagedServiceState, error) {
	t := ctx.Topology
	snap := ctx.State()
	name := naming.EMRCluster(t.Name)

	if !snap.Networking.Ready() {
		return state.ManagedServiceState{}, fmt.Errorf("networking not initialized")
	}
	if snap.Identity.InstanceProfileName == "" {
		return state.ManagedServiceState{}, fmt.Errorf("instance profile not initialized")
	}

	status, err := ctx.Infra.FindEMRCluster(ctx, name, ctx.ClusterID)
	if err != nil {
		return state.ManagedServiceState{}, fmt.Errorf("failed to look up EMR cluster: %w", err)
	}

	if status != nil {
		provisioning.LogResourceExists(ctx.Observer, phase, "emr", name, status.ID)
	} else {
		zones := t.ZoneNames()
		provisioning.LogResourceCreating(ctx.Observer, phase, "emr", name)
		status, err = ctx.Infra.CreateEMRCluster(ctx, aws.EMRClusterOpts{
			Name:                name,
			ReleaseLabel:        t.EMR.ReleaseLabel,
			InstanceType:        t.EMR.InstanceType,
			InstanceCount:       int32(t.EMR.InstanceCount),
			Applications:        t.EMR.Applications,
			ServiceRole:         t.EMR.ServiceRole,
			InstanceProfileName: snap.Identity.InstanceProfileName,
			SubnetID:            snap.Networking.SubnetIDs[zones[0]],
			SecurityGroupID:     snap.Networking.SecurityGroupID,
			KeyName:             t.KeyName,
			LogURI:              EMRLogURI(snap.Bucket),
			Tags:                ctx.Labels().WithName(name).Build(),
		})
		if err != nil {
			return state.ManagedServiceState{}, fmt.Errorf("failed to create EMR cluster: %w", err)
		}
		provisioning.LogResourceCreated(ctx.Observer, phase, "emr", name, status.ID)
	}

	id := status.ID
	status, err = waitReady(ctx, name, status, func(c context.Context) (*aws.ServiceStatus, error) {
		return ctx.Infra.DescribeEMRCluster(c, id)
	}, emrReadiness)
	svc := discovery.ServiceState(state.ServiceEMR, status)
	if svc.Name == "" {
		svc.Name = name
	}
	return svc, err
}
