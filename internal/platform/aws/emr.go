package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"
	"github.com/samber/lo"

	"github.com/imamik/dblab/internal/util/labels"
)

// activeEMRStates are the states of a cluster that can still serve work.
var activeEMRStates = []emrtypes.ClusterState{
	emrtypes.ClusterStateStarting,
	emrtypes.ClusterStateBootstrapping,
	emrtypes.ClusterStateRunning,
	emrtypes.ClusterStateWaiting,
}

// FindEMRCluster returns the active cluster named name that carries the
// clusterID tag, or nil. EMR names are not unique, so clusters of another
// lab with the same name are passed over.
func (c *RealClient) FindEMRCluster(ctx context.Context, name, clusterID string) (*ServiceStatus, error) {
	var found *ServiceStatus
	err := c.call(ctx, "emr:ListClusters", func(ctx context.Context) error {
		s, err := c.findOwnedEMRCluster(ctx, name, clusterID)
		found = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// findOwnedEMRCluster pages through active clusters without retrying and
// describes every name match until one carries the clusterID tag.
func (c *RealClient) findOwnedEMRCluster(ctx context.Context, name, clusterID string) (*ServiceStatus, error) {
	var marker *string
	for {
		res, err := c.clients.EMR.ListClusters(ctx, &emr.ListClustersInput{
			ClusterStates: activeEMRStates,
			Marker:        marker,
		})
		if err != nil {
			return nil, err
		}
		matches := lo.Filter(res.Clusters, func(s emrtypes.ClusterSummary, _ int) bool {
			return aws.ToString(s.Name) == name
		})
		for _, m := range matches {
			desc, err := c.clients.EMR.DescribeCluster(ctx, &emr.DescribeClusterInput{ClusterId: m.Id})
			if err != nil {
				return nil, err
			}
			if s := toEMRStatus(desc.Cluster); s.Tags[labels.KeyClusterID] == clusterID {
				return s, nil
			}
		}
		marker = res.Marker
		if aws.ToString(marker) == "" {
			return nil, nil
		}
	}
}

// DescribeEMRCluster returns the current state of a cluster.
func (c *RealClient) DescribeEMRCluster(ctx context.Context, id string) (*ServiceStatus, error) {
	var out *ServiceStatus
	err := c.call(ctx, "emr:DescribeCluster", func(ctx context.Context) error {
		res, err := c.clients.EMR.DescribeCluster(ctx, &emr.DescribeClusterInput{ClusterId: aws.String(id)})
		if err != nil {
			return err
		}
		out = toEMRStatus(res.Cluster)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEMRCluster launches a long-running EMR cluster. RunJobFlow has no
// idempotency token, so a retried attempt first looks for a cluster created
// by an earlier attempt.
func (c *RealClient) CreateEMRCluster(ctx context.Context, opts EMRClusterOpts) (*ServiceStatus, error) {
	in := &emr.RunJobFlowInput{
		Name:         aws.String(opts.Name),
		ReleaseLabel: aws.String(opts.ReleaseLabel),
		Applications: lo.Map(opts.Applications, func(a string, _ int) emrtypes.Application {
			return emrtypes.Application{Name: aws.String(a)}
		}),
		Instances: &emrtypes.JobFlowInstancesConfig{
			MasterInstanceType:          aws.String(opts.InstanceType),
			SlaveInstanceType:           aws.String(opts.InstanceType),
			InstanceCount:               aws.Int32(opts.InstanceCount),
			KeepJobFlowAliveWhenNoSteps: aws.Bool(true),
		},
		ServiceRole:       aws.String(opts.ServiceRole),
		JobFlowRole:       aws.String(opts.InstanceProfileName),
		VisibleToAllUsers: aws.Bool(true),
		Tags:              emrTags(opts.Tags),
	}
	if opts.SubnetID != "" {
		in.Instances.Ec2SubnetId = aws.String(opts.SubnetID)
	}
	if opts.SecurityGroupID != "" {
		in.Instances.AdditionalMasterSecurityGroups = []string{opts.SecurityGroupID}
		in.Instances.AdditionalSlaveSecurityGroups = []string{opts.SecurityGroupID}
	}
	if opts.KeyName != "" {
		in.Instances.Ec2KeyName = aws.String(opts.KeyName)
	}
	if opts.LogURI != "" {
		in.LogUri = aws.String(opts.LogURI)
	}

	var out *ServiceStatus
	attempt := 0
	err := c.call(ctx, "emr:RunJobFlow", func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			existing, err := c.findOwnedEMRCluster(ctx, opts.Name, opts.Tags[labels.KeyClusterID])
			if err != nil {
				return err
			}
			if existing != nil {
				out = existing
				return nil
			}
		}
		res, err := c.clients.EMR.RunJobFlow(ctx, in)
		if err != nil {
			return err
		}
		out = &ServiceStatus{
			ID:    aws.ToString(res.JobFlowId),
			Name:  opts.Name,
			State: string(emrtypes.ClusterStateStarting),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("cluster", opts.Name).Str("id", out.ID).Msg("emr cluster launched")
	return out, nil
}

func toEMRStatus(cl *emrtypes.Cluster) *ServiceStatus {
	out := &ServiceStatus{
		ID:    aws.ToString(cl.Id),
		Name:  aws.ToString(cl.Name),
		State: emrState(cl.Status),
		Tags: lo.SliceToMap(cl.Tags, func(t emrtypes.Tag) (string, string) {
			return aws.ToString(t.Key), aws.ToString(t.Value)
		}),
	}
	if dns := aws.ToString(cl.MasterPublicDnsName); dns != "" {
		out.Endpoints = []string{dns}
	}
	return out
}

func emrState(s *emrtypes.ClusterStatus) string {
	if s == nil {
		return ""
	}
	return string(s.State)
}
