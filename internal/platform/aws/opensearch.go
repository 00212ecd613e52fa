package aws

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/opensearch"
	ostypes "github.com/aws/aws-sdk-go-v2/service/opensearch/types"
	"github.com/samber/lo"
)

// OpenSearch domain states derived from the status flags.
const (
	DomainStateCreating   = "CREATING"
	DomainStateProcessing = "PROCESSING"
	DomainStateActive     = "ACTIVE"
	DomainStateDeleted    = "DELETED"
)

// GetOpenSearchDomain returns the domain status or nil when it does not exist.
func (c *RealClient) GetOpenSearchDomain(ctx context.Context, name string) (*ServiceStatus, error) {
	domain, err := describe(ctx, c, "es:DescribeDomain", func(ctx context.Context) (*ostypes.DomainStatus, error) {
		res, err := c.clients.OpenSearch.DescribeDomain(ctx, &opensearch.DescribeDomainInput{DomainName: aws.String(name)})
		if err != nil {
			return nil, err
		}
		return res.DomainStatus, nil
	})
	if err != nil || domain == nil {
		return nil, err
	}
	out := toDomainStatus(domain)

	if domainARN := aws.ToString(domain.ARN); domainARN != "" {
		tags, err := describe(ctx, c, "es:ListTags", func(ctx context.Context) (*[]ostypes.Tag, error) {
			res, err := c.clients.OpenSearch.ListTags(ctx, &opensearch.ListTagsInput{ARN: aws.String(domainARN)})
			if err != nil {
				return nil, err
			}
			return &res.TagList, nil
		})
		if err != nil {
			return nil, err
		}
		if tags != nil {
			out.Tags = lo.SliceToMap(*tags, func(t ostypes.Tag) (string, string) {
				return aws.ToString(t.Key), aws.ToString(t.Value)
			})
		}
	}
	return out, nil
}

// CreateOpenSearchDomain creates a domain. An existing domain with the same
// name is reported through ErrAlreadyExists.
func (c *RealClient) CreateOpenSearchDomain(ctx context.Context, opts OpenSearchDomainOpts) (*ServiceStatus, error) {
	in := &opensearch.CreateDomainInput{
		DomainName:    aws.String(opts.Name),
		EngineVersion: aws.String(opts.EngineVersion),
		ClusterConfig: &ostypes.ClusterConfig{
			InstanceType:  ostypes.OpenSearchPartitionInstanceType(opts.InstanceType),
			InstanceCount: aws.Int32(opts.InstanceCount),
		},
		EBSOptions: &ostypes.EBSOptions{
			EBSEnabled: aws.Bool(true),
			VolumeType: ostypes.VolumeTypeGp3,
			VolumeSize: aws.Int32(opts.VolumeSizeGB),
		},
		NodeToNodeEncryptionOptions: &ostypes.NodeToNodeEncryptionOptions{Enabled: aws.Bool(true)},
		EncryptionAtRestOptions:     &ostypes.EncryptionAtRestOptions{Enabled: aws.Bool(true)},
		DomainEndpointOptions:       &ostypes.DomainEndpointOptions{EnforceHTTPS: aws.Bool(true)},
		TagList:                     openSearchTags(opts.Tags),
	}
	if opts.AccessPolicy != "" {
		in.AccessPolicies = aws.String(opts.AccessPolicy)
	}

	var out *ServiceStatus
	err := c.call(ctx, "es:CreateDomain", func(ctx context.Context) error {
		res, err := c.clients.OpenSearch.CreateDomain(ctx, in)
		if err != nil {
			return err
		}
		out = toDomainStatus(res.DomainStatus)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("domain", opts.Name).Msg("opensearch domain created")
	return out, nil
}

func toDomainStatus(d *ostypes.DomainStatus) *ServiceStatus {
	out := &ServiceStatus{
		ID:    aws.ToString(d.DomainId),
		Name:  aws.ToString(d.DomainName),
		State: domainState(d),
	}
	if ep := aws.ToString(d.Endpoint); ep != "" {
		out.Endpoints = append(out.Endpoints, ep)
	}
	if len(d.Endpoints) > 0 {
		vpc := lo.Values(d.Endpoints)
		sort.Strings(vpc)
		out.Endpoints = append(out.Endpoints, vpc...)
	}
	return out
}

func domainState(d *ostypes.DomainStatus) string {
	switch {
	case aws.ToBool(d.Deleted):
		return DomainStateDeleted
	case aws.ToBool(d.Processing):
		return DomainStateProcessing
	case aws.ToBool(d.Created) && (aws.ToString(d.Endpoint) != "" || len(d.Endpoints) > 0):
		return DomainStateActive
	default:
		return DomainStateCreating
	}
}
