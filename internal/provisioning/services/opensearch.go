package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws/arn"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/provisioning/discovery"
	"github.com/imamik/dblab/internal/state"
)

var openSearchReadiness = readiness{
	ready: func(s *aws.ServiceStatus) bool {
		return s.State == aws.DomainStateActive && len(s.Endpoints) > 0
	},
	failed: func(s *aws.ServiceStatus) bool {
		return s.State == aws.DomainStateDeleted
	},
}

// AccessPolicy returns a resource policy letting principals of account use
// every index of the domain.
func AccessPolicy(region, account, domain string) (string, error) {
	root := arn.ARN{Partition: "aws", Service: "iam", AccountID: account, Resource: "root"}
	resource := arn.ARN{Partition: "aws", Service: "es", Region: region, AccountID: account, Resource: "domain/" + domain + "/*"}

	doc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{{
			"Effect":    "Allow",
			"Principal": map[string]string{"AWS": root.String()},
			"Action":    "es:*",
			"Resource":  resource.String(),
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ProvisionOpenSearch adopts or creates the cluster's OpenSearch domain.
func (p *Provisioner) ProvisionOpenSearch(ctx *provisioning.Context) (state.ManagedServiceState, error) {
	t := ctx.Topology
	name := config.OpenSearchDomainName(t.Name)

	status, err := ctx.Infra.GetOpenSearchDomain(ctx, name)
	if err != nil {
		return state.ManagedServiceState{}, fmt.Errorf("failed to look up opensearch domain: %w", err)
	}

	if status != nil && status.State != aws.DomainStateDeleted {
		if !discovery.Owned(status, ctx.ClusterID) {
			return state.ManagedServiceState{}, errForeignDomain(name)
		}
		provisioning.LogResourceExists(ctx.Observer, phase, "opensearch", name, status.ID)
	} else {
		status, err = p.createDomain(ctx, name)
		if err != nil {
			return state.ManagedServiceState{}, err
		}
	}

	status, err = waitReady(ctx, name, status, func(c context.Context) (*aws.ServiceStatus, error) {
		return ctx.Infra.GetOpenSearchDomain(c, name)
	}, openSearchReadiness)
	svc := discovery.ServiceState(state.ServiceOpenSearch, status)
	if svc.Name == "" {
		svc.Name = name
	}
	return svc, err
}

func (p *Provisioner) createDomain(ctx *provisioning.Context, name string) (*aws.ServiceStatus, error) {
	t := ctx.Topology

	account, err := ctx.Infra.CallerAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}
	policy, err := AccessPolicy(t.Region, account, name)
	if err != nil {
		return nil, fmt.Errorf("failed to render access policy: %w", err)
	}

	provisioning.LogResourceCreating(ctx.Observer, phase, "opensearch", name)
	status, err := ctx.Infra.CreateOpenSearchDomain(ctx, aws.OpenSearchDomainOpts{
		Name:          name,
		EngineVersion: t.OpenSearch.EngineVersion,
		InstanceType:  t.OpenSearch.InstanceType,
		InstanceCount: int32(t.OpenSearch.InstanceCount),
		VolumeSizeGB:  int32(t.OpenSearch.VolumeSizeGB),
		AccessPolicy:  policy,
		Tags:          ctx.Labels().WithName(name).Build(),
	})
	if errors.Is(err, aws.ErrAlreadyExists) {
		// Lost a race with a concurrent run or an earlier attempt.
		status, err = ctx.Infra.GetOpenSearchDomain(ctx, name)
		if err == nil && status == nil {
			err = fmt.Errorf("domain %s reported as existing but not found", name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to adopt opensearch domain: %w", err)
		}
		if !discovery.Owned(status, ctx.ClusterID) {
			return nil, errForeignDomain(name)
		}
		provisioning.LogResourceExists(ctx.Observer, phase, "opensearch", name, status.ID)
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch domain: %w", err)
	}
	provisioning.LogResourceCreated(ctx.Observer, phase, "opensearch", name, status.ID)
	return status, nil
}

// OpenSearch domain names are account-wide, so a domain tagged for another
// cluster blocks this one until it is removed or the cluster is renamed.
func errForeignDomain(name string) error {
	return fmt.Errorf("opensearch domain %s belongs to another cluster", name)
}
