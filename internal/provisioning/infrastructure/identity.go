package infrastructure

import (
	"encoding/json"
	"fmt"

	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/naming"
)

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource []string `json:"Resource"`
}

// BucketPolicy grants full access to one bucket and its objects.
func BucketPolicy(bucket string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect: "Allow",
			Action: []string{"s3:*"},
			Resource: []string{
				"arn:aws:s3:::" + bucket,
				"arn:aws:s3:::" + bucket + "/*",
			},
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EnsureIdentity ensures the instance role and profile attached to every
// host, with an inline policy for the cluster bucket.
func (p *Provisioner) EnsureIdentity(ctx *provisioning.Context) (state.Identity, error) {
	name := ctx.Topology.Name
	bucket := state.BucketName(ctx.ClusterID)
	roleName := naming.InstanceRole(name)
	ctx.Observer.Printf("[%s] Reconciling instance role %s...", phase, roleName)

	policy, err := BucketPolicy(bucket)
	if err != nil {
		return state.Identity{}, fmt.Errorf("failed to render bucket policy: %w", err)
	}

	role, err := ctx.Infra.EnsureInstanceRole(ctx, roleName, naming.InstanceProfile(name),
		naming.BucketPolicy(name), policy, ctx.Labels().WithName(roleName).Build())
	if err != nil {
		return state.Identity{}, fmt.Errorf("failed to ensure instance role: %w", err)
	}

	identity := state.Identity{
		RoleName:            role.RoleName,
		InstanceProfileName: role.ProfileName,
		InstanceProfileARN:  role.ProfileARN,
	}
	if err := ctx.Recorder.Update(func(s *state.ClusterState) { s.Identity = identity }); err != nil {
		return identity, err
	}
	return identity, nil
}
