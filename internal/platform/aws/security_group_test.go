package aws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() []IngressRule {
	return []IngressRule{
		{Protocol: "tcp", FromPort: 22, ToPort: 22, CIDR: "203.0.113.10/32", Description: "ssh"},
		{Protocol: "tcp", FromPort: 0, ToPort: 65535, CIDR: "10.0.0.0/16"},
		{Protocol: "udp", FromPort: 0, ToPort: 65535, CIDR: "10.0.0.0/16"},
	}
}

func TestEnsureSecurityGroup_Idempotent(t *testing.T) {
	env := newTestEnv(t, "us-west-2")
	ctx := context.Background()

	sg, err := env.client.EnsureSecurityGroup(ctx, "vpc-1", "dblab-lab-sg", "lab", map[string]string{"Name": "dblab-lab-sg"})
	require.NoError(t, err)
	again, err := env.client.EnsureSecurityGroup(ctx, "vpc-1", "dblab-lab-sg", "lab", map[string]string{"Name": "dblab-lab-sg"})
	require.NoError(t, err)

	assert.Equal(t, sg.ID, again.ID)
	assert.Equal(t, 1, env.ec2.Calls("CreateSecurityGroup"))
}

func TestEnsureSecurityGroup_DuplicateWithoutGroup(t *testing.T) {
	env := newTestEnv(t, "us-west-2")
	env.ec2.FailNext("CreateSecurityGroup", apiErr("InvalidGroup.Duplicate"))

	_, err := env.client.EnsureSecurityGroup(context.Background(), "vpc-1", "dblab-lab-sg", "lab", nil)
	assert.ErrorContains(t, err, "reported as existing but not found")
	assert.Equal(t, 2, env.ec2.Calls("DescribeSecurityGroups"))
}

func TestEnsureIngressRules(t *testing.T) {
	env := newTestEnv(t, "us-west-2")
	ctx := context.Background()

	sg, err := env.client.EnsureSecurityGroup(ctx, "vpc-1", "dblab-lab-sg", "lab", nil)
	require.NoError(t, err)

	created, err := env.client.EnsureIngressRules(ctx, sg.ID, testRules())
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	created, err = env.client.EnsureIngressRules(ctx, sg.ID, testRules())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 3, env.ec2.Calls("AuthorizeSecurityGroupIngress"))
}

func TestEnsureIngressRules_SwallowsDuplicate(t *testing.T) {
	env := newTestEnv(t, "us-west-2")
	ctx := context.Background()

	sg, err := env.client.EnsureSecurityGroup(ctx, "vpc-1", "dblab-lab-sg", "lab", nil)
	require.NoError(t, err)
	env.ec2.FailNext("AuthorizeSecurityGroupIngress", apiErr("InvalidPermission.Duplicate"))

	created, err := env.client.EnsureIngressRules(ctx, sg.ID, testRules())
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestEnsureIngressRules_UnknownGroup(t *testing.T) {
	env := newTestEnv(t, "us-west-2")

	_, err := env.client.EnsureIngressRules(context.Background(), "sg-missing", testRules())
	assert.ErrorContains(t, err, "not found")
}

func TestIngressRule_Matches(t *testing.T) {
	a := IngressRule{Protocol: "tcp", FromPort: 22, ToPort: 22, CIDR: "1.2.3.4/32", Description: "x"}
	b := IngressRule{Protocol: "tcp", FromPort: 22, ToPort: 22, CIDR: "1.2.3.4/32"}
	c := IngressRule{Protocol: "udp", FromPort: 22, ToPort: 22, CIDR: "1.2.3.4/32"}

	assert.True(t, a.Matches(b))
	assert.False(t, a.Matches(c))
}
