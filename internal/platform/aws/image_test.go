package aws

import (
	"context"
	"testing"
	"time"

	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetImage(t *testing.T) {
	env := newTestEnv(t, "us-west-2")
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	env.ec2.AddImage("ami-1", "easy-db-lab-cassandra-amd64-1", ec2types.ArchitectureValuesX8664, created)

	img, err := env.client.GetImage(context.Background(), "ami-1")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "x86_64", img.Architecture)
	assert.True(t, created.Equal(img.CreationDate))
}

func TestGetImage_Missing(t *testing.T) {
	env := newTestEnv(t, "us-west-2")

	img, err := env.client.GetImage(context.Background(), "ami-missing")
	require.NoError(t, err)
	assert.Nil(t, img)
	assert.Equal(t, 1, env.ec2.Calls("DescribeImages"))
}

func TestListImages_FiltersByPattern(t *testing.T) {
	env := newTestEnv(t, "us-west-2")
	now := time.Now()
	env.ec2.AddImage("ami-1", "rustyrazorblade/images/easy-db-lab-cassandra-amd64-1", ec2types.ArchitectureValuesX8664, now)
	env.ec2.AddImage("ami-2", "rustyrazorblade/images/easy-db-lab-cassandra-arm64-1", ec2types.ArchitectureValuesArm64, now)
	env.ec2.AddImage("ami-3", "something-else", ec2types.ArchitectureValuesX8664, now)

	images, err := env.client.ListImages(context.Background(), "rustyrazorblade/images/easy-db-lab-cassandra-amd64-*", []string{"self"})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "ami-1", images[0].ID)
}
