// Package cloud constructs the AWS service clients used by the provisioning
// engine and defines narrow interfaces over them so tests can substitute fakes.
package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/opensearch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Options configures client construction.
type Options struct {
	Region string

	// Static credentials. When empty, the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Profile selects a shared-config profile for the default chain.
	Profile string
}

// Clients bundles every AWS service client the engine talks to.
type Clients struct {
	Config     aws.Config
	EC2        EC2API
	IAM        IAMAPI
	S3         S3API
	EMR        EMRAPI
	OpenSearch OpenSearchAPI
	STS        STSAPI
}

// New loads AWS configuration and constructs the service clients.
// SDK-level retries are disabled: every call is already wrapped by the
// engine's own retry policy, and stacking both would multiply attempts.
func New(ctx context.Context, opts Options) (*Clients, error) {
	if opts.Region == "" {
		return nil, fmt.Errorf("region is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return FromConfig(cfg), nil
}

// FromConfig constructs the service clients from an already loaded config.
func FromConfig(cfg aws.Config) *Clients {
	return &Clients{
		Config:     cfg,
		EC2:        ec2.NewFromConfig(cfg),
		IAM:        iam.NewFromConfig(cfg),
		S3:         s3.NewFromConfig(cfg),
		EMR:        emr.NewFromConfig(cfg),
		OpenSearch: opensearch.NewFromConfig(cfg),
		STS:        sts.NewFromConfig(cfg),
	}
}
