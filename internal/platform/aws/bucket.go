package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// usEast1 rejects an explicit location constraint.
const usEast1 = "us-east-1"

// EnsureBucket creates the bucket in the client's region if it does not
// exist and applies the tags. A bucket we already own counts as existing.
func (c *RealClient) EnsureBucket(ctx context.Context, name string, tags map[string]string) error {
	exists, err := c.bucketExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", name, err)
	}

	if !exists {
		in := &s3.CreateBucketInput{Bucket: aws.String(name)}
		if c.region != "" && c.region != usEast1 {
			in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
				LocationConstraint: s3types.BucketLocationConstraint(c.region),
			}
		}
		err := c.call(ctx, "s3:CreateBucket", func(ctx context.Context) error {
			_, err := c.clients.S3.CreateBucket(ctx, in)
			return err
		})
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
		c.logger.Info().Str("bucket", name).Msg("bucket created")
	}

	if len(tags) == 0 {
		return nil
	}
	// New buckets may briefly report NoSuchBucket; it is retried.
	err = c.call(ctx, "s3:PutBucketTagging", func(ctx context.Context) error {
		_, err := c.clients.S3.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
			Bucket:  aws.String(name),
			Tagging: &s3types.Tagging{TagSet: s3Tags(tags)},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to tag bucket %s: %w", name, err)
	}
	return nil
}

func (c *RealClient) bucketExists(ctx context.Context, name string) (bool, error) {
	exists := false
	err := c.call(ctx, "s3:HeadBucket", func(ctx context.Context) error {
		_, err := c.clients.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
		if err != nil {
			if IsNotFound(err) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// PutObject uploads an object to a bucket.
func (c *RealClient) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	err := c.call(ctx, "s3:PutObject", func(ctx context.Context) error {
		_, err := c.clients.S3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(body),
			ContentLength: aws.Int64(int64(len(body))),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s in bucket %s: %w", key, bucket, err)
	}
	return nil
}

// GetObject downloads an object from a bucket.
func (c *RealClient) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	var buf bytes.Buffer
	err := c.call(ctx, "s3:GetObject", func(ctx context.Context) error {
		res, err := c.clients.S3.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = res.Body.Close()
		}()
		buf.Reset()
		_, err = buf.ReadFrom(res.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, bucket, err)
	}
	return buf.Bytes(), nil
}
