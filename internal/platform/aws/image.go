package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// GetImage looks up a single image by id.
func (c *RealClient) GetImage(ctx context.Context, id string) (*Image, error) {
	var out *Image
	err := c.call(ctx, "ec2:DescribeImages", func(ctx context.Context) error {
		res, err := c.clients.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{ImageIds: []string{id}})
		if err != nil {
			// A malformed or unknown AMI id will not appear later.
			if IsNotFound(err) {
				out = nil
				return nil
			}
			return err
		}
		out = nil
		if len(res.Images) > 0 {
			img := toImage(res.Images[0])
			out = &img
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListImages returns available images matching the name pattern owned by owners.
func (c *RealClient) ListImages(ctx context.Context, namePattern string, owners []string) ([]Image, error) {
	var (
		images []Image
		token  *string
	)
	for {
		err := c.call(ctx, "ec2:DescribeImages", func(ctx context.Context) error {
			res, err := c.clients.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{
				Owners: owners,
				Filters: []ec2types.Filter{
					filter("name", namePattern),
					filter("state", string(ec2types.ImageStateAvailable)),
				},
				NextToken: token,
			})
			if err != nil {
				return err
			}
			for _, img := range res.Images {
				images = append(images, toImage(img))
			}
			token = res.NextToken
			return nil
		})
		if err != nil {
			return nil, err
		}
		if aws.ToString(token) == "" {
			return images, nil
		}
	}
}

func toImage(img ec2types.Image) Image {
	created, _ := time.Parse(time.RFC3339, aws.ToString(img.CreationDate))
	return Image{
		ID:             aws.ToString(img.ImageId),
		Name:           aws.ToString(img.Name),
		Architecture:   string(img.Architecture),
		RootDeviceName: aws.ToString(img.RootDeviceName),
		CreationDate:   created,
	}
}
