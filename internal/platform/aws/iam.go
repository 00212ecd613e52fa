package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/samber/lo"
)

// ec2AssumeRolePolicy lets EC2 instances assume the role.
const ec2AssumeRolePolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"ec2.amazonaws.com"},"Action":"sts:AssumeRole"}]}`

// EnsureInstanceRole ensures the IAM role, its inline policy and an instance
// profile containing the role.
func (c *RealClient) EnsureInstanceRole(ctx context.Context, roleName, profileName, policyName, policyDocument string, tags map[string]string) (*InstanceRole, error) {
	role, err := (&EnsureOperation[iamtypes.Role]{
		Name:         roleName,
		ResourceType: "iam role",
		Get: func(ctx context.Context) (*iamtypes.Role, error) {
			return describe(ctx, c, "iam:GetRole", func(ctx context.Context) (*iamtypes.Role, error) {
				res, err := c.clients.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
				if err != nil {
					return nil, err
				}
				return res.Role, nil
			})
		},
		Create: func(ctx context.Context) (*iamtypes.Role, error) {
			var out *iamtypes.Role
			err := c.call(ctx, "iam:CreateRole", func(ctx context.Context) error {
				res, err := c.clients.IAM.CreateRole(ctx, &iam.CreateRoleInput{
					RoleName:                 aws.String(roleName),
					AssumeRolePolicyDocument: aws.String(ec2AssumeRolePolicy),
					Description:              aws.String("dblab instance role"),
					Tags:                     iamTags(tags),
				})
				if err != nil {
					return err
				}
				out = res.Role
				return nil
			})
			return out, err
		},
	}).Execute(ctx, c)
	if err != nil {
		return nil, err
	}

	if policyDocument != "" {
		// PutRolePolicy overwrites, so it is safe to repeat.
		err := c.call(ctx, "iam:PutRolePolicy", func(ctx context.Context) error {
			_, err := c.clients.IAM.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
				RoleName:       aws.String(roleName),
				PolicyName:     aws.String(policyName),
				PolicyDocument: aws.String(policyDocument),
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to put policy %s on role %s: %w", policyName, roleName, err)
		}
	}

	profile, err := (&EnsureOperation[iamtypes.InstanceProfile]{
		Name:         profileName,
		ResourceType: "instance profile",
		Get: func(ctx context.Context) (*iamtypes.InstanceProfile, error) {
			return c.getInstanceProfile(ctx, profileName)
		},
		Create: func(ctx context.Context) (*iamtypes.InstanceProfile, error) {
			var out *iamtypes.InstanceProfile
			err := c.call(ctx, "iam:CreateInstanceProfile", func(ctx context.Context) error {
				res, err := c.clients.IAM.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
					InstanceProfileName: aws.String(profileName),
					Tags:                iamTags(tags),
				})
				if err != nil {
					return err
				}
				out = res.InstanceProfile
				return nil
			})
			return out, err
		},
	}).Execute(ctx, c)
	if err != nil {
		return nil, err
	}

	attached := lo.ContainsBy(profile.Roles, func(r iamtypes.Role) bool {
		return aws.ToString(r.RoleName) == roleName
	})
	if !attached {
		if len(profile.Roles) > 0 {
			return nil, fmt.Errorf("instance profile %s already carries role %s",
				profileName, aws.ToString(profile.Roles[0].RoleName))
		}
		err := c.call(ctx, "iam:AddRoleToInstanceProfile", func(ctx context.Context) error {
			_, err := c.clients.IAM.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
				InstanceProfileName: aws.String(profileName),
				RoleName:            aws.String(roleName),
			})
			return err
		})
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("failed to add role %s to instance profile %s: %w", roleName, profileName, err)
		}
	}

	return &InstanceRole{
		RoleName:    roleName,
		RoleARN:     aws.ToString(role.Arn),
		ProfileName: profileName,
		ProfileARN:  aws.ToString(profile.Arn),
	}, nil
}

func (c *RealClient) getInstanceProfile(ctx context.Context, name string) (*iamtypes.InstanceProfile, error) {
	return describe(ctx, c, "iam:GetInstanceProfile", func(ctx context.Context) (*iamtypes.InstanceProfile, error) {
		res, err := c.clients.IAM.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{InstanceProfileName: aws.String(name)})
		if err != nil {
			return nil, err
		}
		return res.InstanceProfile, nil
	})
}

// CallerAccount returns the AWS account id of the credentials in use.
func (c *RealClient) CallerAccount(ctx context.Context) (string, error) {
	var account string
	err := c.call(ctx, "sts:GetCallerIdentity", func(ctx context.Context) error {
		res, err := c.clients.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			return err
		}
		account = aws.ToString(res.Account)
		return nil
	})
	return account, err
}
