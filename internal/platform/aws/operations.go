package aws

import (
	"context"
	"errors"
	"fmt"
)

// EnsureOperation encapsulates get-or-create logic for any AWS resource that
// can be looked up by name.
//
// Usage example:
//
//	return (&EnsureOperation[VPC]{
//	    Name:         name,
//	    ResourceType: "vpc",
//	    Get:          func(ctx context.Context) (*VPC, error) { return c.getVPC(ctx, name) },
//	    Create:       func(ctx context.Context) (*VPC, error) { return c.createVPC(ctx, name, cidr, tags) },
//	    Validate: func(v *VPC) error {
//	        if v.CIDR != cidr {
//	            return fmt.Errorf("vpc %s exists with different CIDR %s", name, v.CIDR)
//	        }
//	        return nil
//	    },
//	}).Execute(ctx, c)
type EnsureOperation[T any] struct {
	Name         string
	ResourceType string

	// Get returns the existing resource or nil.
	Get func(ctx context.Context) (*T, error)

	// Create creates the resource.
	Create func(ctx context.Context) (*T, error)

	// Validate checks that an existing resource matches the desired state (optional).
	Validate func(resource *T) error
}

// Execute performs the ensure operation: get the existing resource, validate
// it if needed, or create a new one. A create that loses a race to a
// concurrent creator falls back to the existing resource.
func (op *EnsureOperation[T]) Execute(ctx context.Context, client *RealClient) (*T, error) {
	resource, err := op.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", op.ResourceType, op.Name, err)
	}

	if resource != nil {
		if op.Validate != nil {
			if err := op.Validate(resource); err != nil {
				return nil, err
			}
		}
		client.logger.Debug().Str("resource", op.ResourceType).Str("name", op.Name).Msg("resource exists")
		return resource, nil
	}

	resource, err = op.Create(ctx)
	if errors.Is(err, ErrAlreadyExists) {
		resource, err = op.Get(ctx)
		if err == nil && resource == nil {
			err = fmt.Errorf("%s %s reported as existing but not found", op.ResourceType, op.Name)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s %s: %w", op.ResourceType, op.Name, err)
	}

	client.logger.Info().Str("resource", op.ResourceType).Str("name", op.Name).Msg("resource created")
	return resource, nil
}
