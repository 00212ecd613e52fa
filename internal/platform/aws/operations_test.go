package aws

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string
	Size int
}

func TestEnsureOperation(t *testing.T) {
	env := newTestEnv(t, "us-west-2")

	tests := []struct {
		name        string
		existing    *widget
		afterCreate *widget
		createErr   error
		validate    func(*widget) error
		wantID      string
		wantErr     string
		wantCreates int
	}{
		{
			name:        "creates when missing",
			wantID:      "w-new",
			wantCreates: 1,
		},
		{
			name:     "reuses existing",
			existing: &widget{ID: "w-old", Size: 1},
			wantID:   "w-old",
		},
		{
			name:     "validation failure",
			existing: &widget{ID: "w-old", Size: 2},
			validate: func(w *widget) error {
				if w.Size != 1 {
					return fmt.Errorf("size mismatch")
				}
				return nil
			},
			wantErr: "size mismatch",
		},
		{
			name:        "lost race falls back to existing",
			createErr:   fmt.Errorf("create: %w", ErrAlreadyExists),
			afterCreate: &widget{ID: "w-theirs"},
			wantID:      "w-theirs",
			wantCreates: 1,
		},
		{
			name:        "create failure",
			createErr:   errors.New("quota"),
			wantErr:     "failed to create widget w: quota",
			wantCreates: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := tt.existing
			creates := 0
			op := &EnsureOperation[widget]{
				Name:         "w",
				ResourceType: "widget",
				Get: func(context.Context) (*widget, error) {
					return current, nil
				},
				Create: func(context.Context) (*widget, error) {
					creates++
					if tt.createErr != nil {
						current = tt.afterCreate
						return nil, tt.createErr
					}
					return &widget{ID: "w-new"}, nil
				},
				Validate: tt.validate,
			}

			got, err := op.Execute(context.Background(), env.client)
			assert.Equal(t, tt.wantCreates, creates)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}
