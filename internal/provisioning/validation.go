package provisioning

import (
	"fmt"
	"strings"

	"github.com/imamik/dblab/internal/config"
)

// ValidationError represents a preflight validation error or warning.
type ValidationError struct {
	Field    string // Topology field or check that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == "error"
}

// ValidationPhase implements the Phase interface for pre-flight validation.
type ValidationPhase struct{}

// NewValidationPhase creates a new validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// Name implements the Phase interface.
func (vp *ValidationPhase) Name() string {
	return "validation"
}

// Provision implements the Phase interface.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	var errs []string
	for _, ve := range validate(ctx) {
		if ve.IsError() {
			ctx.Observer.Event(Event{Type: EventValidationError, Phase: vp.Name(), Resource: ve.Field, Message: ve.Message})
			errs = append(errs, ve.Error())
			continue
		}
		ctx.Observer.Event(Event{Type: EventValidationWarning, Phase: vp.Name(), Resource: ve.Field, Message: ve.Message})
	}

	if len(errs) > 0 {
		return fmt.Errorf("preflight validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// validate runs all preflight checks and returns any errors or warnings.
func validate(ctx *Context) []ValidationError {
	var errs []ValidationError

	if ctx.ClusterID == "" {
		errs = append(errs, ValidationError{
			Field:    "cluster_id",
			Message:  "cluster is not initialized (run 'dblab init' first)",
			Severity: "error",
		})
	}

	t := ctx.Topology
	if t == nil {
		return append(errs, ValidationError{
			Field:    "topology",
			Message:  "checkpoint carries no topology snapshot",
			Severity: "error",
		})
	}
	if err := t.Validate(); err != nil {
		errs = append(errs, ValidationError{
			Field:    "topology",
			Message:  err.Error(),
			Severity: "error",
		})
	}

	for _, role := range config.Roles {
		if n := t.Count(role); n > len(t.Zones) && len(t.Zones) > 0 {
			errs = append(errs, ValidationError{
				Field:    "roles." + string(role),
				Message:  fmt.Sprintf("%d instances over %d zones; several will share a zone", n, len(t.Zones)),
				Severity: "warning",
			})
		}
	}

	if t.Storage.IOPS > 0 && t.Storage.Type == "gp2" {
		errs = append(errs, ValidationError{
			Field:    "storage.iops",
			Message:  "iops is ignored for gp2 volumes",
			Severity: "warning",
		})
	}

	if len(t.SSHCIDRs) == 0 {
		errs = append(errs, ValidationError{
			Field:    "ssh_cidrs",
			Message:  "no SSH CIDRs configured; ingress will be limited to the detected public IP",
			Severity: "warning",
		})
	}

	if _, err := ctx.Infra.CallerAccount(ctx); err != nil {
		errs = append(errs, ValidationError{
			Field:    "credentials",
			Message:  fmt.Sprintf("cannot resolve caller identity: %v", err),
			Severity: "error",
		})
	}

	return errs
}
