package provisioning

import (
	"fmt"
	"time"
)

// RunPhases executes all provisioning phases sequentially and stops at the first failure.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Starting provisioning with %d phases...", len(phases))

	for i, phase := range phases {
		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))

		LogPhaseStart(ctx.Observer, name)

		if err := phase.Provision(ctx); err != nil {
			LogPhaseFailed(ctx.Observer, name, err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		LogPhaseComplete(ctx.Observer, name, time.Since(phaseStart))
	}

	ctx.Observer.Printf("Phases completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// PhaseFunc adapts a function to the Phase interface.
type PhaseFunc struct {
	PhaseName string
	Fn        func(ctx *Context) error
}

// Name implements the Phase interface.
func (p PhaseFunc) Name() string { return p.PhaseName }

// Provision implements the Phase interface.
func (p PhaseFunc) Provision(ctx *Context) error { return p.Fn(ctx) }
