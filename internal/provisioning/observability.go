package provisioning

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Observer defines the interface for structured observability during provisioning.
type Observer interface {
	Logger

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType
	Phase     string // phase or unit key, e.g. "infrastructure", "db"
	Message   string
	Resource  string // resource name or id
	Timestamp time.Time
	Fields    map[string]string
}

// EventType names a provisioning event. Values are emitted as the "event"
// field of each log line.
type EventType string

const (
	EventPhaseStarted   EventType = "phase.started"
	EventPhaseCompleted EventType = "phase.completed"
	EventPhaseFailed    EventType = "phase.failed"

	EventUnitTransition EventType = "unit.transition"

	EventResourceCreating EventType = "resource.creating"
	EventResourceCreated  EventType = "resource.created"
	EventResourceExists   EventType = "resource.exists"
	EventResourceFailed   EventType = "resource.failed"
	// EventResourceSkipped marks a discovered resource that reconciliation ignores.
	EventResourceSkipped EventType = "resource.skipped"

	EventValidationWarning EventType = "validation.warning"
	EventValidationError   EventType = "validation.error"

	EventProgress EventType = "progress"
)

// ZerologObserver implements Observer on top of a zerolog logger.
type ZerologObserver struct {
	logger zerolog.Logger
}

// NewObserver creates an observer writing structured lines to logger.
func NewObserver(logger zerolog.Logger) *ZerologObserver {
	return &ZerologObserver{logger: logger}
}

// Printf implements Logger.
func (o *ZerologObserver) Printf(format string, v ...any) {
	o.logger.Info().Msgf(format, v...)
}

// Event implements Observer interface.
func (o *ZerologObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e := o.logger.WithLevel(levelFor(event.Type)).
		Time("at", event.Timestamp).
		Str("event", string(event.Type))
	if event.Phase != "" {
		e = e.Str("phase", event.Phase)
	}
	if event.Resource != "" {
		e = e.Str("resource", event.Resource)
	}
	if len(event.Fields) > 0 {
		e = e.Fields(toAny(event.Fields))
	}
	e.Msg(event.Message)
}

// Progress implements Observer interface.
func (o *ZerologObserver) Progress(phase string, current, total int) {
	e := o.logger.Info().Str("event", string(EventProgress)).Str("phase", phase).
		Int("current", current).Int("total", total)
	if total > 0 {
		e = e.Int("percent", (current*100)/total)
	}
	e.Msg("progress")
}

// WithFields implements Observer interface.
func (o *ZerologObserver) WithFields(fields map[string]string) Observer {
	return &ZerologObserver{logger: o.logger.With().Fields(toAny(fields)).Logger()}
}

func levelFor(t EventType) zerolog.Level {
	switch t {
	case EventPhaseFailed, EventResourceFailed, EventValidationError:
		return zerolog.ErrorLevel
	case EventValidationWarning:
		return zerolog.WarnLevel
	case EventResourceSkipped:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func toAny(fields map[string]string) map[string]any {
	return lo.MapValues(fields, func(v string, _ string) any { return v })
}

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogUnitTransition logs a provisioning unit state change.
func LogUnitTransition(observer Observer, unit, from, to string) {
	observer.Event(Event{
		Type:    EventUnitTransition,
		Phase:   unit,
		Message: fmt.Sprintf("%s -> %s", from, to),
		Fields: map[string]string{
			"from": from,
			"to":   to,
		},
	})
}

// LogResourceCreating logs a resource creation start event.
func LogResourceCreating(observer Observer, phase, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceCreating,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("creating %s", resourceType),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}

// LogResourceCreated logs a successful resource creation event.
func LogResourceCreated(observer Observer, phase, resourceType, resourceName, resourceID string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s created", resourceType),
		Fields: map[string]string{
			"type": resourceType,
			"id":   resourceID,
		},
	})
}

// LogResourceExists logs when a resource already exists.
func LogResourceExists(observer Observer, phase, resourceType, resourceName, resourceID string) {
	observer.Event(Event{
		Type:     EventResourceExists,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s already exists", resourceType),
		Fields: map[string]string{
			"type": resourceType,
			"id":   resourceID,
		},
	})
}

// LogResourceFailed logs a failed resource creation.
func LogResourceFailed(observer Observer, phase, resourceType, resourceName string, err error) {
	observer.Event(Event{
		Type:     EventResourceFailed,
		Phase:    phase,
		Resource: resourceName,
		Message:  fmt.Sprintf("%s failed: %v", resourceType, err),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}

// LogResourceSkipped logs a discovered resource that was ignored.
func LogResourceSkipped(observer Observer, phase, resourceID, reason string) {
	observer.Event(Event{
		Type:     EventResourceSkipped,
		Phase:    phase,
		Resource: resourceID,
		Message:  reason,
	})
}
