package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/imamik/dblab/internal/provisioning"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// RecordingObserver is a provisioning.Observer that keeps every event.
// It is safe for concurrent use by provisioning units.
type RecordingObserver struct {
	mu       *sync.Mutex
	events   *[]provisioning.Event
	messages *[]string
	fields   map[string]string
}

// NewRecordingObserver creates an empty recording observer.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{
		mu:       &sync.Mutex{},
		events:   &[]provisioning.Event{},
		messages: &[]string{},
		fields:   map[string]string{},
	}
}

// Printf records the format string.
func (o *RecordingObserver) Printf(format string, _ ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*o.messages = append(*o.messages, format)
}

// Event records the event with the observer's context fields merged in.
func (o *RecordingObserver) Event(event provisioning.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.fields) > 0 {
		merged := make(map[string]string, len(o.fields)+len(event.Fields))
		for k, v := range o.fields {
			merged[k] = v
		}
		for k, v := range event.Fields {
			merged[k] = v
		}
		event.Fields = merged
	}
	*o.events = append(*o.events, event)
}

// Progress records a progress event.
func (o *RecordingObserver) Progress(phase string, _, _ int) {
	o.Event(provisioning.Event{Type: provisioning.EventProgress, Phase: phase})
}

// WithFields returns an observer sharing the same event log.
func (o *RecordingObserver) WithFields(fields map[string]string) provisioning.Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RecordingObserver{mu: o.mu, events: o.events, messages: o.messages, fields: merged}
}

// Events returns a copy of the recorded events.
func (o *RecordingObserver) Events() []provisioning.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]provisioning.Event(nil), *o.events...)
}

// EventsOfType returns the recorded events of one type.
func (o *RecordingObserver) EventsOfType(t provisioning.EventType) []provisioning.Event {
	var out []provisioning.Event
	for _, e := range o.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
