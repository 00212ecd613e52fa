// Package fakes provides in-memory implementations of the pkg/cloud
// interfaces. They keep just enough state to exercise ensure-or-create
// logic end to end and count every call so tests can assert idempotence.
package fakes

import (
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// apiError builds a provider error with the given code.
func apiError(code, msg string) error {
	return &smithy.GenericAPIError{Code: code, Message: msg, Fault: smithy.FaultClient}
}

// recorder counts calls per operation and replays injected errors.
type recorder struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string][]error
}

func newRecorder() recorder {
	return recorder{calls: map[string]int{}, errs: map[string][]error{}}
}

// FailNext queues errors returned by the next calls to op, one per call.
func (r *recorder) FailNext(op string, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[op] = append(r.errs[op], errs...)
}

// FailNextFor queues errors for calls to op whose input matches key. They
// are returned before errors queued with FailNext.
func (r *recorder) FailNextFor(op, key string, errs ...error) {
	r.FailNext(op+"/"+key, errs...)
}

// Calls returns how many times op was invoked, including failed attempts.
func (r *recorder) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// begin must be called with r.mu held.
func (r *recorder) begin(op string) error {
	r.calls[op]++
	if q := r.errs[op]; len(q) > 0 {
		r.errs[op] = q[1:]
		return q[0]
	}
	return nil
}

// beginFor is begin for an input identified by key. It must be called with
// r.mu held.
func (r *recorder) beginFor(op, key string) error {
	if q := r.errs[op+"/"+key]; len(q) > 0 {
		r.calls[op]++
		r.errs[op+"/"+key] = q[1:]
		return q[0]
	}
	return r.begin(op)
}

// matchFilters reports whether a resource with the given tags and attributes
// satisfies every filter. Values may use shell-style wildcards.
func matchFilters(filters []ec2types.Filter, tags []ec2types.Tag, attrs map[string]string) bool {
	for _, f := range filters {
		name := aws.ToString(f.Name)
		var (
			val string
			ok  bool
		)
		if len(name) > 4 && name[:4] == "tag:" {
			val, ok = tagValue(tags, name[4:])
		} else {
			val, ok = attrs[name]
		}
		if !ok || !matchAny(f.Values, val) {
			return false
		}
	}
	return true
}

func matchAny(patterns []string, val string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, val); ok {
			return true
		}
	}
	return false
}

func tagValue(tags []ec2types.Tag, key string) (string, bool) {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value), true
		}
	}
	return "", false
}

func tagsFor(specs []ec2types.TagSpecification, rt ec2types.ResourceType) []ec2types.Tag {
	var out []ec2types.Tag
	for _, s := range specs {
		if s.ResourceType == rt {
			out = append(out, s.Tags...)
		}
	}
	return out
}

func mergeTags(existing, add []ec2types.Tag) []ec2types.Tag {
	for _, t := range add {
		replaced := false
		for i := range existing {
			if aws.ToString(existing[i].Key) == aws.ToString(t.Key) {
				existing[i] = t
				replaced = true
			}
		}
		if !replaced {
			existing = append(existing, t)
		}
	}
	return existing
}
