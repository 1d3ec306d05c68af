package sched

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/HollandsP/Evergreen-sub003/errors"
	"github.com/HollandsP/Evergreen-sub003/fingerprint"
)

// Result is a provider's answer to a generation request.
type Result struct {
	// Response is an opaque reference to the produced artifact
	// (URL, file path, inline data URI).
	Response string
	// Payload optionally carries the artifact bytes for caching.
	Payload []byte
	// Cost is the actual charge for this invocation.
	Cost float64
	// Quality in [0,1]; informational, stored with the cached entry.
	Quality float64
}

// Invoker executes generation requests against one provider backend.
// Implementations must honor ctx cancellation: a cancelled context should
// abort the call and return ctx.Err().
type Invoker interface {
	// Invoke runs a single request to completion.
	Invoke(ctx context.Context, req fingerprint.Request) (*Result, error)

	// Kind returns the generation medium this provider serves.
	Kind() Kind
}

// BatchInvoker is optionally implemented by providers whose backend accepts
// multiple requests per call. Results must be positional: results[i] answers
// reqs[i], with a nil slot meaning that request failed.
type BatchInvoker interface {
	Invoker

	InvokeBatch(ctx context.Context, reqs []fingerprint.Request) ([]*Result, error)
}

// InvocationError carries a provider failure with a retryability verdict.
type InvocationError struct {
	Err       error
	Retryable bool
}

func (e *InvocationError) Error() string { return e.Err.Error() }

func (e *InvocationError) Unwrap() error { return e.Err }

// Permanent wraps an error as non-retryable (bad input, content policy,
// unsupported model).
func Permanent(err error) error {
	return &InvocationError{Err: err, Retryable: false}
}

// Transient wraps an error as retryable (rate limits, capacity, flaky network).
func Transient(err error) error {
	return &InvocationError{Err: err, Retryable: true}
}

// isRetryable classifies a provider failure. Explicit verdicts win; otherwise
// the error message is pattern-matched, and unrecognized errors default to
// retryable so transient provider hiccups are not promoted to permanent
// failures.
func isRetryable(err error) bool {
	var invErr *InvocationError
	if errors.As(err, &invErr) {
		return invErr.Retryable
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "invalid"),
		strings.Contains(errLower, "unsupported"),
		strings.Contains(errLower, "unauthorized"),
		strings.Contains(errLower, "forbidden"),
		strings.Contains(errLower, "content policy"):
		return false
	default:
		return true
	}
}

// Registry manages provider invokers by kind.
// Thread-safe for concurrent registration and lookup.
type Registry struct {
	providers map[Kind]Invoker
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[Kind]Invoker),
	}
}

// Register adds a provider for its kind.
// Panics if a provider is already registered for that kind.
func (r *Registry) Register(inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := inv.Kind()
	if _, exists := r.providers[kind]; exists {
		panic(fmt.Sprintf("provider already registered for kind: %s", kind))
	}
	r.providers[kind] = inv
}

// Get retrieves the provider for a kind.
// Returns nil if no provider is registered.
func (r *Registry) Get(kind Kind) Invoker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[kind]
}

// Has checks if a provider is registered for a kind.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.providers[kind]
	return exists
}

// Kinds returns all registered kinds.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.providers))
	for kind := range r.providers {
		kinds = append(kinds, kind)
	}
	return kinds
}
