// Package publish defines the delivery adapter contract and the registry
// that maps platform identifiers to adapters.
package publish

import (
	"context"
	"sort"
	"strings"
)

// Request carries the inputs for a single publish attempt.
type Request struct {
	MediaRef string
	Caption  string
}

// Result is the outcome of a publish attempt. Both success and handled
// failure come back as a Result: ordinary platform failures (auth,
// network, API rejection) are captured in Log with an empty PostedURL,
// never raised as errors. Only genuine defects may escape an adapter,
// and the dispatcher converts those too.
type Result struct {
	Log       string
	PostedURL string
}

// FailureMarker prefixes every failure log; SuccessMarker every success.
// Dashboards key off these, so adapters must use them.
const (
	SuccessMarker = "✅"
	FailureMarker = "❌"
)

// Failure builds a failure Result from a log message.
func Failure(log string) Result {
	return Result{Log: FailureMarker + " " + log}
}

// Failed reports whether the result encodes a handled failure.
func (r Result) Failed() bool {
	return strings.HasPrefix(r.Log, FailureMarker)
}

// Adapter performs the actual publish action for one platform and
// reports the outcome. Implementations must be safe for concurrent use
// and must not retain cross-call state beyond what the platform itself
// persists.
type Adapter interface {
	Publish(ctx context.Context, req Request) Result
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, req Request) Result

func (f AdapterFunc) Publish(ctx context.Context, req Request) Result {
	return f(ctx, req)
}

// Registry is a static platform -> Adapter mapping populated at startup.
// It holds no other state and is safe for concurrent reads.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given mapping.
func NewRegistry(adapters map[string]Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for platform, a := range adapters {
		if platform == "" || a == nil {
			continue
		}
		m[platform] = a
	}
	return &Registry{adapters: m}
}

// Resolve returns the adapter for the platform, or ok=false when the
// platform is unknown.
func (r *Registry) Resolve(platform string) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

// Platforms lists the registered platform identifiers, sorted.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
