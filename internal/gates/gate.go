// Package gates implements the entry-pipeline gate stack of spec.md §4.4:
// ten single-responsibility evaluators run in a fixed order, the first
// rejection short-circuiting the pipeline. Each gate implements the shared
// Gate interface spec.md §9 calls for, replacing the dynamic-dispatch gate
// objects of original_source/gates/*.py with a static Go interface.
package gates

import "context"

// Result is the outcome of one gate's evaluation. A zero-value Result
// (Allowed=false, empty Reason) is never valid — construct via Allow() or
// Reject().
type Result struct {
	Allowed bool
	Reason  string
	Payload map[string]any
}

func Allow() Result { return Result{Allowed: true} }

func Reject(reason string, payload map[string]any) Result {
	return Result{Allowed: false, Reason: reason, Payload: payload}
}

// Gate evaluates one entry-pipeline precondition for a symbol.
type Gate interface {
	Name() string
	Evaluate(ctx context.Context, symbol string) Result
}
