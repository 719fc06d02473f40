package core

// FairThrottle is the common contract implemented by both fairness
// schemes. Use one FairThrottle per remote endpoint (a load balancer, a
// fleet, a single downstream service). Sharing one FairThrottle across
// multiple unrelated endpoints defeats its purpose; creating one per
// thread or per local client makes it converge much more slowly and loses
// its fairness properties.
//
// Implementations must be safe to call from many goroutines concurrently.
type FairThrottle interface {
	// ShouldAccept applies the throttle for the given tenant key and
	// returns a decision. The key is opaque: callers decide what
	// identifies a tenant (an API key, an account id, a source IP).
	ShouldAccept(key string) ThrottleResult
}

// ThrottleResult is the outcome of a single ShouldAccept call. The caller
// SHOULD invoke exactly one of OnSuccess or OnFailure once the downstream
// call completes, so the throttle's AIMD loop can adapt; skipping both
// loses feedback but is otherwise harmless. Calling either when IsAllowed
// is false is a precondition violation.
type ThrottleResult interface {
	IsAllowed() bool
	OnSuccess()
	OnFailure()
}

// BucketIndexer is implemented by a ThrottleResult that can report which
// bucket(s) it consulted, for callers that want to surface that detail
// (e.g. the JSON decision API's bucket_indices field). It is not part of
// the core ThrottleResult contract: a FairThrottle implementation that
// has no meaningful notion of bucket indices need not implement it.
type BucketIndexer interface {
	BucketIndices() []int
}

// PreconditionError marks a programmer-misuse failure: an invalid
// construction argument or a call that violates a documented precondition
// (most commonly, invoking OnSuccess/OnFailure on a denied ThrottleResult).
// These are not recoverable runtime conditions and are raised as panics;
// PreconditionError is exported so a boundary that wants to convert a
// panic back into an error value can type-assert on it.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string {
	return "fairthrottle: precondition violated: " + e.Msg
}
