// Package fairthrottle provides a ready-to-wire admission-control layer
// on top of the lock-free fairness schemes in core: a YAML-driven
// Config, a functional-options builder (New), and a set of HTTP
// KeyExtractors for deriving the tenant key a throttle fans out on.
//
// A minimal server-side throttle:
//
//	throttle, err := fairthrottle.New(
//		fairthrottle.WithKind(fairthrottle.KindStochastic),
//		fairthrottle.WithBuckets(17),
//		fairthrottle.WithTps(100, 5, 1000),
//		fairthrottle.WithKeyExtractorConfig("ip-proxy"),
//	)
//
// or, loaded from a file:
//
//	throttle, err := fairthrottle.New(fairthrottle.WithConfigFile("throttle.yaml"))
//
// The returned core.FairThrottle is safe for concurrent use by many
// goroutines and holds no locks on its hot path; see the core package
// for the admission algorithm itself.
package fairthrottle
