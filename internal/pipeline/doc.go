// Package pipeline turns observed HTTP transactions into saved-to annotations.
//
// Each response-phase event runs through a fixed sequence of steps:
// match the request URL against the signature table, decode the upload
// body, extract the shared URL, and merge the service into the URL's
// annotation. The first failing step ends the invocation.
//
// Design decision: We keep the pipeline pattern with a Step interface because:
// 1. Each stage is testable on its own with a plain Invocation
// 2. Error handling and logging are consistent across steps
// 3. Tests can assemble partial pipelines (e.g., match only)
//
// The Controller subscribes to the observer hub and runs one invocation
// per event on its own goroutine, bounded by a Dispatcher built on
// errgroup. Invocations are detached from the publisher's cancellation.
package pipeline
