// Package observer provides the topic-based notification hub that event
// sources publish observed HTTP transactions to.
//
// Handlers are registered per topic and identified by value, so the same
// handler can later be removed with Unsubscribe. Publish delivers
// synchronously in subscription order; handlers that do real work are
// expected to hand it off to their own goroutines.
package observer
