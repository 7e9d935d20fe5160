package model

import (
	"io"
	"net/http"
	"time"
)

// Topic identifies the phase of an HTTP transaction an event was observed in.
// The values mirror the observer notifications of the browser the add-on ran in,
// so recorded captures stay readable across tools.
type Topic string

const (
	// TopicModifyRequest is published before the request is sent upstream.
	// The pipeline observes it but never annotates anything from it.
	TopicModifyRequest Topic = "http-on-modify-request"

	// TopicExamineResponse is published once the response headers arrived.
	// This is the only phase that triggers share detection.
	TopicExamineResponse Topic = "http-on-examine-response"
)

// Valid reports whether t is one of the known topics.
func (t Topic) Valid() bool {
	return t == TopicModifyRequest || t == TopicExamineResponse
}

// Event is a single observed HTTP transaction.
// It is owned by the event source for the duration of one observation;
// handlers must not keep the Body after they return from processing.
type Event struct {
	// ID uniquely identifies the event for log correlation.
	ID string

	// Topic is the transaction phase the event was published for.
	Topic Topic

	// Method is the HTTP method of the request.
	Method string

	// URL is the final request URL as seen by the host.
	URL string

	// Header holds the request headers. May be nil.
	Header http.Header

	// Body is the upload stream of the request. It may be nil when the
	// request carried no body, and it may implement io.Seeker.
	Body io.Reader

	// Charset is the content encoding hint for Body. Empty means UTF-8.
	Charset string

	// ObservedAt is when the event source saw the transaction.
	ObservedAt time.Time
}
