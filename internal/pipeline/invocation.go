package pipeline

import (
	"github.com/nao1215/socialmark/internal/model"
	"github.com/nao1215/socialmark/internal/signature"
)

// Invocation carries the state of one event through the steps.
// Each step fills in the fields the next one needs.
type Invocation struct {
	// Event is the observed transaction.
	Event *model.Event

	// Service is the matched watched service, set by MatchStep.
	Service signature.Service

	// Text is the decoded upload text, set by DecodeStep.
	Text string

	// Body is the parsed upload body, set by DecodeStep.
	Body model.DecodedBody

	// SharedURL is the extracted canonical URL, set by ExtractStep.
	SharedURL string

	// SavedTo is the annotation after the merge, set by AnnotateStep.
	SavedTo model.SavedTo
}

// NewInvocation creates an Invocation for ev.
func NewInvocation(ev *model.Event) *Invocation {
	return &Invocation{Event: ev}
}
