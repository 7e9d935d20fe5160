package pipeline

import (
	"context"
	"errors"

	"github.com/nao1215/socialmark/internal/annotation"
	"github.com/nao1215/socialmark/internal/body"
	"github.com/nao1215/socialmark/internal/signature"
)

// ErrNoMatch is returned by MatchStep when the request URL is not watched.
// It is the normal outcome for almost every event and is not a failure.
var ErrNoMatch = errors.New("request url is not a watched sharing endpoint")

// MatchStep looks the request URL up in the signature table.
type MatchStep struct {
	table *signature.Table
}

// NewMatchStep creates a MatchStep for table.
func NewMatchStep(table *signature.Table) *MatchStep {
	return &MatchStep{table: table}
}

// Name returns the step name.
func (s *MatchStep) Name() string {
	return "match"
}

// Do executes the match step.
func (s *MatchStep) Do(_ context.Context, inv *Invocation) error {
	service, ok := s.table.Match(inv.Event.URL)
	if !ok {
		return ErrNoMatch
	}
	inv.Service = service
	return nil
}

// DecodeStep reads the upload body as text and parses it.
type DecodeStep struct{}

// NewDecodeStep creates a DecodeStep.
func NewDecodeStep() *DecodeStep {
	return &DecodeStep{}
}

// Name returns the step name.
func (s *DecodeStep) Name() string {
	return "decode"
}

// Do executes the decode step.
func (s *DecodeStep) Do(_ context.Context, inv *Invocation) error {
	inv.Text = body.ReadText(inv.Event.Body, inv.Event.Charset)

	decoded, err := body.ParsePostData(inv.Text)
	if err != nil {
		return err
	}
	inv.Body = decoded
	return nil
}

// ExtractStep projects the shared URL out of the decoded body using the
// matched service's rule.
type ExtractStep struct{}

// NewExtractStep creates an ExtractStep.
func NewExtractStep() *ExtractStep {
	return &ExtractStep{}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extract step.
func (s *ExtractStep) Do(_ context.Context, inv *Invocation) error {
	url, err := inv.Service.Extract(inv.Body)
	if err != nil {
		return err
	}
	inv.SharedURL = url
	return nil
}

// AnnotateStep records the matched service on the shared URL.
type AnnotateStep struct {
	merger *annotation.Merger
}

// NewAnnotateStep creates an AnnotateStep writing through merger.
func NewAnnotateStep(merger *annotation.Merger) *AnnotateStep {
	return &AnnotateStep{merger: merger}
}

// Name returns the step name.
func (s *AnnotateStep) Name() string {
	return "annotate"
}

// Do executes the annotate step.
func (s *AnnotateStep) Do(ctx context.Context, inv *Invocation) error {
	savedTo, err := s.merger.RecordShare(ctx, inv.SharedURL, inv.Service.Name)
	if err != nil {
		return err
	}
	inv.SavedTo = savedTo
	return nil
}

// NewSharePipeline assembles the match, decode, extract and annotate steps.
func NewSharePipeline(table *signature.Table, merger *annotation.Merger, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewMatchStep(table),
		NewDecodeStep(),
		NewExtractStep(),
		NewAnnotateStep(merger),
	)
	return p
}
