// Package llm holds the generative model providers and the decorator that records their calls.
package llm

import (
	"context"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

type CallRecorder interface {
	RecordAICall(provider, mode string, duration time.Duration, err error)
}

// Instrumented wraps a generator and records every call.
type Instrumented struct {
	next     ports.Generator
	provider string
	recorder CallRecorder
}

func NewInstrumented(next ports.Generator, provider string, recorder CallRecorder) *Instrumented {
	return &Instrumented{next: next, provider: provider, recorder: recorder}
}

func (g *Instrumented) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	start := time.Now()
	out, err := g.next.Generate(ctx, req)
	if g.recorder != nil {
		g.recorder.RecordAICall(g.provider, mode(req), time.Since(start), err)
	}
	return out, err
}

func mode(req domain.GenerationRequest) string {
	switch {
	case req.Attachment != nil:
		return "attachment"
	case req.JSON:
		return "json"
	default:
		return "text"
	}
}
