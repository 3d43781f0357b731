package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// CompletionService is the opaque text-completion dependency. Implementations
// must honor ctx deadlines; callers bound every invocation with a timeout and
// treat any error as recoverable.
type CompletionService interface {
	Complete(ctx context.Context, messages []*schema.Message, maxTokens int) (string, error)
}

// LookupService is the opaque key→text fallback dependency. A miss is reported
// as errx.ErrNotFound; timeouts and outages surface as their errx kinds. The
// resolver converts all of them into a "no knowledge" result.
type LookupService interface {
	Lookup(ctx context.Context, term string) (string, error)
}
