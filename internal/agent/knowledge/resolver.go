package knowledge

import (
	"context"
	"time"

	"github.com/adam-npc/dialogue-core/internal/agent/model"
	logx "github.com/adam-npc/dialogue-core/pkg/logger"
)

const DefaultLookupTimeout = 3 * time.Second

// Resolver applies the knowledge-resolution policy for one query: local index
// first (lower latency, higher trust, no outbound dependency), external lookup
// only on a local miss. It is stateless and never fails a turn: every external
// problem collapses into a SourceNone result.
type Resolver struct {
	index   *Index
	lookup  model.LookupService
	timeout time.Duration
}

// NewResolver wires the local index and the optional external lookup service.
func NewResolver(index *Index, lookup model.LookupService, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Resolver{index: index, lookup: lookup, timeout: timeout}
}

// Resolve returns a fact snippet for the query or a SourceNone result.
func (r *Resolver) Resolve(ctx context.Context, q model.KnowledgeQuery) *model.KnowledgeResult {
	if topic, fact, ok := r.index.Match(q.Utterance); ok {
		logx.Debug().Str("topic", topic).Msg("knowledge resolved from local index")
		return &model.KnowledgeResult{
			Source:       model.SourceLocal,
			Text:         fact,
			MatchedTopic: topic,
		}
	}

	if r.lookup == nil || q.TopicGuess == "" {
		return model.NoKnowledge()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.lookup.Lookup(ctx, q.TopicGuess)
	if err != nil {
		// Recoverable by contract: the workflow still produces a reply
		// without the fact.
		logx.Warn().Err(err).Str("term", q.TopicGuess).Msg("external knowledge lookup failed")
		return model.NoKnowledge()
	}
	if text == "" {
		return model.NoKnowledge()
	}

	logx.Debug().Str("term", q.TopicGuess).Msg("knowledge resolved from external lookup")
	return &model.KnowledgeResult{
		Source:       model.SourceExternal,
		Text:         text,
		MatchedTopic: q.TopicGuess,
	}
}
