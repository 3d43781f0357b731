package model

import (
	"github.com/cloudwego/eino/schema"
)

// TurnInput represents one user utterance submitted to the dialogue graph.
type TurnInput struct {
	SessionID string `json:"session_id"`
	Utterance string `json:"utterance"`
}

// TurnResult is the graph output for one completed turn.
type TurnResult struct {
	TurnID   string `json:"turn_id"`
	Reply    string `json:"reply"`
	Degraded bool   `json:"degraded"`

	// Knowledge resolution outcome for the turn.
	KnowledgeUsed   bool            `json:"knowledge_used"`
	KnowledgeSource KnowledgeSource `json:"knowledge_source"`

	// Memory metrics committed by the context update step.
	Summary           string `json:"summary,omitempty"`
	TotalTokens       int    `json:"total_tokens"`
	UserSequence      int    `json:"user_sequence"`
	AssistantSequence int    `json:"assistant_sequence"`
}

// KnowledgeSource identifies where a resolved fact came from.
type KnowledgeSource string

const (
	SourceLocal    KnowledgeSource = "local"
	SourceExternal KnowledgeSource = "external"
	SourceNone     KnowledgeSource = "none"
)

// KnowledgeQuery carries the raw utterance plus extracted candidate topic terms.
// Constructed and consumed within a single turn.
type KnowledgeQuery struct {
	Utterance string
	Terms     []string
	// TopicGuess is the utterance stripped of interrogative framing, used as
	// the query term for external lookup when no local topic matches.
	TopicGuess string
}

// KnowledgeResult is the outcome of knowledge resolution for one turn.
type KnowledgeResult struct {
	Source       KnowledgeSource
	Text         string
	MatchedTopic string
}

// NoKnowledge is the resolution outcome when the turn needs no fact or no
// source could provide one.
func NoKnowledge() *KnowledgeResult {
	return &KnowledgeResult{Source: SourceNone}
}

// PromptContext is the read-only memory snapshot used for prompt assembly.
type PromptContext struct {
	Summary     string
	Recent      []*schema.Message
	TotalTokens int
}

// TurnState is the per-turn graph local state. One instance per turn, never
// shared across turns or sessions.
// Concurrency model:
//   - registered via compose.WithGenLocalState, touched only inside
//     WithStatePreHandler / WithStatePostHandler / compose.ProcessState;
//   - Eino serializes access within those handlers, so no mutex is needed.
type TurnState struct {
	TurnID    string
	SessionID string
	UserInput string

	Context PromptContext
	Query   *KnowledgeQuery
	// SearchKnowledge is the conditional-edge decision set by the decider node.
	SearchKnowledge bool
	Knowledge       *KnowledgeResult

	Reply    string
	Degraded bool
}
