package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/adam-npc/dialogue-core/internal/agent/graph/prompts"
	"github.com/adam-npc/dialogue-core/internal/agent/knowledge"
	"github.com/adam-npc/dialogue-core/internal/agent/memory"
	"github.com/adam-npc/dialogue-core/internal/agent/model"
	"github.com/adam-npc/dialogue-core/internal/agent/session"
	errx "github.com/adam-npc/dialogue-core/internal/core/error"
	logx "github.com/adam-npc/dialogue-core/pkg/logger"
)

// Node names, one per turn-processing step.
const (
	NodeInputProcessor    = "input_processor"
	NodeContextRetriever  = "context_retriever"
	NodeKnowledgeDecider  = "knowledge_decider"
	NodeKnowledgeSearcher = "knowledge_searcher"
	NodeResponseAssembler = "response_assembler"
	NodeResponseGenerator = "response_generator"
	NodeContextUpdater    = "context_updater"
)

// NewInputProcessorPreHandler initializes per-turn state before validation.
func NewInputProcessorPreHandler() func(context.Context, model.TurnInput, *model.TurnState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.TurnState) (model.TurnInput, error) {
		s.TurnID = uuid.NewString()
		s.SessionID = in.SessionID
		s.UserInput = strings.TrimSpace(in.Utterance)
		return in, nil
	}
}

// NewInputProcessorNode validates the incoming utterance. Empty or
// whitespace-only input terminates the turn before any memory mutation.
func NewInputProcessorNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (model.TurnInput, error) {
		if strings.TrimSpace(in.Utterance) == "" {
			return model.TurnInput{}, errx.Invalid("empty utterance")
		}
		if in.SessionID == "" {
			return model.TurnInput{}, errx.Invalid("missing session id")
		}
		return in, nil
	})
}

// NewContextRetrieverNode snapshots the session window and extracts the
// knowledge query for the decider.
func NewContextRetrieverNode(sessions *session.Manager) *compose.Lambda {
	return compose.InvokableLambda(retryOnce(NodeContextRetriever,
		func(ctx context.Context, in model.TurnInput) (model.KnowledgeQuery, error) {
			snap := sessions.Memory(in.SessionID).Context()

			promptCtx := model.PromptContext{
				Summary:     snap.Summary,
				Recent:      toSchemaMessages(snap.Recent),
				TotalTokens: snap.TotalTokens,
			}
			err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
				s.Context = promptCtx
				return nil
			})
			if err != nil {
				return model.KnowledgeQuery{}, errx.Inconsistent(fmt.Sprintf("store prompt context: %v", err))
			}

			return knowledge.ExtractQuery(in.Utterance), nil
		}))
}

// NewKnowledgeDeciderNode applies the knowledge-seeking classifier and records
// the conditional-edge decision in turn state. Its output is a placeholder
// result so both branch targets receive the same payload type.
func NewKnowledgeDeciderNode(classifier knowledge.Classifier) *compose.Lambda {
	return compose.InvokableLambda(retryOnce(NodeKnowledgeDecider,
		func(ctx context.Context, q model.KnowledgeQuery) (*model.KnowledgeResult, error) {
			seeking := classifier.IsKnowledgeSeeking(q.Utterance)

			err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
				s.Query = &q
				s.SearchKnowledge = seeking
				logx.Debug().
					Str("turn_id", s.TurnID).
					Bool("knowledge_seeking", seeking).
					Int("terms", len(q.Terms)).
					Msg("knowledge decision")
				return nil
			})
			if err != nil {
				return nil, errx.Inconsistent(fmt.Sprintf("store knowledge decision: %v", err))
			}

			return model.NoKnowledge(), nil
		}))
}

// NewKnowledgeSearchCondition routes to the searcher only when the decider
// marked the turn knowledge-seeking.
func NewKnowledgeSearchCondition() func(context.Context, *model.KnowledgeResult) (string, error) {
	return func(ctx context.Context, _ *model.KnowledgeResult) (string, error) {
		var seeking bool
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			seeking = s.SearchKnowledge
			return nil
		})
		if err != nil {
			return "", errx.Inconsistent(fmt.Sprintf("read knowledge decision: %v", err))
		}
		if seeking {
			return NodeKnowledgeSearcher, nil
		}
		return NodeResponseAssembler, nil
	}
}

// NewKnowledgeSearcherNode resolves the query. Resolution never fails a turn:
// the resolver converts every external problem into a SourceNone result.
func NewKnowledgeSearcherNode(resolver *knowledge.Resolver) *compose.Lambda {
	return compose.InvokableLambda(retryOnce(NodeKnowledgeSearcher,
		func(ctx context.Context, _ *model.KnowledgeResult) (*model.KnowledgeResult, error) {
			var query model.KnowledgeQuery
			err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
				if s.Query == nil {
					return fmt.Errorf("missing knowledge query in state")
				}
				query = *s.Query
				return nil
			})
			if err != nil {
				return nil, errx.Inconsistent(err.Error())
			}

			return resolver.Resolve(ctx, query), nil
		}))
}

// NewResponseAssemblerPreHandler records the resolution outcome arriving from
// either branch.
func NewResponseAssemblerPreHandler() func(context.Context, *model.KnowledgeResult, *model.TurnState) (*model.KnowledgeResult, error) {
	return func(ctx context.Context, in *model.KnowledgeResult, s *model.TurnState) (*model.KnowledgeResult, error) {
		if in == nil {
			in = model.NoKnowledge()
		}
		s.Knowledge = in
		return in, nil
	}
}

// NewResponseAssemblerNode composes the prompt: persona preamble, optional
// summary block, optional known-fact block, recent history in chronological
// order, then the new user utterance.
func NewResponseAssemblerNode(persona model.PersonaConfig) *compose.Lambda {
	return compose.InvokableLambda(retryOnce(NodeResponseAssembler,
		func(ctx context.Context, res *model.KnowledgeResult) ([]*schema.Message, error) {
			var (
				promptCtx model.PromptContext
				userInput string
			)
			err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
				if s.UserInput == "" {
					return fmt.Errorf("missing user input in state")
				}
				promptCtx = s.Context
				userInput = s.UserInput
				return nil
			})
			if err != nil {
				return nil, errx.Inconsistent(err.Error())
			}

			personaPrompt, err := prompts.RenderPersonaSystem(ctx, persona)
			if err != nil {
				return nil, fmt.Errorf("render persona prompt: %w", err)
			}

			messages := []*schema.Message{schema.SystemMessage(personaPrompt)}
			if promptCtx.Summary != "" {
				messages = append(messages, prompts.SummaryMessage(promptCtx.Summary))
			}
			if res != nil && res.Source != model.SourceNone {
				messages = append(messages, prompts.KnowledgeMessage(res))
			}
			messages = append(messages, promptCtx.Recent...)
			messages = append(messages, schema.UserMessage(userInput))

			return messages, nil
		}))
}

// NewResponseGeneratorNode delegates to the completion service with a bounded
// deadline. A failed or timed-out completion yields the fixed in-persona
// apology instead of an error: a single outage degrades one reply, never the
// conversation.
func NewResponseGeneratorNode(completion model.CompletionService, cfg model.ResponseModelConfig, persona model.PersonaConfig) *compose.Lambda {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return compose.InvokableLambda(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		genCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		content, err := completion.Complete(genCtx, messages, cfg.MaxTokens)
		if err != nil || strings.TrimSpace(content) == "" {
			logx.Warn().Err(err).Msg("completion failed, substituting degraded reply")
			stateErr := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
				s.Degraded = true
				return nil
			})
			if stateErr != nil {
				return nil, errx.Inconsistent(fmt.Sprintf("mark degraded turn: %v", stateErr))
			}
			content = persona.ApologyReply
		}

		return schema.AssistantMessage(content, nil), nil
	})
}

// NewResponseGeneratorPostHandler stores the reply in turn state.
func NewResponseGeneratorPostHandler() func(context.Context, *schema.Message, *model.TurnState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, s *model.TurnState) (*schema.Message, error) {
		if out == nil || strings.TrimSpace(out.Content) == "" {
			return nil, errx.Inconsistent("generation produced no reply")
		}
		s.Reply = out.Content
		return out, nil
	}
}

// NewContextUpdaterNode commits the turn: the user message then the assistant
// message are appended to the session window (user is logically prior), both
// are mirrored to the transcript repository best-effort, and the turn result
// is assembled. This node runs exactly once per turn and only after a reply
// exists, so it carries no retry wrapper.
func NewContextUpdaterNode(sessions *session.Manager, repo model.ConversationRepository) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, reply *schema.Message) (*model.TurnResult, error) {
		var st model.TurnState
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
			if s.UserInput == "" || s.Reply == "" {
				return fmt.Errorf("incomplete turn state at context update")
			}
			st = *s
			return nil
		})
		if err != nil {
			return nil, errx.Inconsistent(err.Error())
		}

		mem := sessions.Memory(st.SessionID)
		userMsg := mem.Append(ctx, schema.User, st.UserInput)
		assistantMsg := mem.Append(ctx, schema.Assistant, st.Reply)

		mirror(ctx, repo, st.SessionID, schema.UserMessage(st.UserInput))
		mirror(ctx, repo, st.SessionID, schema.AssistantMessage(st.Reply, nil))

		snap := mem.Context()
		result := &model.TurnResult{
			TurnID:            st.TurnID,
			Reply:             st.Reply,
			Degraded:          st.Degraded,
			KnowledgeUsed:     st.Knowledge != nil && st.Knowledge.Source != model.SourceNone,
			KnowledgeSource:   knowledgeSource(st.Knowledge),
			Summary:           snap.Summary,
			TotalTokens:       snap.TotalTokens,
			UserSequence:      userMsg.Sequence,
			AssistantSequence: assistantMsg.Sequence,
		}

		logx.Debug().
			Str("turn_id", st.TurnID).
			Str("session_id", st.SessionID).
			Int("total_tokens", result.TotalTokens).
			Bool("degraded", result.Degraded).
			Str("knowledge_source", string(result.KnowledgeSource)).
			Msg("turn committed")

		return result, nil
	})
}

// mirror appends to the transcript repository; failures degrade observability,
// never the turn.
func mirror(ctx context.Context, repo model.ConversationRepository, sessionID string, msg *schema.Message) {
	if repo == nil {
		return
	}
	if err := repo.AddMessage(ctx, sessionID, msg); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to mirror message to transcript")
	}
}

func knowledgeSource(res *model.KnowledgeResult) model.KnowledgeSource {
	if res == nil {
		return model.SourceNone
	}
	return res.Source
}

func toSchemaMessages(msgs []memory.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, &schema.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// retryOnce retries a failed node body a single time before the turn is
// abandoned. Invalid input is never retried: the outcome cannot change.
func retryOnce[I, O any](node string, fn func(context.Context, I) (O, error)) func(context.Context, I) (O, error) {
	return func(ctx context.Context, in I) (O, error) {
		out, err := fn(ctx, in)
		if err == nil || errors.Is(err, errx.ErrInvalidInput) {
			return out, err
		}
		logx.Warn().Err(err).Str("node", node).Msg("node failed, retrying once")
		return fn(ctx, in)
	}
}
