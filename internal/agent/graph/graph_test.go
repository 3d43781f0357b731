package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adam-npc/dialogue-core/internal/agent/knowledge"
	"github.com/adam-npc/dialogue-core/internal/agent/memory"
	"github.com/adam-npc/dialogue-core/internal/agent/model"
	"github.com/adam-npc/dialogue-core/internal/agent/session"
	errx "github.com/adam-npc/dialogue-core/internal/core/error"
)

type fakeCompletion struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts [][]*schema.Message
}

func (f *fakeCompletion) Complete(ctx context.Context, messages []*schema.Message, maxTokens int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, messages)
	return f.reply, f.err
}

func (f *fakeCompletion) lastPrompt() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

type fakeLookup struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeLookup) Lookup(ctx context.Context, term string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memRepo struct {
	mu       sync.Mutex
	messages map[string][]*schema.Message
}

func newMemRepo() *memRepo {
	return &memRepo{messages: make(map[string][]*schema.Message)}
}

func (r *memRepo) AddMessage(ctx context.Context, sessionID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[sessionID] = append(r.messages[sessionID], message)
	return nil
}

func (r *memRepo) LoadHistory(ctx context.Context, sessionID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &model.ConversationHistory{SessionID: sessionID, Messages: r.messages[sessionID]}, nil
}

func (r *memRepo) ClearHistory(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, sessionID)
	return nil
}

func (r *memRepo) GetMessageCount(ctx context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[sessionID]), nil
}

type harness struct {
	sessions   *session.Manager
	runner     Runner
	completion *fakeCompletion
	lookup     *fakeLookup
	repo       *memRepo
}

func newHarness(t *testing.T, completion *fakeCompletion, lookup *fakeLookup) *harness {
	t.Helper()

	sessions := session.NewManager(func() *memory.ConversationMemory {
		return memory.New(memory.Config{
			Budget:         4096,
			SummaryRatio:   0.7,
			SummaryReserve: 256,
			FallbackChars:  500,
		}, memory.HeuristicEstimator{}, nil)
	})

	index := knowledge.NewIndex(knowledge.DefaultEntries())
	classifier := knowledge.NewHeuristicClassifier(index.Topics(), []string{"Adam"})
	resolver := knowledge.NewResolver(index, lookup, 200*time.Millisecond)
	repo := newMemRepo()

	runner, err := BuildDialogueGraph(context.Background(), Config{
		Sessions:   sessions,
		Classifier: classifier,
		Resolver:   resolver,
		Completion: completion,
		Repo:       repo,
		Persona: model.PersonaConfig{
			Name:         "Adam",
			Title:        "Sage of the Northern Isles",
			ApologyReply: "I apologize, but something went wrong while processing your message. Could you try again?",
		},
		ResponseModel: model.ResponseModelConfig{
			Model:          "test-model",
			MaxTokens:      300,
			TimeoutSeconds: 2,
		},
	})
	require.NoError(t, err)

	return &harness{
		sessions:   sessions,
		runner:     runner,
		completion: completion,
		lookup:     lookup,
		repo:       repo,
	}
}

func TestTurnWithLocalKnowledge(t *testing.T) {
	completion := &fakeCompletion{reply: "Ah, the old magic of the isles..."}
	lookup := &fakeLookup{}
	h := newHarness(t, completion, lookup)

	res, err := h.runner.Invoke(context.Background(), model.TurnInput{
		SessionID: "s1",
		Utterance: "Tell me about magic in the Northern Isles",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ah, the old magic of the isles...", res.Reply)
	assert.False(t, res.Degraded)
	assert.True(t, res.KnowledgeUsed)
	assert.Equal(t, model.SourceLocal, res.KnowledgeSource)
	assert.Equal(t, 0, lookup.callCount(), "local match must short-circuit the external lookup")
	assert.NotEmpty(t, res.TurnID)

	// Prompt carries the known fact between the persona preamble and history.
	var sawKnowledge bool
	for _, m := range h.completion.lastPrompt() {
		if m.Role == schema.System && strings.Contains(m.Content, "Relevant knowledge:") {
			sawKnowledge = true
		}
	}
	assert.True(t, sawKnowledge)
}

func TestTurnWithFailedExternalLookup(t *testing.T) {
	completion := &fakeCompletion{reply: "I cannot say I have heard that name, traveler."}
	lookup := &fakeLookup{err: errx.ErrNotFound}
	h := newHarness(t, completion, lookup)

	res, err := h.runner.Invoke(context.Background(), model.TurnInput{
		SessionID: "s1",
		Utterance: "What is the capital of Numenar?",
	})
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.False(t, res.KnowledgeUsed)
	assert.Equal(t, model.SourceNone, res.KnowledgeSource)
	assert.Equal(t, 1, lookup.callCount(), "a failed lookup is not retried within the turn")

	for _, m := range h.completion.lastPrompt() {
		assert.NotContains(t, m.Content, "Relevant knowledge:")
	}

	// The turn still commits.
	n, repoErr := h.repo.GetMessageCount(context.Background(), "s1")
	require.NoError(t, repoErr)
	assert.Equal(t, 2, n)
}

func TestTurnWithExternalKnowledge(t *testing.T) {
	completion := &fakeCompletion{reply: "A distant land indeed."}
	lookup := &fakeLookup{text: "Numenar is a fictional realm."}
	h := newHarness(t, completion, lookup)

	res, err := h.runner.Invoke(context.Background(), model.TurnInput{
		SessionID: "s1",
		Utterance: "What is the capital of Numenar?",
	})
	require.NoError(t, err)

	assert.True(t, res.KnowledgeUsed)
	assert.Equal(t, model.SourceExternal, res.KnowledgeSource)
	assert.Equal(t, 1, lookup.callCount())
}

func TestGreetingSkipsKnowledgeSearch(t *testing.T) {
	completion := &fakeCompletion{reply: "Well met, traveler."}
	lookup := &fakeLookup{text: "should never be used"}
	h := newHarness(t, completion, lookup)

	res, err := h.runner.Invoke(context.Background(), model.TurnInput{
		SessionID: "s1",
		Utterance: "Hello Adam, good to see you",
	})
	require.NoError(t, err)

	assert.False(t, res.KnowledgeUsed)
	assert.Equal(t, model.SourceNone, res.KnowledgeSource)
	assert.Equal(t, 0, lookup.callCount())
}

func TestEmptyInputRejectedWithoutMutation(t *testing.T) {
	completion := &fakeCompletion{reply: "unused"}
	h := newHarness(t, completion, &fakeLookup{})

	for _, utterance := range []string{"", "   ", "\n\t"} {
		_, err := h.runner.Invoke(context.Background(), model.TurnInput{
			SessionID: "s1",
			Utterance: utterance,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errx.ErrInvalidInput))
	}

	mem, release := h.sessions.Acquire("s1")
	defer release()
	snap := mem.Context()
	assert.Empty(t, snap.Recent, "rejected input must not touch the window")
	assert.Zero(t, snap.TotalTokens)

	n, err := h.repo.GetMessageCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCompletionFailureDegradesToApology(t *testing.T) {
	completion := &fakeCompletion{err: errx.ErrUnavailable}
	h := newHarness(t, completion, &fakeLookup{})

	res, err := h.runner.Invoke(context.Background(), model.TurnInput{
		SessionID: "s1",
		Utterance: "Hello there",
	})
	require.NoError(t, err, "a completion outage degrades the reply, not the turn")

	assert.True(t, res.Degraded)
	assert.Equal(t, "I apologize, but something went wrong while processing your message. Could you try again?", res.Reply)

	// The degraded exchange is still committed so the conversation can continue.
	mem, release := h.sessions.Acquire("s1")
	defer release()
	snap := mem.Context()
	require.Len(t, snap.Recent, 2)
	assert.Equal(t, schema.User, snap.Recent[0].Role)
	assert.Equal(t, schema.Assistant, snap.Recent[1].Role)
}

func TestTurnsCommitInOrder(t *testing.T) {
	completion := &fakeCompletion{reply: "Indeed."}
	h := newHarness(t, completion, &fakeLookup{})

	var lastSeq int
	for i, utterance := range []string{"Hello Adam", "How goes the day", "Farewell"} {
		res, err := h.runner.Invoke(context.Background(), model.TurnInput{
			SessionID: "s1",
			Utterance: utterance,
		})
		require.NoError(t, err)

		assert.Equal(t, res.UserSequence+1, res.AssistantSequence,
			"assistant message follows its user message immediately")
		if i > 0 {
			assert.Greater(t, res.UserSequence, lastSeq)
		}
		lastSeq = res.AssistantSequence
	}

	// Mirrored transcript alternates user/assistant in commit order.
	hist, err := h.repo.LoadHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, hist.Messages, 6)
	for i, m := range hist.Messages {
		if i%2 == 0 {
			assert.Equal(t, schema.User, m.Role)
		} else {
			assert.Equal(t, schema.Assistant, m.Role)
		}
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	completion := &fakeCompletion{reply: "Indeed."}
	h := newHarness(t, completion, &fakeLookup{})

	_, err := h.runner.Invoke(context.Background(), model.TurnInput{SessionID: "alpha", Utterance: "Hello Adam"})
	require.NoError(t, err)

	mem, release := h.sessions.Acquire("beta")
	defer release()
	assert.Empty(t, mem.Context().Recent)
}
