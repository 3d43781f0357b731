package memory

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	logx "github.com/adam-npc/dialogue-core/pkg/logger"
)

// Message is one utterance in the conversation window. TokenCount is computed
// once at insertion and immutable thereafter; Sequence is assigned at
// insertion and determines recency for pruning and summarization.
type Message struct {
	Role       schema.RoleType
	Content    string
	TokenCount int
	Sequence   int
}

// Snapshot is a read-only view of the window for prompt assembly.
type Snapshot struct {
	Summary     string
	Recent      []Message
	TotalTokens int
	// OverBudget is the soft warning raised when a single oversized message
	// pushes the window past the budget even after summarization.
	OverBudget bool
}

// Summarizer compresses a pruned run of messages, merged with the previous
// summary, into a single replacement summary.
type Summarizer interface {
	Summarize(ctx context.Context, previous string, run []Message) (string, error)
}

// Config bounds one conversation window.
type Config struct {
	// Budget is the hard token ceiling for messages plus summary.
	Budget int
	// SummaryRatio is the fraction of Budget the window is reduced to when
	// summarization fires, leaving headroom for the next turn.
	SummaryRatio float64
	// SummaryReserve is the token allowance assumed for the summary text
	// while selecting how many old messages to fold.
	SummaryReserve int
	// FallbackChars caps the mechanical summary used when the Summarizer fails.
	FallbackChars int
}

const (
	DefaultBudget        = 4096
	DefaultSummaryRatio  = 0.7
	DefaultReserve       = 256
	DefaultFallbackChars = 500
)

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.SummaryRatio <= 0 || c.SummaryRatio >= 1 {
		c.SummaryRatio = DefaultSummaryRatio
	}
	if c.SummaryReserve <= 0 {
		c.SummaryReserve = DefaultReserve
	}
	// The reserve must leave room for live messages under the target.
	if target := int(float64(c.Budget) * c.SummaryRatio); c.SummaryReserve > target/2 {
		c.SummaryReserve = target / 2
	}
	if c.FallbackChars <= 0 {
		c.FallbackChars = DefaultFallbackChars
	}
	return c
}

// ConversationMemory owns the ordered message history and rolling summary for
// one session. It is not internally synchronized: the session layer serializes
// turns, so at most one goroutine touches a window at a time.
type ConversationMemory struct {
	cfg        Config
	target     int
	estimator  Estimator
	summarizer Summarizer

	messages      []Message
	summary       string
	summaryTokens int
	liveTokens    int
	nextSequence  int
	overBudget    bool
}

// New creates an empty window. A nil estimator falls back to the heuristic.
func New(cfg Config, est Estimator, sum Summarizer) *ConversationMemory {
	cfg = cfg.withDefaults()
	if est == nil {
		est = HeuristicEstimator{}
	}
	return &ConversationMemory{
		cfg:        cfg,
		target:     int(float64(cfg.Budget) * cfg.SummaryRatio),
		estimator:  est,
		summarizer: sum,
	}
}

// Append inserts a message, then summarizes if the window exceeds its budget.
// It never fails: when summarization cannot reduce below budget (a single
// oversized message), the overage is accepted and flagged instead of dropping
// the newest message. The stored message is returned so callers can record
// its sequence.
func (m *ConversationMemory) Append(ctx context.Context, role schema.RoleType, content string) Message {
	m.nextSequence++
	msg := Message{
		Role:       role,
		Content:    content,
		TokenCount: m.estimator.Estimate(content),
		Sequence:   m.nextSequence,
	}
	m.messages = append(m.messages, msg)
	m.liveTokens += msg.TokenCount

	if m.TotalTokens() > m.cfg.Budget {
		m.Summarize(ctx)
	}

	m.overBudget = m.TotalTokens() > m.cfg.Budget
	if m.overBudget {
		logx.Warn().
			Int("total_tokens", m.TotalTokens()).
			Int("budget", m.cfg.Budget).
			Int("sequence", msg.Sequence).
			Msg("conversation window over budget after summarization")
	}
	return msg
}

// Summarize folds the oldest contiguous run of messages into the rolling
// summary until the window fits under the summarization target. Calling it
// again with no intervening append is a no-op. The newest message is never
// folded.
func (m *ConversationMemory) Summarize(ctx context.Context) {
	if m.TotalTokens() <= m.target {
		return
	}

	var run []Message
	for len(m.messages) > 1 && m.liveTokens+m.cfg.SummaryReserve > m.target {
		oldest := m.messages[0]
		run = append(run, oldest)
		m.messages = m.messages[1:]
		m.liveTokens -= oldest.TokenCount
	}
	if len(run) == 0 {
		return
	}

	summary, err := m.summarize(ctx, run)
	if err != nil {
		logx.Warn().Err(err).Int("run_len", len(run)).
			Msg("summary compression failed, using mechanical truncation")
		summary = m.mechanicalSummary(run)
	}
	// Cap the summary so a verbose compression cannot itself breach the
	// reserve it was folded under.
	if max := m.cfg.SummaryReserve * 4; len(summary) > max {
		summary = summary[:max]
	}

	m.summary = summary
	m.summaryTokens = m.estimator.Estimate(summary)

	logx.Debug().
		Int("folded", len(run)).
		Int("live_tokens", m.liveTokens).
		Int("summary_tokens", m.summaryTokens).
		Msg("conversation window summarized")
}

func (m *ConversationMemory) summarize(ctx context.Context, run []Message) (string, error) {
	if m.summarizer == nil {
		return m.mechanicalSummary(run), nil
	}
	return m.summarizer.Summarize(ctx, m.summary, run)
}

// mechanicalSummary merges the previous summary with a plain transcript of the
// folded run and keeps only a bounded prefix. It exists so an outage of the
// completion service can never violate the token budget.
func (m *ConversationMemory) mechanicalSummary(run []Message) string {
	var b strings.Builder
	if m.summary != "" {
		b.WriteString(m.summary)
		b.WriteString("\n")
	}
	b.WriteString("Earlier conversation covered: ")
	for i, msg := range run {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	s := b.String()
	if len(s) > m.cfg.FallbackChars {
		s = s[:m.cfg.FallbackChars] + "..."
	}
	return s
}

// Context returns a read-only snapshot for prompt assembly. Recent contains
// every message not yet folded into the summary, oldest first.
func (m *ConversationMemory) Context() Snapshot {
	recent := make([]Message, len(m.messages))
	copy(recent, m.messages)
	return Snapshot{
		Summary:     m.summary,
		Recent:      recent,
		TotalTokens: m.TotalTokens(),
		OverBudget:  m.overBudget,
	}
}

// TotalTokens is the live message cost plus the summary cost.
func (m *ConversationMemory) TotalTokens() int {
	return m.liveTokens + m.summaryTokens
}

// Reset clears the window back to its initial empty state.
func (m *ConversationMemory) Reset() {
	m.messages = nil
	m.summary = ""
	m.summaryTokens = 0
	m.liveTokens = 0
	m.nextSequence = 0
	m.overBudget = false
}
