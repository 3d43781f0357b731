package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	out   string
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string, _ []Message) (string, error) {
	f.calls++
	return f.out, f.err
}

// thirtyTokens estimates to exactly 30 tokens under the heuristic:
// (101+3)/4 = 26, plus the per-message overhead of 4.
var thirtyTokens = strings.Repeat("a", 101)

func testConfig() Config {
	return Config{
		Budget:         100,
		SummaryRatio:   0.7,
		SummaryReserve: 10,
		FallbackChars:  80,
	}
}

func TestEstimatorHeuristic(t *testing.T) {
	est := HeuristicEstimator{}
	assert.Equal(t, 0, est.Estimate(""))
	assert.Equal(t, 30, est.Estimate(thirtyTokens))
	assert.Equal(t, 1+perMessageOverhead, est.Estimate("hi"))
}

func TestAppendStaysUnderBudget(t *testing.T) {
	sum := &fakeSummarizer{out: "short summary"}
	m := New(testConfig(), nil, sum)
	ctx := context.Background()

	// Five 30-token messages against a budget of 100: the fourth append hits
	// 120 tokens and summarization fires before the fifth is accepted.
	for i := 0; i < 3; i++ {
		m.Append(ctx, schema.User, thirtyTokens)
	}
	require.Equal(t, 90, m.TotalTokens())
	require.Zero(t, sum.calls)

	m.Append(ctx, schema.User, thirtyTokens)
	require.Equal(t, 1, sum.calls)
	require.LessOrEqual(t, m.TotalTokens(), 100)

	m.Append(ctx, schema.User, thirtyTokens)
	assert.LessOrEqual(t, m.TotalTokens(), 100)

	snap := m.Context()
	assert.False(t, snap.OverBudget)
	assert.Equal(t, "short summary", snap.Summary)
	assert.NotEmpty(t, snap.Recent)
}

func TestSequencesMonotonicAcrossSummarization(t *testing.T) {
	m := New(testConfig(), nil, &fakeSummarizer{out: "s"})
	ctx := context.Background()

	var last int
	for i := 0; i < 10; i++ {
		msg := m.Append(ctx, schema.User, thirtyTokens)
		require.Equal(t, last+1, msg.Sequence, "sequence must increase without gaps")
		last = msg.Sequence
	}
}

func TestSummarizeIdempotentWithoutNewInput(t *testing.T) {
	sum := &fakeSummarizer{out: "compressed"}
	m := New(testConfig(), nil, sum)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		m.Append(ctx, schema.User, thirtyTokens)
	}
	require.Equal(t, 1, sum.calls)

	before := m.Context()
	m.Summarize(ctx)
	after := m.Context()

	assert.Equal(t, 1, sum.calls, "nothing left to compress")
	assert.Equal(t, before.Summary, after.Summary)
	assert.Equal(t, len(before.Recent), len(after.Recent))
	assert.Equal(t, before.TotalTokens, after.TotalTokens)
}

func TestOversizedMessageSoftOverrun(t *testing.T) {
	m := New(testConfig(), nil, &fakeSummarizer{out: "s"})
	ctx := context.Background()

	huge := strings.Repeat("b", 1000) // ~254 tokens, alone over the 100 budget
	msg := m.Append(ctx, schema.User, huge)

	snap := m.Context()
	assert.True(t, snap.OverBudget, "single oversized message is a soft overrun, not an error")
	require.Len(t, snap.Recent, 1, "the newest message is never dropped")
	assert.Equal(t, msg.Sequence, snap.Recent[0].Sequence)
}

func TestSummarizeFallsBackOnCompletionFailure(t *testing.T) {
	sum := &fakeSummarizer{err: errors.New("service unavailable")}
	m := New(testConfig(), nil, sum)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		m.Append(ctx, schema.User, thirtyTokens)
	}

	require.Equal(t, 1, sum.calls)
	snap := m.Context()
	assert.LessOrEqual(t, snap.TotalTokens, 100, "mechanical truncation still honors the budget")
	assert.Contains(t, snap.Summary, "Earlier conversation covered")
	assert.LessOrEqual(t, len(snap.Summary), testConfig().FallbackChars+len("..."))
}

func TestReset(t *testing.T) {
	m := New(testConfig(), nil, &fakeSummarizer{out: "s"})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		m.Append(ctx, schema.User, thirtyTokens)
	}
	m.Reset()

	snap := m.Context()
	assert.Zero(t, snap.TotalTokens)
	assert.Empty(t, snap.Summary)
	assert.Empty(t, snap.Recent)

	msg := m.Append(ctx, schema.User, "hello again")
	assert.Equal(t, 1, msg.Sequence, "sequence restarts after reset")
}
