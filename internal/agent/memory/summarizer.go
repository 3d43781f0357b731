package memory

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

//go:embed template/summary_prompt.txt
var summaryInstruction string

// completionService matches model.CompletionService without importing it,
// keeping this package free of the agent model types.
type completionService interface {
	Complete(ctx context.Context, messages []*schema.Message, maxTokens int) (string, error)
}

// CompletionSummarizer compresses pruned conversation runs through the
// external completion service using a fixed instruction template.
type CompletionSummarizer struct {
	completion completionService
	maxTokens  int
	timeout    time.Duration
}

// NewCompletionSummarizer builds a summarizer over the given completion
// service. maxTokens bounds the summary length requested from the model.
func NewCompletionSummarizer(completion completionService, maxTokens int, timeout time.Duration) *CompletionSummarizer {
	if maxTokens <= 0 {
		maxTokens = DefaultReserve
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CompletionSummarizer{completion: completion, maxTokens: maxTokens, timeout: timeout}
}

// Summarize merges the previous summary and the folded run into one updated
// summary. Errors are returned to the caller, which falls back to mechanical
// truncation so the budget invariant holds through an outage.
func (s *CompletionSummarizer) Summarize(ctx context.Context, previous string, run []Message) (string, error) {
	var transcript strings.Builder
	if previous != "" {
		transcript.WriteString("Previous summary: ")
		transcript.WriteString(previous)
		transcript.WriteString("\n\n")
	}
	transcript.WriteString("Messages to fold in:\n")
	for _, msg := range run {
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.completion.Complete(ctx, []*schema.Message{
		schema.SystemMessage(summaryInstruction),
		schema.UserMessage(transcript.String()),
	}, s.maxTokens)
	if err != nil {
		return "", fmt.Errorf("summary completion: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("summary completion: empty result")
	}
	return out, nil
}
