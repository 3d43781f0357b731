// Package agent exposes the dialogue core's public surface: submit a turn,
// inspect a session's context, reset a session. Everything below it (graph,
// memory, knowledge) is wiring.
package agent

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/adam-npc/dialogue-core/internal/agent/graph"
	"github.com/adam-npc/dialogue-core/internal/agent/model"
	"github.com/adam-npc/dialogue-core/internal/agent/session"
	errx "github.com/adam-npc/dialogue-core/internal/core/error"
	logx "github.com/adam-npc/dialogue-core/pkg/logger"
)

// Agent orchestrates turns against per-session conversation windows. Safe for
// concurrent use: turns on the same session serialize, turns on different
// sessions proceed independently.
type Agent struct {
	sessions *session.Manager
	runner   graph.Runner
	repo     model.ConversationRepository
}

// New wires an Agent from an already-built graph runner.
func New(sessions *session.Manager, runner graph.Runner, repo model.ConversationRepository) *Agent {
	return &Agent{sessions: sessions, runner: runner, repo: repo}
}

// SubmitTurn runs one full turn for the session and returns the committed
// result. The session is locked for the whole turn, so context read and
// context commit are one atomic unit.
//
// Invalid input surfaces unchanged with no state mutated. Any other failure
// returns a degraded result carrying the apology reply alongside the error.
func (a *Agent) SubmitTurn(ctx context.Context, in model.TurnInput) (*model.TurnResult, error) {
	if in.SessionID == "" {
		return nil, errx.Invalid("missing session id")
	}

	_, release := a.sessions.Acquire(in.SessionID)
	defer release()

	return a.runner.Invoke(ctx, in)
}

// SessionContext is the observable state of one session's window.
type SessionContext struct {
	Summary     string
	Recent      []*schema.Message
	TotalTokens int
}

// GetContext snapshots the session window without mutating it. Acquiring the
// turn lock guarantees the snapshot never interleaves with a committing turn.
func (a *Agent) GetContext(ctx context.Context, sessionID string) (*SessionContext, error) {
	if sessionID == "" {
		return nil, errx.Invalid("missing session id")
	}

	mem, release := a.sessions.Acquire(sessionID)
	defer release()

	snap := mem.Context()
	recent := make([]*schema.Message, 0, len(snap.Recent))
	for _, m := range snap.Recent {
		recent = append(recent, &schema.Message{Role: m.Role, Content: m.Content})
	}
	return &SessionContext{
		Summary:     snap.Summary,
		Recent:      recent,
		TotalTokens: snap.TotalTokens,
	}, nil
}

// ResetSession clears the session's window and its mirrored transcript. The
// next turn starts from an empty context.
func (a *Agent) ResetSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errx.Invalid("missing session id")
	}

	mem, release := a.sessions.Acquire(sessionID)
	defer release()

	mem.Reset()
	if a.repo != nil {
		if err := a.repo.ClearHistory(ctx, sessionID); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to clear mirrored transcript")
			return err
		}
	}
	return nil
}
