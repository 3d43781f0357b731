package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/adam-npc/dialogue-core/internal/agent/model"
)

//go:embed template/persona_prompt.txt
var personaSystemPrompt string

// RenderPersonaSystem renders the persona preamble via the Eino prompt
// component. Rendering through the component (rather than text/template
// directly) emits prompt callbacks for observability.
func RenderPersonaSystem(ctx context.Context, cfg model.PersonaConfig) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(personaSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"Name":  cfg.Name,
		"Title": cfg.Title,
	})
	if err != nil {
		return "", fmt.Errorf("persona prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("persona prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// SummaryMessage wraps the rolling summary as a system block.
func SummaryMessage(summary string) *schema.Message {
	return schema.SystemMessage("Conversation context: " + summary)
}

// KnowledgeMessage wraps a resolved fact as a system block. Included only when
// resolution produced a fact.
func KnowledgeMessage(res *model.KnowledgeResult) *schema.Message {
	return schema.SystemMessage("Relevant knowledge: " + res.Text)
}
