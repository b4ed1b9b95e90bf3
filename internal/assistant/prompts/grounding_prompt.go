package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/docqa-assistant/server/internal/assistant/model"
	"github.com/docqa-assistant/server/internal/assistant/observers"
)

//go:embed template/grounding_prompt.txt
var groundingPrompt string

const defaultAssistantRole = "financial analyst assistant"

// RenderGrounding renders the grounding prompt: the fixed instruction, the document
// text and the user's question. Document and question are inserted verbatim.
func RenderGrounding(ctx context.Context, config model.PromptConfig, document, question string) (string, error) {
	role := strings.TrimSpace(config.AssistantRole)
	if role == "" {
		role = defaultAssistantRole
	}

	ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      "GroundingPrompt",
		Type:      "GoTemplate",
		Component: components.ComponentOfPrompt,
	}, observers.NewPromptCallbacks())

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.UserMessage(groundingPrompt),
	)
	vars := map[string]any{
		"AssistantRole": role,
		"Document":      document,
		"Question":      question,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("grounding prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("grounding prompt render: empty result")
	}
	return msgs[0].Content, nil
}
