package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/docqa-assistant/server/pkg/logger"
)

// newPromptHandler builds a typed PromptCallbackHandler (not yet wrapped).
// Variable values are never logged; they carry whole documents.
func newPromptHandler() *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *prompt.CallbackInput) context.Context {
			ev := logx.Debug().Str("prompt", info.Name).Str("type", info.Type)
			if input != nil {
				ev = ev.Strs("variables", variableNames(input.Variables))
			}
			ev.Msg("prompt render start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			chars := 0
			if output != nil {
				for _, m := range output.Result {
					if m != nil {
						chars += len(m.Content)
					}
				}
			}
			logx.Debug().Str("prompt", info.Name).Int("chars", chars).Msg("prompt rendered")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("prompt", info.Name).Msg("prompt render failed")
			return ctx
		},
	}
}

// NewPromptCallbacks constructs a callbacks.Handler for prompt lifecycle events.
func NewPromptCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		Prompt(newPromptHandler()).
		Handler()
}

func variableNames(vars map[string]any) []string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	return names
}
