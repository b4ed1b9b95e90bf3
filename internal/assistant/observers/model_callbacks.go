package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/docqa-assistant/server/pkg/logger"
)

// newModelHandler logs model calls by size and token usage. Message bodies are
// left out of the log; prompts embed the whole document.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Debug().Str("model_run", info.Name).Str("type", info.Type)
			if input != nil {
				if input.Config != nil {
					ev = ev.Str("model", input.Config.Model)
				}
				ev = ev.Int("messages", len(input.Messages)).Int("prompt_chars", contentChars(input.Messages))
			}
			ev.Msg("model call start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			ev := logx.Info().Str("model_run", info.Name)
			if output != nil {
				if output.Config != nil {
					ev = ev.Str("model", output.Config.Model)
				}
				if output.Message != nil {
					ev = ev.Int("answer_chars", len(output.Message.Content))
				}
				if u := output.TokenUsage; u != nil {
					ev = ev.Int("prompt_tokens", u.PromptTokens).
						Int("completion_tokens", u.CompletionTokens).
						Int("total_tokens", u.TotalTokens)
				}
			}
			ev.Msg("model call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("model_run", info.Name).Msg("model call failed")
			return ctx
		},
	}
}

// NewModelCallbacks constructs a callbacks.Handler for model lifecycle events.
func NewModelCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Handler()
}

func contentChars(msgs []*schema.Message) int {
	n := 0
	for _, m := range msgs {
		if m != nil {
			n += len(m.Content)
		}
	}
	return n
}
