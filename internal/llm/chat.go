package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hal9000y/mail-assistant/internal/apperr"
	"github.com/hal9000y/mail-assistant/internal/tool"
)

// ChatClient uses chat completions. The model cannot reach MCP servers this
// way, so tools are only announced by label; effects run through the gateway
// once the user confirms.
type ChatClient struct {
	client *openai.Client
	model  string
}

// NewChatClient creates a ChatClient.
func NewChatClient(cfg Config) *ChatClient {
	cfg = cfg.withDefaults()

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = cfg.HTTPClient

	return &ChatClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
	}
}

// Complete sends input and returns the first choice's content.
func (c *ChatClient) Complete(ctx context.Context, input string, tools []tool.Descriptor) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if len(tools) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: toolNotice(tools),
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		// A 401 here rejects the API key, which no token refresh can fix.
		return "", apperr.ModelCall(statusOf(err), err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}

func toolNotice(tools []tool.Descriptor) string {
	labels := make([]string, 0, len(tools))
	for _, t := range tools {
		labels = append(labels, t.ServerLabel)
	}
	return "利用可能な連携: " + strings.Join(labels, ", ") +
		"。操作はユーザーの「保存して」「送信して」の指示で実行されます。"
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
