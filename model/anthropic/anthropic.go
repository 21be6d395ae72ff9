// Package anthropic provides a ChatModel adapter for Anthropic's
// Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/voyago/tripflow/model"
)

// ChatModel implements model.ChatModel for Anthropic's Claude API.
//
// Safe for concurrent use after creation; the underlying SDK client
// handles concurrent requests.
//
// Example:
//
//	apiKey := os.Getenv("ANTHROPIC_API_KEY")
//	m := anthropic.NewChatModel(apiKey, "claude-sonnet-4-20250514")
//	out, err := m.Chat(ctx, messages, nil)
type ChatModel struct {
	client    anthropic.Client
	modelName string
	maxTokens int64
}

// NewChatModel creates a Claude ChatModel. Empty modelName selects
// "claude-sonnet-4-20250514".
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-20250514"
	}

	return &ChatModel{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
		maxTokens: 4096,
	}
}

// Chat implements model.ChatModel.
//
// System messages become the request's system prompt; the rest of the
// transcript is replayed as user/assistant turns, with prior tool
// exchanges rendered as text so transcripts are portable across
// providers.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			params.Messages = append(params.Messages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(renderAssistant(msg))))
		case model.RoleTool:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(renderToolResult(msg))))
		default:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic API error: %w", err)
	}

	return convertResponse(message)
}

func convertTools(tools []model.ToolSpec) []anthropic.ToolUnionParam {
	converted := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if tool.Schema != nil {
			if props, ok := tool.Schema["properties"]; ok {
				schema.Properties = props
			}
		}
		converted[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: schema,
			},
		}
	}
	return converted
}

func convertResponse(message *anthropic.Message) (model.ChatOut, error) {
	out := model.ChatOut{}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += block.Text
		case "tool_use":
			input := map[string]interface{}{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return model.ChatOut{}, fmt.Errorf("decoding tool input for %s: %w", block.Name, err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	return out, nil
}

func renderAssistant(msg model.Message) string {
	if len(msg.ToolCalls) == 0 {
		return msg.Content
	}

	var sb strings.Builder
	sb.WriteString(msg.Content)
	for _, call := range msg.ToolCalls {
		args, _ := json.Marshal(call.Input)
		fmt.Fprintf(&sb, "\n[called tool %s with %s]", call.Name, args)
	}
	return sb.String()
}

func renderToolResult(msg model.Message) string {
	return fmt.Sprintf("[tool result %s] %s", msg.ToolCallID, msg.Content)
}
