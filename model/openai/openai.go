// Package openai provides a ChatModel adapter for OpenAI's API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/voyago/tripflow/model"
)

// ChatModel implements model.ChatModel for OpenAI's API.
//
// Provides access to GPT models with:
//   - Automatic retry for transient errors
//   - Rate limit backoff
//   - Tool/function calling support
//   - Context cancellation
//
// Example:
//
//	apiKey := os.Getenv("OPENAI_API_KEY")
//	m := openai.NewChatModel(apiKey, "gpt-4o")
//	out, err := m.Chat(ctx, messages, nil)
type ChatModel struct {
	client     openai.Client
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// NewChatModel creates an OpenAI ChatModel. Empty modelName selects
// "gpt-4o". The returned model retries transient errors up to 3 times
// with linear backoff for rate limits.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gpt-4o"
	}

	return &ChatModel{
		client:     openai.NewClient(option.WithAPIKey(apiKey)),
		modelName:  modelName,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		out, err := m.createChatCompletion(ctx, messages, tools)
		if err == nil {
			return out, nil
		}

		lastErr = err

		if !isTransientError(err) {
			return model.ChatOut{}, err
		}
		if attempt >= m.maxRetries {
			break
		}

		delay := m.retryDelay
		if isRateLimitError(err) {
			delay = m.retryDelay * time.Duration(attempt+1)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		}
	}

	return model.ChatOut{}, fmt.Errorf("openai API failed after %d retries: %w", m.maxRetries, lastErr)
}

func (m *ChatModel) createChatCompletion(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.modelName),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, err
	}
	if len(completion.Choices) == 0 {
		return model.ChatOut{}, errors.New("no response from openai API")
	}

	choice := completion.Choices[0].Message

	out := model.ChatOut{Text: choice.Content}
	for _, call := range choice.ToolCalls {
		input := map[string]interface{}{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				return model.ChatOut{}, fmt.Errorf("decoding tool call arguments for %s: %w", call.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}

	return out, nil
}

// convertMessages maps standard messages to the OpenAI wire format.
// Prior tool exchanges are replayed as plain text so the transcript
// stays valid regardless of which provider produced them.
func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(renderAssistant(msg)))
		case model.RoleTool:
			converted = append(converted, openai.UserMessage(renderToolResult(msg)))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}

	return converted
}

func convertTools(tools []model.ToolSpec) []openai.ChatCompletionToolUnionParam {
	converted := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		converted[i] = openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
			Parameters:  shared.FunctionParameters(tool.Schema),
		})
	}
	return converted
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

// isTransientError determines if an error should trigger a retry.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if isRateLimitError(err) {
		return true
	}

	msgLower := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"network",
		"connection",
		"temporary",
		"503",
		"502",
		"500",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msgLower, pattern) {
			return true
		}
	}

	return false
}

func isRateLimitError(err error) bool {
	msgLower := strings.ToLower(err.Error())
	return strings.Contains(msgLower, "rate limit") ||
		strings.Contains(msgLower, "429") ||
		strings.Contains(msgLower, "too many requests")
}
