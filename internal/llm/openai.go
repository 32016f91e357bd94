package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoAPIKey indicates the OpenAI client was constructed without credentials.
var ErrNoAPIKey = errors.New("llm: OPENAI_API_KEY is not set")

// OpenAIClient implements Client on top of the OpenAI chat completion API.
type OpenAIClient struct {
	api *openai.Client
}

// NewOpenAI builds a client from an API key.
func NewOpenAI(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return &OpenAIClient{api: openai.NewClient(apiKey)}, nil
}

// Complete performs a single chat completion call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Message, error) {
	if c == nil || c.api == nil {
		return Message{}, fmt.Errorf("llm: client not initialized")
	}
	payload := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		payload.Tools = toOpenAITools(req.Tools)
		if req.SingleToolCall {
			payload.ParallelToolCalls = false
		}
	}
	resp, err := c.api.CreateChatCompletion(ctx, payload)
	if err != nil {
		return Message{}, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Message{}, fmt.Errorf("llm: chat completion returned no choices")
	}
	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		converted := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out = append(out, converted)
	}
	return out
}

func toOpenAITools(specs []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		fn := &openai.FunctionDefinition{
			Name:        spec.Name,
			Description: spec.Description,
		}
		if spec.Parameters != nil {
			fn.Parameters = spec.Parameters
		}
		out = append(out, openai.Tool{Type: openai.ToolTypeFunction, Function: fn})
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) Message {
	out := Message{
		Role:    msg.Role,
		Content: msg.Content,
	}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out
}

// ValidArguments reports whether a tool call carries well-formed JSON
// arguments. Empty arguments are treated as an empty object.
func ValidArguments(call ToolCall) bool {
	if call.Arguments == "" {
		return true
	}
	return json.Valid([]byte(call.Arguments))
}
