package llm

import (
	"context"
	"errors"
	"testing"
)

type stubClient struct {
	response Message
	err      error
	got      Request
}

func (c *stubClient) Complete(ctx context.Context, req Request) (Message, error) {
	c.got = req
	return c.response, c.err
}

func TestSimpleCallSubstitutesTextAndTrims(t *testing.T) {
	client := &stubClient{response: Message{Role: RoleAssistant, Content: "  summary  \n"}}
	out, err := SimpleCall(context.Background(), client, "test-model", "Summarize:\n{text}", "transcript body", 100)
	if err != nil {
		t.Fatalf("simple call: %v", err)
	}
	if out != "summary" {
		t.Fatalf("response not trimmed: %q", out)
	}
	if len(client.got.Messages) != 1 || client.got.Messages[0].Role != RoleSystem {
		t.Fatalf("expected one system message, got %+v", client.got.Messages)
	}
	if client.got.Messages[0].Content != "Summarize:\ntranscript body" {
		t.Fatalf("placeholder not substituted: %q", client.got.Messages[0].Content)
	}
	if client.got.MaxTokens != 100 {
		t.Fatalf("max tokens not forwarded: %d", client.got.MaxTokens)
	}
}

func TestSimpleCallPropagatesErrors(t *testing.T) {
	wantErr := errors.New("rate limited")
	client := &stubClient{err: wantErr}
	if _, err := SimpleCall(context.Background(), client, "m", "p", "t", 0); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestSimpleCallRequiresClient(t *testing.T) {
	if _, err := SimpleCall(context.Background(), nil, "m", "p", "t", 0); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestValidArguments(t *testing.T) {
	cases := []struct {
		arguments string
		want      bool
	}{
		{"", true},
		{"{}", true},
		{`{"product_query":"eggs"}`, true},
		{"{not json", false},
	}
	for _, tc := range cases {
		got := ValidArguments(ToolCall{Name: "t", Arguments: tc.arguments})
		if got != tc.want {
			t.Errorf("ValidArguments(%q) = %v, want %v", tc.arguments, got, tc.want)
		}
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI(""); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	if _, err := NewOpenAI("sk-test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
