package plugins

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPToolSubstitutesArguments(t *testing.T) {
	var gotQuery string
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-Api-Key")
		w.Write([]byte(`{"results": 3}`))
	}))
	defer server.Close()

	def := ToolDefinition{
		Name:        "recipe_search",
		Description: "Searches recipes.",
		Parameters: []ParamDefinition{
			{Name: "query", Type: "string", Required: true},
			{Name: "key", Type: "string", Required: true},
		},
		Request: RequestDefinition{
			URL:     server.URL + "/search?q={query}",
			Headers: map[string]string{"X-Api-Key": "{key}"},
		},
	}
	tl, err := newHTTPTool(def, server.Client())
	if err != nil {
		t.Fatalf("new tool: %v", err)
	}
	out, err := tl.Call(context.Background(), json.RawMessage(`{"query":"lo bak go","key":"secret"}`))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != `{"results": 3}` {
		t.Fatalf("unexpected output %v", out)
	}
	if gotQuery != "q=lo+bak+go" {
		t.Fatalf("query not escaped: %q", gotQuery)
	}
	if gotHeader != "secret" {
		t.Fatalf("header not substituted: %q", gotHeader)
	}
}

func TestHTTPToolPostsBodyTemplate(t *testing.T) {
	var gotBody string
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotMethod = r.Method
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	def := ToolDefinition{
		Name:        "notify",
		Description: "Sends a notification.",
		Parameters:  []ParamDefinition{{Name: "message", Type: "string", Required: true}},
		Request: RequestDefinition{
			Method: "POST",
			URL:    server.URL + "/notify",
			Body:   `{"text": "{message}"}`,
		},
	}
	tl, err := newHTTPTool(def, server.Client())
	if err != nil {
		t.Fatalf("new tool: %v", err)
	}
	if _, err := tl.Call(context.Background(), json.RawMessage(`{"message":"done"}`)); err != nil {
		t.Fatalf("call: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("unexpected method %s", gotMethod)
	}
	if gotBody != `{"text": "done"}` {
		t.Fatalf("body not rendered: %q", gotBody)
	}
}

func TestHTTPToolRejectsMissingRequiredArgument(t *testing.T) {
	def := validDefinition()
	tl, err := newHTTPTool(def, nil)
	if err != nil {
		t.Fatalf("new tool: %v", err)
	}
	if _, err := tl.Call(context.Background(), json.RawMessage(`{"days": 2}`)); err == nil || !strings.Contains(err.Error(), "city") {
		t.Fatalf("expected missing argument error, got %v", err)
	}
}

func TestHTTPToolSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	def := ToolDefinition{
		Name:        "flaky",
		Description: "Fails upstream.",
		Request:     RequestDefinition{URL: server.URL},
	}
	tl, err := newHTTPTool(def, server.Client())
	if err != nil {
		t.Fatalf("new tool: %v", err)
	}
	if _, err := tl.Call(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}
