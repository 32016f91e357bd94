package webscraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/conciergehq/concierge/internal/tool"
)

func TestURLToMarkdownUsesReaderService(t *testing.T) {
	var gotHeaders http.Header
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotPath = r.URL.Path
		w.Write([]byte("# Example Content"))
	}))
	defer server.Close()

	converter := NewConverter(
		WithHTTPClient(server.Client()),
		WithReaderBaseURL(server.URL+"/"),
	)
	content, err := converter.URLToMarkdown(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if content != "# Example Content" {
		t.Fatalf("unexpected content %q", content)
	}
	if gotPath != "/example.com" {
		t.Fatalf("unexpected reader path %q", gotPath)
	}
	if gotHeaders.Get("X-Engine") != "readerlm-v2" {
		t.Fatalf("missing X-Engine header, got %q", gotHeaders.Get("X-Engine"))
	}
	if gotHeaders.Get("X-Retain-Images") != "none" {
		t.Fatalf("missing X-Retain-Images header, got %q", gotHeaders.Get("X-Retain-Images"))
	}
	if gotHeaders.Get("X-With-Iframe") != "true" {
		t.Fatalf("missing X-With-Iframe header, got %q", gotHeaders.Get("X-With-Iframe"))
	}
}

func TestURLToMarkdownFallsBackToLocalConversion(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><h1>Recipe</h1><p>Two eggs.</p></body></html>"))
	}))
	defer page.Close()
	reader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer reader.Close()

	converter := NewConverter(
		WithHTTPClient(page.Client()),
		WithReaderBaseURL(reader.URL+"/"),
	)
	content, err := converter.URLToMarkdown(context.Background(), page.URL)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(content, "Recipe") || !strings.Contains(content, "Two eggs.") {
		t.Fatalf("unexpected markdown %q", content)
	}
}

func TestURLToMarkdownRequiresURL(t *testing.T) {
	converter := NewConverter()
	if _, err := converter.URLToMarkdown(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestRegisterToolDispatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("## Converted"))
	}))
	defer server.Close()

	reg := tool.NewRegistry()
	converter := NewConverter(WithHTTPClient(server.Client()), WithReaderBaseURL(server.URL+"/"))
	if err := RegisterTool(reg, converter); err != nil {
		t.Fatalf("register: %v", err)
	}
	out := reg.Dispatch(context.Background(), "url_to_markdown", json.RawMessage(`{"url":"example.com"}`))
	var content string
	if err := json.Unmarshal([]byte(out), &content); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if content != "## Converted" {
		t.Fatalf("unexpected content %q", content)
	}
}
