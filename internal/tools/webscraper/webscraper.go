// Package webscraper converts web pages to markdown for the executor agent.
// The primary path delegates to the hosted reader service; when it is
// unreachable the page is fetched directly and converted locally.
package webscraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/conciergehq/concierge/internal/logbook"
	"github.com/conciergehq/concierge/internal/tool"
)

const defaultReaderBaseURL = "https://r.jina.ai/"

const defaultRequestTimeout = 30 * time.Second

// maxResponseBytes caps how much page content is read into memory.
const maxResponseBytes = 4 << 20

// Option customizes a Converter.
type Option func(*Converter)

// WithHTTPClient injects the HTTP client (used in tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Converter) {
		if client != nil {
			c.client = client
		}
	}
}

// WithReaderBaseURL overrides the reader service endpoint.
func WithReaderBaseURL(base string) Option {
	return func(c *Converter) {
		if strings.TrimSpace(base) != "" {
			c.readerBase = base
		}
	}
}

// WithLogbook records conversion activity in the run log.
func WithLogbook(log *logbook.Logbook) Option {
	return func(c *Converter) {
		if log != nil {
			c.log = log.Scoped("webscraper")
		}
	}
}

// Converter turns URLs into markdown.
type Converter struct {
	client     *http.Client
	readerBase string
	log        *logbook.Scoped
	markdown   *md.Converter
}

// NewConverter builds a converter with the hosted reader as primary path.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		client:     &http.Client{Timeout: defaultRequestTimeout},
		readerBase: defaultReaderBaseURL,
		markdown:   md.NewConverter("", true, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// URLToMarkdown converts the page at url to markdown text. The reader
// service is tried first; any failure falls back to fetching the raw HTML
// and converting it locally.
func (c *Converter) URLToMarkdown(ctx context.Context, url string) (string, error) {
	target := strings.TrimSpace(url)
	if target == "" {
		return "", fmt.Errorf("webscraper: url is required")
	}
	content, err := c.readerConvert(ctx, target)
	if err == nil {
		return content, nil
	}
	c.log.Warn("reader service failed for %s: %v", target, err)
	return c.localConvert(ctx, target)
}

func (c *Converter) readerConvert(ctx context.Context, url string) (string, error) {
	base := c.readerBase
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+url, nil)
	if err != nil {
		return "", fmt.Errorf("webscraper: build reader request: %w", err)
	}
	req.Header.Set("X-Engine", "readerlm-v2")
	req.Header.Set("X-Retain-Images", "none")
	req.Header.Set("X-With-Iframe", "true")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("webscraper: reader request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webscraper: reader returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("webscraper: read reader response: %w", err)
	}
	return string(body), nil
}

func (c *Converter) localConvert(ctx context.Context, url string) (string, error) {
	target := url
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("webscraper: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("webscraper: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webscraper: %s returned %s", url, resp.Status)
	}
	html, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("webscraper: read %s: %w", url, err)
	}
	content, err := c.markdown.ConvertString(string(html))
	if err != nil {
		return "", fmt.Errorf("webscraper: convert %s: %w", url, err)
	}
	return content, nil
}

type urlArgs struct {
	URL string `json:"url"`
}

// RegisterTool installs url_to_markdown into the executor registry.
func RegisterTool(reg *tool.Registry, converter *Converter) error {
	if converter == nil {
		converter = NewConverter()
	}
	convert := tool.NewFunc(
		"url_to_markdown",
		"Convert a URL to markdown content. Returns the page text as markdown so it can be read and summarized.",
		tool.ObjectSchema(map[string]any{
			"url": tool.StringParam("The URL to convert to markdown"),
		}, "url"),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var parsed urlArgs
			if err := json.Unmarshal(args, &parsed); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			return converter.URLToMarkdown(ctx, parsed.URL)
		},
	)
	return reg.Register(convert)
}
