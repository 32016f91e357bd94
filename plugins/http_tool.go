package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/conciergehq/concierge/internal/tool"
)

const defaultRequestTimeout = 30 * time.Second

// maxResponseBytes caps how much of a plugin response is read into memory.
const maxResponseBytes = 1 << 20

// httpTool executes a RequestDefinition with model-supplied arguments.
type httpTool struct {
	definition ToolDefinition
	client     *http.Client
}

func newHTTPTool(def ToolDefinition, client *http.Client) (*httpTool, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &httpTool{definition: def.Normalized(), client: client}, nil
}

func (t *httpTool) Name() string        { return t.definition.Name }
func (t *httpTool) Description() string { return t.definition.Description }

func (t *httpTool) Parameters() map[string]any {
	return t.definition.Schema()
}

// Call renders the request template with the call arguments and returns the
// response body as a string.
func (t *httpTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	values, err := t.argumentValues(args)
	if err != nil {
		return nil, err
	}
	req, err := t.buildRequest(ctx, values)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: request: %w", t.definition.Name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("plugin %s: read response: %w", t.definition.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("plugin %s: %s returned %s", t.definition.Name, req.URL.Host, resp.Status)
	}
	return string(body), nil
}

func (t *httpTool) argumentValues(args json.RawMessage) (map[string]string, error) {
	values := make(map[string]string, len(t.definition.Parameters))
	raw := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &raw); err != nil {
			return nil, fmt.Errorf("plugin %s: invalid arguments: %w", t.definition.Name, err)
		}
	}
	for _, param := range t.definition.Parameters {
		value, ok := raw[param.Name]
		if !ok {
			if param.Required {
				return nil, fmt.Errorf("plugin %s: missing required argument %s", t.definition.Name, param.Name)
			}
			values[param.Name] = ""
			continue
		}
		values[param.Name] = stringifyArgument(value)
	}
	return values, nil
}

func (t *httpTool) buildRequest(ctx context.Context, values map[string]string) (*http.Request, error) {
	def := t.definition.Request
	target := substitute(def.URL, values, url.QueryEscape)
	var body io.Reader
	if def.Body != "" {
		body = strings.NewReader(substitute(def.Body, values, nil))
	}
	req, err := http.NewRequestWithContext(ctx, def.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: build request: %w", t.definition.Name, err)
	}
	for key, value := range def.Headers {
		req.Header.Set(key, substitute(value, values, nil))
	}
	return req, nil
}

// substitute replaces {name} placeholders with argument values. The escape
// function, when set, is applied to each substituted value (URL templates
// escape, header and body templates do not).
func substitute(template string, values map[string]string, escape func(string) string) string {
	result := template
	for name, value := range values {
		if escape != nil {
			value = escape(value)
		}
		result = strings.ReplaceAll(result, "{"+name+"}", value)
	}
	return result
}

func stringifyArgument(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

var _ tool.Tool = (*httpTool)(nil)
