package agent

import (
	"fmt"
	"strings"

	"github.com/conciergehq/concierge/internal/llm"
)

// RenderTranscript formats an executor conversation as a markdown document.
// The system prompt is elided; assistant turns, tool calls, and tool
// responses are kept in order so the run can be audited after the fact.
func RenderTranscript(messages []llm.Message) string {
	var b strings.Builder
	b.WriteString("# Execution Transcript\n")
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleAssistant:
			if strings.TrimSpace(msg.Content) != "" {
				b.WriteString("\n## Assistant\n\n")
				b.WriteString(strings.TrimSpace(msg.Content))
				b.WriteString("\n")
			}
			for _, call := range msg.ToolCalls {
				fmt.Fprintf(&b, "\n### Tool call: `%s`\n\n", call.Name)
				if strings.TrimSpace(call.Arguments) != "" {
					fmt.Fprintf(&b, "```json\n%s\n```\n", strings.TrimSpace(call.Arguments))
				}
			}
		case llm.RoleTool:
			b.WriteString("\n### Tool response\n\n")
			fmt.Fprintf(&b, "```json\n%s\n```\n", strings.TrimSpace(msg.Content))
		default:
			if strings.TrimSpace(msg.Content) != "" {
				fmt.Fprintf(&b, "\n## %s\n\n%s\n", strings.Title(msg.Role), strings.TrimSpace(msg.Content))
			}
		}
	}
	return b.String()
}
