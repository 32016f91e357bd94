// Package events delivers agent progress notifications to in-process
// subscribers. The executor and planner publish typed events while the TUI
// and logbook consume them, keyed by pipeline module ID.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventSchemaVersion is the currently supported event version.
const EventSchemaVersion = 1

// Well-known event types emitted during a task run.
const (
	TypeStatus       = "status"
	TypePlan         = "plan"
	TypeAssistant    = "assistant"
	TypeToolCall     = "tool_call"
	TypeToolResponse = "tool_response"
	TypeError        = "error"
	TypeTaskEnd      = "task_end"
)

// Event captures a single notification emitted during agent execution.
type Event struct {
	Version  int             `json:"version"`
	EventID  string          `json:"event_id"`
	Sequence int64           `json:"sequence"`
	Type     string          `json:"type"`
	Time     time.Time       `json:"time"`
	TaskID   string          `json:"task_id"`
	ModuleID string          `json:"module_id"`
	Payload  json.RawMessage `json:"payload"`
}

var sequence atomic.Int64

// New builds a stamped event carrying a JSON payload. Payload marshal
// failures degrade to an error payload rather than dropping the event.
func New(eventType, moduleID string, payload any) Event {
	body, err := json.Marshal(payload)
	if err != nil {
		body, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return Event{
		Version:  EventSchemaVersion,
		EventID:  uuid.NewString(),
		Sequence: sequence.Add(1),
		Type:     strings.TrimSpace(eventType),
		Time:     time.Now().UTC(),
		ModuleID: strings.TrimSpace(moduleID),
		Payload:  body,
	}
}

// Normalize applies defaults and canonical formatting before validation.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Version == 0 {
		e.Version = EventSchemaVersion
	}
	e.EventID = strings.TrimSpace(e.EventID)
	e.Type = strings.TrimSpace(e.Type)
	e.TaskID = strings.TrimSpace(e.TaskID)
	e.ModuleID = strings.TrimSpace(e.ModuleID)
}

// Validate enforces baseline schema requirements for events.
func (e Event) Validate() error {
	if e.Version != EventSchemaVersion {
		return fmt.Errorf("version %d not supported", e.Version)
	}
	if e.EventID == "" {
		return errors.New("event_id is required")
	}
	if e.Type == "" {
		return errors.New("type is required")
	}
	if e.ModuleID == "" {
		return errors.New("module_id is required")
	}
	return nil
}

// Text extracts a "content" string payload, if present.
func (e Event) Text() string {
	if len(e.Payload) == 0 {
		return ""
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(e.Payload, &body); err != nil {
		return ""
	}
	return body.Content
}

// Processor consumes events.
type Processor interface {
	HandleEvent(Event) error
}

// ProcessorFunc adapts a function into a Processor.
type ProcessorFunc func(Event) error

// HandleEvent executes f(e).
func (f ProcessorFunc) HandleEvent(e Event) error {
	if f == nil {
		return nil
	}
	return f(e)
}

// Logger records router diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}
