package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/conciergehq/concierge/internal/config"
)

func TestBridgeSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv("CONCIERGE_BRIDGE_PORT", "9001")
	t.Setenv("CONCIERGE_BRIDGE_HOST", "0.0.0.0")
	t.Setenv("CONCIERGE_BRIDGE_ENABLED", "true")
	cfg := &config.Config{}
	settings := BridgeSettingsFromConfig(cfg)
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if !settings.Enabled {
		t.Fatalf("expected enabled=true from env override")
	}
}

func TestBridgeSettingsDefaultDisabled(t *testing.T) {
	settings := BridgeSettingsFromConfig(&config.Config{})
	if settings.Enabled {
		t.Fatal("bridge must be opt-in")
	}
	if settings.Port != DefaultBridgePort || settings.Host != DefaultBridgeHost {
		t.Fatalf("unexpected defaults %+v", settings)
	}
}

func TestBridgeAcceptsEvents(t *testing.T) {
	t.Parallel()
	fixed := time.Unix(1730000000, 0).UTC()
	recorded := make(chan Event, 1)
	settings := BridgeSettings{Enabled: true, Host: "127.0.0.1", Port: 0, MaxBodyBytes: 1024, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	bridge := NewBridge(settings,
		BridgeWithClock(func() time.Time { return fixed }),
		BridgeWithProcessor(ProcessorFunc(func(e Event) error {
			recorded <- e
			return nil
		})))
	t.Cleanup(func() {
		_ = bridge.Shutdown(context.Background())
	})
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("start bridge: %v", err)
	}
	base := bridge.BaseURL()
	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", resp.StatusCode)
	}
	payload := Event{
		Version:  EventSchemaVersion,
		EventID:  "evt-1",
		Type:     TypeStatus,
		ModuleID: "plan-execution",
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	resp, err = http.Post(base+"/events", "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post event: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	select {
	case evt := <-recorded:
		if evt.EventID != "evt-1" {
			t.Fatalf("unexpected event %+v", evt)
		}
	default:
		t.Fatalf("event not forwarded to processor")
	}
}

func TestBridgeRejectsInvalidEvents(t *testing.T) {
	t.Parallel()
	settings := BridgeSettings{Enabled: true, Host: "127.0.0.1", Port: 0, MaxBodyBytes: 1024, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	bridge := NewBridge(settings)
	t.Cleanup(func() {
		_ = bridge.Shutdown(context.Background())
	})
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("start bridge: %v", err)
	}
	payload := map[string]any{"version": EventSchemaVersion, "type": TypeStatus}
	buf, _ := json.Marshal(payload)
	resp, err := http.Post(bridge.BaseURL()+"/events", "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBridgeEnforcesPayloadLimit(t *testing.T) {
	t.Parallel()
	settings := BridgeSettings{Enabled: true, Host: "127.0.0.1", Port: 0, MaxBodyBytes: 64, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	bridge := NewBridge(settings)
	t.Cleanup(func() {
		_ = bridge.Shutdown(context.Background())
	})
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("start bridge: %v", err)
	}
	tooLarge := bytes.Repeat([]byte("a"), 512)
	payload := map[string]any{
		"version":   EventSchemaVersion,
		"event_id":  "evt",
		"type":      TypeStatus,
		"module_id": "plan-execution",
		"payload":   string(tooLarge),
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(bridge.BaseURL()+"/events", "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestBridgeDisabledRefusesStart(t *testing.T) {
	bridge := NewBridge(BridgeSettings{Enabled: false})
	if err := bridge.Start(context.Background()); err != ErrBridgeDisabled {
		t.Fatalf("expected ErrBridgeDisabled, got %v", err)
	}
}
