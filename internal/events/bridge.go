package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conciergehq/concierge/internal/config"
)

// BridgeProtocolVersion identifies the ingest contract exposed via /health.
const BridgeProtocolVersion = "1.0.0"

const (
	// DefaultBridgeHost is the loopback interface used when no override is provided.
	DefaultBridgeHost = "127.0.0.1"
	// DefaultBridgePort is the default TCP port for the bridge server.
	DefaultBridgePort = 8765
	// DefaultBridgeMaxBodyBytes limits request payloads to 1 MB.
	DefaultBridgeMaxBodyBytes int64 = 1 << 20
	// DefaultBridgeReadTimeout guards hung clients.
	DefaultBridgeReadTimeout = 15 * time.Second
	// DefaultBridgeWriteTimeout bounds handler writes.
	DefaultBridgeWriteTimeout = 15 * time.Second
	// DefaultBridgeIdleTimeout bounds keep-alive connections.
	DefaultBridgeIdleTimeout = 60 * time.Second
)

// ErrBridgeDisabled is returned by Start when the bridge is switched off.
var ErrBridgeDisabled = errors.New("events: bridge disabled")

// BridgeSettings captures runtime configuration for the HTTP event bridge.
type BridgeSettings struct {
	Enabled      bool
	Host         string
	Port         int
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BridgeSettingsFromConfig builds settings from the project config plus
// CONCIERGE_BRIDGE_* environment overrides. The bridge is opt-in.
func BridgeSettingsFromConfig(cfg *config.Config) BridgeSettings {
	settings := BridgeSettings{
		Host:         DefaultBridgeHost,
		Port:         DefaultBridgePort,
		MaxBodyBytes: DefaultBridgeMaxBodyBytes,
		ReadTimeout:  DefaultBridgeReadTimeout,
		WriteTimeout: DefaultBridgeWriteTimeout,
		IdleTimeout:  DefaultBridgeIdleTimeout,
	}
	if cfg != nil {
		raw := cfg.Project.Bridge
		if raw.Enabled != nil {
			settings.Enabled = *raw.Enabled
		}
		if host := strings.TrimSpace(raw.Host); host != "" {
			settings.Host = host
		}
		if isValidPort(raw.Port) {
			settings.Port = raw.Port
		}
	}
	settings.applyEnvOverrides()
	settings.normalize()
	return settings
}

func (s *BridgeSettings) applyEnvOverrides() {
	if s == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("CONCIERGE_BRIDGE_ENABLED")); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			s.Enabled = enabled
		}
	}
	if host := strings.TrimSpace(os.Getenv("CONCIERGE_BRIDGE_HOST")); host != "" {
		s.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("CONCIERGE_BRIDGE_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			s.Port = parsed
		}
	}
}

func (s *BridgeSettings) normalize() {
	if s == nil {
		return
	}
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultBridgeHost
	}
	if !isValidPort(s.Port) {
		s.Port = DefaultBridgePort
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultBridgeMaxBodyBytes
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultBridgeReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultBridgeWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultBridgeIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s BridgeSettings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s BridgeSettings) URL() string {
	return "http://" + s.Address()
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}

// BridgeStatus reports lifecycle states for the HTTP server.
type BridgeStatus string

const (
	BridgeStarting BridgeStatus = "starting"
	BridgeReady    BridgeStatus = "ready"
	BridgeDraining BridgeStatus = "draining"
)

// Bridge accepts events over HTTP so external helpers (plugin scripts, a
// second terminal) can publish progress into the run's event stream.
type Bridge struct {
	settings  BridgeSettings
	processor Processor
	logger    Logger
	clock     func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    BridgeStatus
	startTime time.Time
}

// BridgeOption customizes bridge construction.
type BridgeOption func(*Bridge)

// BridgeWithProcessor overrides the default no-op event processor.
func BridgeWithProcessor(p Processor) BridgeOption {
	return func(b *Bridge) {
		if p != nil {
			b.processor = p
		}
	}
}

// BridgeWithLogger overrides the default no-op logger.
func BridgeWithLogger(l Logger) BridgeOption {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// BridgeWithClock allows tests to control timestamps.
func BridgeWithClock(clock func() time.Time) BridgeOption {
	return func(b *Bridge) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// NewBridge prepares a bridge server using the provided settings.
func NewBridge(settings BridgeSettings, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		settings:  settings,
		processor: ProcessorFunc(func(Event) error { return nil }),
		logger:    nopLogger{},
		clock:     func() time.Time { return time.Now().UTC() },
		status:    BridgeStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (b *Bridge) Start(ctx context.Context) error {
	if b == nil {
		return fmt.Errorf("events: bridge is nil")
	}
	if !b.settings.Enabled {
		return ErrBridgeDisabled
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener != nil {
		return fmt.Errorf("events: bridge already started")
	}
	addr := b.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("events: listen %s: %w", addr, err)
	}
	b.listener = listener
	b.startTime = b.clock()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", b.handleHealth)
	mux.HandleFunc("/events", b.handleEvents)
	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  b.settings.ReadTimeout,
		WriteTimeout: b.settings.WriteTimeout,
		IdleTimeout:  b.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	b.server = server
	b.status = BridgeReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Printf("events: bridge serve error: %v", err)
		}
	}()
	b.logger.Printf("events: bridge listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests.
func (b *Bridge) Shutdown(ctx context.Context) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil || b.server == nil {
		return nil
	}
	b.status = BridgeDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := b.server.Shutdown(deadline); err != nil {
		return err
	}
	b.listener = nil
	b.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (b *Bridge) Addr() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// BaseURL returns the HTTP base URL for the running server.
func (b *Bridge) BaseURL() string {
	addr := b.Addr()
	if addr == "" {
		return b.settings.URL()
	}
	return "http://" + addr
}

// Status reports the bridge's lifecycle state.
func (b *Bridge) Status() BridgeStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *Bridge) now() time.Time {
	if b.clock == nil {
		return time.Now().UTC()
	}
	return b.clock().UTC()
}

func (b *Bridge) uptimeSeconds() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(b.startTime).Seconds())
}

type bridgeHealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type bridgeEventResponse struct {
	Status     string    `json:"status"`
	ServerTime time.Time `json:"server_time"`
}

func (b *Bridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	resp := bridgeHealthResponse{
		Status:        string(b.Status()),
		Version:       BridgeProtocolVersion,
		UptimeSeconds: b.uptimeSeconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Bridge) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty body"})
		return
	}
	reader := http.MaxBytesReader(w, r.Body, b.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload exceeds limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read body"})
		return
	}
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	evt.Normalize()
	if err := evt.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := b.processor.HandleEvent(evt); err != nil {
		b.logger.Printf("events: bridge processor error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "event processing failed"})
		return
	}
	writeJSON(w, http.StatusAccepted, bridgeEventResponse{Status: "accepted", ServerTime: b.now()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
