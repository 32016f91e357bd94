// Package browser manages a persistent Chrome session with a realistic
// developer persona. Pages created through the Manager carry a stealth
// script that hides automation markers from the sites the grocery tools
// drive.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ErrNotStarted is returned when a page is requested before Start.
var ErrNotStarted = errors.New("browser: not started")

const defaultTimeout = 10 * time.Second

// debugTimeout effectively disables per-operation deadlines while a human
// watches the headful session.
const debugTimeout = 10 * time.Hour

// Option customizes the Manager.
type Option func(*Manager)

// WithDebug runs the browser headful with extended timeouts.
func WithDebug(debug bool) Option {
	return func(m *Manager) {
		m.debug = debug
	}
}

// WithTimeout overrides the per-operation timeout. Values <= 0 keep the
// default.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithRandSource injects a deterministic random source (used in tests).
func WithRandSource(src rand.Source) Option {
	return func(m *Manager) {
		if src != nil {
			m.rng = rand.New(src)
		}
	}
}

// Manager owns the allocator and browser context for a persistent profile.
type Manager struct {
	mu          sync.Mutex
	userDataDir string
	debug       bool
	timeout     time.Duration
	rng         *rand.Rand
	persona     Persona

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

// NewManager prepares a manager rooted at the given profile directory. The
// directory is created if missing; browser state persists across runs.
func NewManager(userDataDir string, opts ...Option) *Manager {
	m := &Manager{
		userDataDir: userDataDir,
		timeout:     defaultTimeout,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.persona = newPersona(m.rng)
	return m
}

// Persona exposes the fingerprint chosen for this session.
func (m *Manager) Persona() Persona {
	return m.persona
}

// Start launches the browser with the persona profile. Calling Start on a
// live manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browserCtx != nil {
		return nil
	}
	if m.userDataDir != "" {
		if err := os.MkdirAll(m.userDataDir, 0o755); err != nil {
			return fmt.Errorf("browser: create profile dir: %w", err)
		}
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(m.userDataDir),
		chromedp.UserAgent(m.persona.UserAgent),
		chromedp.WindowSize(m.persona.ScreenWidth, m.persona.ScreenHeight),
		chromedp.Flag("headless", !m.debug),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-automation", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("enable-gpu-rasterization", true),
		chromedp.Flag("ignore-gpu-blocklist", true),
		chromedp.Flag("lang", "en-US"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	script, err := stealthScript(m.persona)
	if err != nil {
		cancel()
		allocCancel()
		return err
	}
	bootstrap := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
		emulation.SetTimezoneOverride(m.persona.Timezone),
		emulation.SetGeolocationOverride().
			WithLatitude(m.persona.Latitude).
			WithLongitude(m.persona.Longitude).
			WithAccuracy(100),
	}
	if err := chromedp.Run(browserCtx, bootstrap); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("browser: launch: %w", err)
	}
	m.allocCtx = allocCtx
	m.allocCancel = allocCancel
	m.browserCtx = browserCtx
	m.cancel = cancel
	return nil
}

// NewPage returns a page bound to the running browser.
func (m *Manager) NewPage() (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browserCtx == nil {
		return nil, ErrNotStarted
	}
	timeout := m.timeout
	if m.debug {
		timeout = debugTimeout
	}
	return &Page{ctx: m.browserCtx, timeout: timeout}, nil
}

// Stop tears down the browser and allocator. Safe to call without Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.browserCtx = nil
	m.cancel = nil
	m.allocCtx = nil
	m.allocCancel = nil
}
