package browser

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func TestPersonaJittersAroundBoston(t *testing.T) {
	persona := newPersona(rand.New(rand.NewSource(1)))
	if persona.Platform != "MacIntel" {
		t.Fatalf("unexpected platform %q", persona.Platform)
	}
	if !strings.Contains(persona.UserAgent, "Chrome/121.") {
		t.Fatalf("expected pinned Chrome major version, got %q", persona.UserAgent)
	}
	if persona.Latitude < bostonLatitude-0.01 || persona.Latitude > bostonLatitude+0.01 {
		t.Fatalf("latitude %f outside jitter range", persona.Latitude)
	}
	if persona.Longitude < bostonLongitude-0.01 || persona.Longitude > bostonLongitude+0.01 {
		t.Fatalf("longitude %f outside jitter range", persona.Longitude)
	}
	if persona.Timezone != "America/New_York" {
		t.Fatalf("unexpected timezone %q", persona.Timezone)
	}
	if len(persona.Extensions) != 4 {
		t.Fatalf("expected 4 advertised extensions, got %d", len(persona.Extensions))
	}
}

func TestChromeVersionRandomizesPatchLevels(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seen := map[string]struct{}{}
	for i := 0; i < 20; i++ {
		version := chromeVersion(rng)
		if !strings.HasPrefix(version, "121.") {
			t.Fatalf("expected major 121, got %q", version)
		}
		seen[version] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("expected varied patch levels, got %v", seen)
	}
}

func TestStealthScriptEmbedsPersona(t *testing.T) {
	persona := newPersona(rand.New(rand.NewSource(3)))
	script, err := stealthScript(persona)
	if err != nil {
		t.Fatalf("stealth script: %v", err)
	}
	for _, want := range []string{
		"webdriver: { get: () => undefined }",
		persona.GPU,
		"WEBGL_debug_renderer_info",
		"fmkadmapgofadopljbjfkapdkoienihi",
	} {
		if !strings.Contains(script, want) {
			t.Fatalf("script missing %q", want)
		}
	}
}

func TestManagerLifecycleGuards(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.NewPage(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted before Start, got %v", err)
	}
	// Stop before Start must not panic.
	m.Stop()
}
