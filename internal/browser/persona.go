package browser

import (
	"fmt"
	"math/rand"
)

// Persona describes the consistent browser fingerprint presented to sites.
// The profile mirrors a developer's MacBook Pro so the session blends in
// with ordinary traffic: pinned Chrome major version with randomized patch
// levels, Retina screen, Boston-area geolocation with slight jitter.
type Persona struct {
	UserAgent           string
	Platform            string
	Vendor              string
	GPU                 string
	Languages           []string
	ScreenWidth         int
	ScreenHeight        int
	ScaleFactor         int
	HardwareConcurrency int
	DeviceMemory        int
	Timezone            string
	Latitude            float64
	Longitude           float64
	Extensions          []Extension
}

// Extension is a browser extension advertised through navigator.plugins.
type Extension struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
}

const chromeMajorVersion = 121

const (
	bostonLatitude  = 42.3601
	bostonLongitude = -71.0589
)

var developerExtensions = []Extension{
	{Name: "React Developer Tools", Filename: "fmkadmapgofadopljbjfkapdkoienihi"},
	{Name: "Redux DevTools", Filename: "lmhkpmbekcpmknklioeibfkpmmfibljd"},
	{Name: "JSON Formatter", Filename: "bcjindcccaagfpapjjmafapmmgkkhgoa"},
	{Name: "GitHub Dark Theme", Filename: "kom08lmcnfglkjfggdepcdcpbgkmegjj"},
}

// chromeVersion returns the pinned major version with randomized patch levels.
func chromeVersion(rng *rand.Rand) string {
	return fmt.Sprintf("%d.%d.%d.%d", chromeMajorVersion, rng.Intn(10), rng.Intn(10), rng.Intn(10))
}

// newPersona builds the macOS developer persona with location jitter.
func newPersona(rng *rand.Rand) Persona {
	version := chromeVersion(rng)
	return Persona{
		UserAgent: fmt.Sprintf(
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
			version,
		),
		Platform:            "MacIntel",
		Vendor:              "Google Inc. (Apple)",
		GPU:                 "ANGLE (Apple, Apple M1 Pro, OpenGL 4.1)",
		Languages:           []string{"en-US", "en"},
		ScreenWidth:         2560,
		ScreenHeight:        1600,
		ScaleFactor:         2,
		HardwareConcurrency: 10,
		DeviceMemory:        32,
		Timezone:            "America/New_York",
		Latitude:            bostonLatitude + jitter(rng, 0.01),
		Longitude:           bostonLongitude + jitter(rng, 0.01),
		Extensions:          append([]Extension{}, developerExtensions...),
	}
}

func jitter(rng *rand.Rand, radius float64) float64 {
	return (rng.Float64()*2 - 1) * radius
}
