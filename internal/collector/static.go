package collector

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// StaticAttributes are the one-shot environment attributes that travel
// with a submission. They are simple queries, not probes: no trials, no
// tamper analysis.
type StaticAttributes struct {
	UserAgent        string
	ScreenResolution string
	Timezone         string
	Language         string
	Platform         string
	Fonts            []string
	Plugins          []string
	TouchSupport     bool
	CookieEnabled    bool
	DoNotTrack       string
}

// CanonicalString is the stable serialization folded into the composite
// fingerprint.
func (s StaticAttributes) CanonicalString() string {
	return strings.Join([]string{
		s.UserAgent,
		s.ScreenResolution,
		s.Timezone,
		s.Language,
		s.Platform,
		strings.Join(s.Fonts, ","),
		strings.Join(s.Plugins, ","),
		fmt.Sprintf("%t", s.TouchSupport),
		fmt.Sprintf("%t", s.CookieEnabled),
		s.DoNotTrack,
	}, ";")
}

// StaticProvider supplies the static attributes for one session.
type StaticProvider interface {
	Collect() (StaticAttributes, error)
}

// EnvStatic derives static attributes from the local process
// environment. It stands in for the host browser/platform surface the
// collector would normally query.
type EnvStatic struct{}

func (EnvStatic) Collect() (StaticAttributes, error) {
	zone, _ := time.Now().Zone()
	lang := os.Getenv("LANG")
	if lang == "" {
		lang = "en-US"
	}
	return StaticAttributes{
		UserAgent:        fmt.Sprintf("argusprobe/1.0 (%s; %s)", runtime.GOOS, runtime.GOARCH),
		ScreenResolution: "1920x1080",
		Timezone:         zone,
		Language:         lang,
		Platform:         runtime.GOOS,
		Fonts: []string{
			"Arial", "Courier New", "Georgia", "Tahoma", "Times New Roman",
			"Trebuchet MS", "Verdana",
		},
		Plugins:       []string{"argusprobe-core"},
		TouchSupport:  false,
		CookieEnabled: true,
		DoNotTrack:    "unspecified",
	}, nil
}
