package collector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalStringStable(t *testing.T) {
	attrs := StaticAttributes{
		UserAgent:        "ua",
		ScreenResolution: "1920x1080",
		Timezone:         "UTC",
		Language:         "en-US",
		Platform:         "linux",
		Fonts:            []string{"Arial", "Verdana"},
		Plugins:          []string{"core"},
		CookieEnabled:    true,
		DoNotTrack:       "unspecified",
	}

	s := attrs.CanonicalString()
	assert.Equal(t, s, attrs.CanonicalString())
	assert.Equal(t, "ua;1920x1080;UTC;en-US;linux;Arial,Verdana;core;false;true;unspecified", s)

	// Any attribute change must move the serialization.
	attrs.Fonts = []string{"Arial"}
	assert.NotEqual(t, s, attrs.CanonicalString())
}

func TestEnvStaticCollect(t *testing.T) {
	attrs, err := EnvStatic{}.Collect()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(attrs.UserAgent, "argusprobe/1.0"))
	assert.NotEmpty(t, attrs.ScreenResolution)
	assert.NotEmpty(t, attrs.Language)
	assert.GreaterOrEqual(t, len(attrs.Fonts), 5)
	assert.NotEmpty(t, attrs.Plugins)
}
