package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/probe"
)

// grayBuffer builds an opaque grayscale RGBA buffer with no channel
// disagreement and near-zero entropy.
func grayBuffer(pixels int) []byte {
	buf := make([]byte, 0, pixels*4)
	for i := 0; i < pixels; i++ {
		buf = append(buf, 240, 240, 240, 255)
	}
	return buf
}

// uniformGrayscale builds a buffer whose byte distribution is exactly
// uniform (entropy 8.0) while every opaque pixel is grayscale, so only
// the entropy signal can fire.
func uniformGrayscale() []byte {
	buf := make([]byte, 0, 65536*4)
	for i := 0; i < 65536; i++ {
		g := byte(i % 256)
		a := byte(i / 256)
		buf = append(buf, g, g, g, a)
	}
	return buf
}

func TestClassifyCanvasClean(t *testing.T) {
	pix := grayBuffer(1000)
	v := ClassifyCanvas(CompareTrials(pix, pix), pix)

	assert.True(t, v.Supported)
	assert.False(t, v.Spoofed)
	assert.False(t, v.DynamicNoise)
	assert.False(t, v.StaticNoise)
	assert.Equal(t, 0.8, v.Confidence)

	d := v.Detection()
	assert.False(t, d.HasNoise)
	assert.Equal(t, 0.8, d.Confidence)
}

func TestClassifyCanvasDynamicNoise(t *testing.T) {
	a := grayBuffer(1000)
	b := grayBuffer(1000)
	b[0] = 241

	v := ClassifyCanvas(CompareTrials(a, b), b)
	assert.True(t, v.DynamicNoise)
	assert.True(t, v.Spoofed)
	assert.Equal(t, 0.9, v.Confidence)
	assert.Equal(t, "random_noise", v.Detection().Type)
}

func TestClassifyCanvasPixelVariance(t *testing.T) {
	// Stable across trials but every opaque pixel carries mid-band
	// channel disagreement.
	buf := make([]byte, 0, 400)
	for i := 0; i < 100; i++ {
		buf = append(buf, 100, 140, 100, 255)
	}

	v := ClassifyCanvas(CompareTrials(buf, buf), buf)
	assert.False(t, v.DynamicNoise)
	assert.True(t, v.StaticNoise)
	assert.Equal(t, "pixel_variance", v.Details["static_signal"])
	assert.Equal(t, 0.9, v.Confidence)
	assert.Equal(t, "pixel_noise", v.Detection().Type)
}

func TestClassifyCanvasHighEntropy(t *testing.T) {
	buf := uniformGrayscale()
	v := ClassifyCanvas(CompareTrials(buf, buf), buf)

	assert.True(t, v.StaticNoise)
	assert.Equal(t, "entropy", v.Details["static_signal"])
	assert.Equal(t, "high_entropy", v.Detection().Type)
	assert.Equal(t, 0.9, v.Confidence)
}

func TestClassifyWebGLAllowlistedBaseline(t *testing.T) {
	hash := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	v := ClassifyWebGL(WebGLEvidence{
		RectHash:   hash,
		Allowlist:  []string{hash},
		CubeBefore: "c1",
		CubeAfter:  "c1",
		RectStable: true,
	})

	assert.False(t, v.PersistentNoise)
	assert.False(t, v.RandomNoise)
	assert.False(t, v.Spoofed)
	assert.Equal(t, 0.7, v.Confidence)
	assert.False(t, v.Detection().HasNoise)
}

func TestClassifyWebGLUnlistedBaseline(t *testing.T) {
	v := ClassifyWebGL(WebGLEvidence{
		RectHash:   "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Allowlist:  []string{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		CubeBefore: "c1",
		CubeAfter:  "c1",
		RectStable: true,
	})

	assert.True(t, v.PersistentNoise)
	assert.True(t, v.Spoofed)
	require.GreaterOrEqual(t, v.Confidence, 0.8)
	assert.Equal(t, "webgl_parameter_anomaly", v.Detection().Type)
	// Stability across trials travels in the details so the scorer can
	// under-weight an unlisted-but-stable GPU.
	assert.Equal(t, "true", v.Details["stable_across_trials"])
}

func TestClassifyWebGLRandomNoiseOutranksPersistent(t *testing.T) {
	v := ClassifyWebGL(WebGLEvidence{
		RectHash:   "unlisted",
		Allowlist:  []string{"other"},
		CubeBefore: "c1",
		CubeAfter:  "c2",
	})

	assert.True(t, v.RandomNoise)
	assert.True(t, v.PersistentNoise)
	assert.Equal(t, 0.9, v.Confidence)
	assert.Equal(t, 2, v.Indicators)
	assert.Equal(t, "webgl_random_noise", v.Detection().Type)
}

func TestClassifyAudioIdenticalTrials(t *testing.T) {
	trial := AudioTrial{
		Fingerprint: "124.04347527516074",
		Segments: [4]SegmentStats{
			{Mean: 0.1, Variance: 0.01},
			{Mean: 0.2, Variance: 0.02},
			{Mean: 0.3, Variance: 0.03},
			{Mean: 0.4, Variance: 0.04},
		},
		Duration: 20 * time.Millisecond,
	}

	v := ClassifyAudio(trial, trial)
	assert.False(t, v.DynamicNoise)
	assert.False(t, v.Spoofed)
	assert.Equal(t, 0.8, v.Confidence)
	assert.Equal(t, 0, v.Indicators)
	assert.False(t, v.Detection().HasNoise)
}

func TestClassifyAudioConvergingIndicators(t *testing.T) {
	t1 := AudioTrial{
		Fingerprint: "124.04347527516074",
		Segments: [4]SegmentStats{
			{Mean: 0.1, Variance: 0.01},
			{Mean: 0.2, Variance: 0.02},
			{Mean: 0.3, Variance: 0.03},
			{Mean: 0.4, Variance: 0.04},
		},
		Duration: 20 * time.Millisecond,
	}
	t2 := t1
	t2.Fingerprint = "124.04347527516199"
	t2.Segments[0].Mean = 0.11
	t2.Segments[2].Mean = 0.33

	// Two indicators: main mismatch plus window mismatches.
	v := ClassifyAudio(t1, t2)
	assert.True(t, v.DynamicNoise)
	assert.Equal(t, 2, v.Indicators)
	assert.InDelta(t, 0.9, v.Confidence, 1e-9)
	assert.Equal(t, "2", v.Details["segments_mismatched"])
	assert.Equal(t, "audio_anomaly", v.Detection().Type)

	// A render-time anomaly adds the third indicator; confidence caps.
	t2.Duration = 60 * time.Millisecond
	v = ClassifyAudio(t1, t2)
	assert.Equal(t, 3, v.Indicators)
	assert.Equal(t, 0.95, v.Confidence)
}

func TestUnsupportedAndFailedNeverClaimClean(t *testing.T) {
	u := Unsupported(probe.ModalityWebGL)
	assert.False(t, u.Supported)
	assert.Equal(t, 0.0, u.Confidence)
	assert.False(t, u.Detection().HasNoise)

	f := Failed(probe.ModalityAudio, assert.AnError)
	assert.True(t, f.Supported)
	assert.NotEmpty(t, f.Err)
	assert.Equal(t, 0.0, f.Confidence)
	d := f.Detection()
	assert.False(t, d.HasNoise)
	assert.Contains(t, d.Details, "error:")
}
