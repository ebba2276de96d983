package detect

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntropyBounds(t *testing.T) {
	assert.Equal(t, 0.0, Entropy(nil))
	assert.Equal(t, 0.0, Entropy(bytes.Repeat([]byte{42}, 1000)))

	// Four equally-frequent symbols carry exactly 2 bits.
	quad := bytes.Repeat([]byte{0, 1, 2, 3}, 256)
	assert.InDelta(t, 2.0, Entropy(quad), 1e-9)

	// A uniform byte stream carries exactly 8 bits.
	uniform := make([]byte, 256*16)
	for i := range uniform {
		uniform[i] = byte(i % 256)
	}
	assert.InDelta(t, 8.0, Entropy(uniform), 1e-9)
}

func TestHighEntropyThreshold(t *testing.T) {
	_, high := HighEntropy(bytes.Repeat([]byte{7}, 512))
	assert.False(t, high)

	uniform := make([]byte, 4096)
	for i := range uniform {
		uniform[i] = byte(i % 256)
	}
	h, high := HighEntropy(uniform)
	assert.True(t, high)
	assert.Greater(t, h, 7.8)
}

// opaquePixel appends one RGBA pixel with alpha 255.
func opaquePixel(buf []byte, r, g, b byte) []byte {
	return append(buf, r, g, b, 255)
}

func TestPixelVarianceFlagsMidBandDisagreement(t *testing.T) {
	// 15 of 100 opaque pixels carry a channel spread inside [30,200].
	var buf []byte
	for i := 0; i < 15; i++ {
		buf = opaquePixel(buf, 100, 140, 100) // diff = 40+40+0 = 80
	}
	for i := 0; i < 85; i++ {
		buf = opaquePixel(buf, 240, 240, 240) // diff = 0
	}

	rep := PixelVariance(buf)
	require.Equal(t, 100, rep.OpaquePixels)
	assert.Equal(t, 15, rep.SuspiciousPixels)
	assert.True(t, rep.Flagged)
	assert.InDelta(t, 0.30, rep.Confidence, 1e-9)
}

func TestPixelVarianceIgnoresSaturatedAndTransparent(t *testing.T) {
	var buf []byte
	// Saturated red overshoots the band.
	for i := 0; i < 50; i++ {
		buf = opaquePixel(buf, 255, 0, 0) // diff = 510
	}
	// Translucent pixels are skipped entirely.
	for i := 0; i < 50; i++ {
		buf = append(buf, 100, 140, 100, 160)
	}

	rep := PixelVariance(buf)
	assert.Equal(t, 50, rep.OpaquePixels)
	assert.Equal(t, 0, rep.SuspiciousPixels)
	assert.False(t, rep.Flagged)
}

func TestPixelVarianceBelowFractionNotFlagged(t *testing.T) {
	var buf []byte
	for i := 0; i < 5; i++ {
		buf = opaquePixel(buf, 100, 140, 100)
	}
	for i := 0; i < 95; i++ {
		buf = opaquePixel(buf, 10, 10, 10)
	}
	rep := PixelVariance(buf)
	assert.InDelta(t, 0.05, rep.Fraction, 1e-9)
	assert.False(t, rep.Flagged)
}

func TestPixelVarianceConfidenceCap(t *testing.T) {
	var buf []byte
	for i := 0; i < 100; i++ {
		buf = opaquePixel(buf, 100, 140, 100)
	}
	rep := PixelVariance(buf)
	assert.True(t, rep.Flagged)
	assert.Equal(t, 0.95, rep.Confidence)
}

func TestAnalyzeSegment(t *testing.T) {
	st := AnalyzeSegment([]float32{1, -1, 1, -1})
	assert.InDelta(t, 4.0, st.Sum, 1e-9)
	assert.InDelta(t, 1.0, st.Mean, 1e-9)
	assert.InDelta(t, 1.0, st.Min, 1e-9)
	assert.InDelta(t, 1.0, st.Max, 1e-9)
	assert.InDelta(t, 0.0, st.Variance, 1e-9)

	assert.Equal(t, SegmentStats{}, AnalyzeSegment(nil))
}

func TestSegmentsMismatch(t *testing.T) {
	base := SegmentStats{Mean: 1.0, Variance: 0.5}

	assert.False(t, SegmentsMismatch(base, base))

	// 1% mean shift is ten times the mean tolerance.
	shifted := base
	shifted.Mean = 1.01
	assert.True(t, SegmentsMismatch(base, shifted))

	// Variance shift just under 1% stays within tolerance.
	varClose := base
	varClose.Variance = 0.5025
	assert.False(t, SegmentsMismatch(base, varClose))

	varFar := base
	varFar.Variance = 0.51
	assert.True(t, SegmentsMismatch(base, varFar))
}

func TestRenderTimeAnomalous(t *testing.T) {
	assert.False(t, RenderTimeAnomalous(100*time.Millisecond, 140*time.Millisecond))
	assert.True(t, RenderTimeAnomalous(100*time.Millisecond, 250*time.Millisecond))
	assert.False(t, RenderTimeAnomalous(0, 0))
}
