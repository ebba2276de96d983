package probe

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	audioSampleRate = 44100
	audioLength     = 44100 // one second
	oscFrequency    = 10000.0

	// DynamicsCompressor parameters, pinned to the values every
	// audio-fingerprint script uses.
	compThresholdDB = -50.0
	compKneeDB      = 40.0
	compRatio       = 12.0
	compAttackSec   = 0.0
	compReleaseSec  = 0.25
)

// SoftAudio is the default AudioContext: an offline render of a
// fixed-frequency triangle oscillator through a dynamics compressor.
// Construct one per session; renders never share envelope state.
type SoftAudio struct{}

func NewSoftAudio() *SoftAudio { return &SoftAudio{} }

// RenderOffline synthesizes the full 1-second buffer. All math is
// float64 folded to float32 per sample, so repeated renders are
// bit-identical.
func (a *SoftAudio) RenderOffline() ([]float32, error) {
	buf := make([]float32, audioLength)
	comp := newCompressor()
	for i := range buf {
		t := float64(i) / audioSampleRate
		s := triangle(oscFrequency * t)
		buf[i] = float32(comp.process(s))
	}
	return buf, nil
}

// triangle is the ideal triangle wave in [-1,1] for phase in cycles.
func triangle(phase float64) float64 {
	p := phase - math.Floor(phase)
	return 4*math.Abs(p-0.5) - 1
}

// compressor is a sample-accurate model of a WebAudio
// DynamicsCompressor: level detection in dB, soft-knee gain curve,
// one-pole attack/release smoothing.
type compressor struct {
	attackCoef  float64
	releaseCoef float64
	envelopeDB  float64
}

func newCompressor() *compressor {
	c := &compressor{envelopeDB: -120}
	// Instantaneous attack at 0s leaves the coefficient at zero. The
	// float64 conversion keeps the division out of constant folding.
	if attack := float64(compAttackSec); attack > 0 {
		c.attackCoef = math.Exp(-1 / (audioSampleRate * attack))
	}
	c.releaseCoef = math.Exp(-1 / (audioSampleRate * compReleaseSec))
	return c
}

func (c *compressor) process(s float64) float64 {
	levelDB := -120.0
	if abs := math.Abs(s); abs > 1e-6 {
		levelDB = 20 * math.Log10(abs)
	}

	coef := c.attackCoef
	if levelDB < c.envelopeDB {
		coef = c.releaseCoef
	}
	c.envelopeDB = levelDB + coef*(c.envelopeDB-levelDB)

	return s * dbToLinear(gainReductionDB(c.envelopeDB))
}

// gainReductionDB applies the soft-knee compression curve to an input
// level and returns the (non-positive) gain to apply.
func gainReductionDB(levelDB float64) float64 {
	lower := compThresholdDB - compKneeDB/2
	upper := compThresholdDB + compKneeDB/2
	switch {
	case levelDB <= lower:
		return 0
	case levelDB >= upper:
		return compThresholdDB + (levelDB-compThresholdDB)/compRatio - levelDB
	default:
		// Quadratic interpolation inside the knee.
		x := levelDB - lower
		return (1/compRatio - 1) * x * x / (2 * compKneeDB)
	}
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// AudioFingerprint is the stable per-render fingerprint string: the sum
// of sample magnitudes over the second fixed window, fixed precision.
func AudioFingerprint(buf []float32) string {
	w := AudioWindows[1]
	var sum float64
	for i := w[0]; i < w[1] && i < len(buf); i++ {
		sum += math.Abs(float64(buf[i]))
	}
	return fmt.Sprintf("%.11f", sum)
}

// AudioBytes converts a sample buffer to its canonical byte form for
// content hashing (little-endian IEEE 754 words).
func AudioBytes(buf []float32) []byte {
	out := make([]byte, 4*len(buf))
	for i, s := range buf {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(s))
	}
	return out
}
