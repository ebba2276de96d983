// Package probe executes deterministic rendering and synthesis routines
// against injectable graphics/audio backends. A probe run against an
// unmodified backend produces a bit-identical buffer on every call;
// any deviation between calls is evidence of active randomization, not
// of re-running the same math.
package probe

import (
	"errors"
	"time"
)

// Modality names one probe family.
type Modality string

const (
	ModalityCanvas Modality = "canvas"
	ModalityWebGL  Modality = "webgl"
	ModalityAudio  Modality = "audio"
)

// ErrUnavailable marks a backend capability that is absent altogether
// (no GL context, no audio graph). It is terminal for the modality and
// reported as unsupported rather than as a failure.
var ErrUnavailable = errors.New("probe: capability unavailable")

// ExecError wraps a failure inside a render routine (the equivalent of a
// shader compile/link or runtime exception).
type ExecError struct {
	Modality Modality
	Err      error
}

func (e *ExecError) Error() string {
	return "probe: " + string(e.Modality) + " render: " + e.Err.Error()
}
func (e *ExecError) Unwrap() error { return e.Err }

// ReadbackError wraps a sample-retrieval failure after a successful draw.
type ReadbackError struct {
	Modality Modality
	Err      error
}

func (e *ReadbackError) Error() string {
	return "probe: " + string(e.Modality) + " readback: " + e.Err.Error()
}
func (e *ReadbackError) Unwrap() error { return e.Err }

// Sample is one raw probe output. Data is discarded once hashed and
// analyzed; nothing downstream holds onto it.
type Sample struct {
	Modality Modality
	Trial    int
	Data     []byte
	Duration time.Duration
	Taken    time.Time
}

// Canvas2D is a 2D raster surface. Render draws the fixed text+shape
// pattern and returns the raw RGBA pixel buffer (4 bytes per pixel).
type Canvas2D interface {
	Render() ([]byte, error)
	Size() (w, h int)
}

// GL is a 3D rendering surface with pixel readback. RenderRect draws the
// minimal red-rectangle baseline probe; RenderCube draws the colored-cube
// scene used by the two-phase dynamic probe. Ready is the page
// load-completion milestone that gates the second cube render.
type GL interface {
	RenderRect() ([]byte, error)
	RenderCube() ([]byte, error)
	Ready() <-chan struct{}
}

// AudioContext renders the fixed oscillator+compressor graph offline and
// returns the full 1-second sample buffer.
type AudioContext interface {
	RenderOffline() ([]float32, error)
}

// AudioWindows are the fixed sample-index windows extracted per render.
var AudioWindows = [4][2]int{
	{1000, 1500},
	{4500, 5000},
	{8000, 8500},
	{15000, 15500},
}

// ExtractWindows slices the four fixed windows out of a full render.
// Short buffers yield zero-length windows rather than panicking.
func ExtractWindows(buf []float32) [4][]float32 {
	var out [4][]float32
	for i, w := range AudioWindows {
		lo, hi := w[0], w[1]
		if lo > len(buf) {
			lo = len(buf)
		}
		if hi > len(buf) {
			hi = len(buf)
		}
		out[i] = buf[lo:hi]
	}
	return out
}
