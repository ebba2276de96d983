package detect

import (
	"fmt"
	"strconv"
	"time"

	"argus/internal/probe"
)

// Classifier confidence table. Single heuristics are false-positive
// prone (driver variance, GC jitter); confidence only climbs when
// independent signals converge, while partial evidence still surfaces at
// lower confidence for audit.
const (
	canvasCleanConfidence  = 0.8
	canvasNoiseConfidence  = 0.9
	webglCleanConfidence   = 0.7
	webglPersistConfidence = 0.8
	webglRandomConfidence  = 0.9
	audioCleanConfidence   = 0.8
	audioBaseConfidence    = 0.6
	audioStepConfidence    = 0.15
	audioMaxConfidence     = 0.95
)

// ClassifyCanvas fuses the two-trial consistency report with the
// statistical signals computed over the raw pixels of one trial.
func ClassifyCanvas(rep ConsistencyReport, pix []byte) Verdict {
	v := Verdict{
		Modality:  probe.ModalityCanvas,
		Supported: true,
		Details:   map[string]string{"distinct_values": strconv.Itoa(rep.DistinctValues)},
	}

	v.DynamicNoise = !rep.Consistent

	pv := PixelVariance(pix)
	entropy, highEntropy := HighEntropy(pix)
	v.Details["entropy"] = fmt.Sprintf("%.3f", entropy)
	v.Details["suspicious_fraction"] = fmt.Sprintf("%.3f", pv.Fraction)

	switch {
	case pv.Flagged:
		v.StaticNoise = true
		v.Details["static_signal"] = "pixel_variance"
	case highEntropy:
		v.StaticNoise = true
		v.Details["static_signal"] = "entropy"
	}

	v.Spoofed = v.DynamicNoise || v.StaticNoise
	if v.Spoofed {
		v.Confidence = canvasNoiseConfidence
		v.Indicators = countTrue(v.DynamicNoise, pv.Flagged, highEntropy)
	} else {
		v.Confidence = canvasCleanConfidence
	}
	return v
}

// WebGLEvidence gathers both webgl probes: the red-rectangle baseline
// hash checked against the allow-list and the before/after cube hashes.
type WebGLEvidence struct {
	RectHash   string
	Allowlist  []string
	CubeBefore string
	CubeAfter  string
	// RectStable records whether the rectangle hash repeated across
	// local trials. An unlisted-but-stable hash is very often just an
	// unlisted GPU/driver combination, so it travels in the details for
	// the scorer to under-weight rather than being suppressed here.
	RectStable bool
}

// ClassifyWebGL flags a baseline deviation as persistent noise and a
// before/after cube divergence as random noise.
func ClassifyWebGL(ev WebGLEvidence) Verdict {
	v := Verdict{
		Modality:  probe.ModalityWebGL,
		Supported: true,
		Details: map[string]string{
			"rect_hash":            ev.RectHash,
			"stable_across_trials": strconv.FormatBool(ev.RectStable),
		},
	}

	v.PersistentNoise = !InAllowlist(ev.RectHash, ev.Allowlist)
	v.RandomNoise = ev.CubeBefore != ev.CubeAfter
	v.Spoofed = v.PersistentNoise || v.RandomNoise

	switch {
	case v.RandomNoise:
		v.Confidence = webglRandomConfidence
	case v.PersistentNoise:
		v.Confidence = webglPersistConfidence
	default:
		v.Confidence = webglCleanConfidence
	}
	v.Indicators = countTrue(v.PersistentNoise, v.RandomNoise)
	return v
}

// AudioTrial is one offline render reduced to comparable evidence.
type AudioTrial struct {
	Fingerprint string
	Segments    [4]SegmentStats
	Duration    time.Duration
}

// ClassifyAudio counts independently-triggered signals across two
// staggered renders: main fingerprint mismatch, any window mismatch,
// and render-time anomaly. Confidence climbs with each but is capped.
func ClassifyAudio(t1, t2 AudioTrial) Verdict {
	v := Verdict{Modality: probe.ModalityAudio, Supported: true, Details: map[string]string{}}

	mainMismatch := t1.Fingerprint != t2.Fingerprint

	segMismatches := 0
	for i := range t1.Segments {
		if SegmentsMismatch(t1.Segments[i], t2.Segments[i]) {
			segMismatches++
		}
	}
	timeAnomaly := RenderTimeAnomalous(t1.Duration, t2.Duration)

	v.Indicators = countTrue(mainMismatch, segMismatches > 0, timeAnomaly)
	v.DynamicNoise = mainMismatch || segMismatches > 0
	v.Spoofed = v.DynamicNoise
	v.Details["segments_mismatched"] = strconv.Itoa(segMismatches)
	v.Details["render_time_anomaly"] = strconv.FormatBool(timeAnomaly)

	if v.DynamicNoise {
		c := audioBaseConfidence + audioStepConfidence*float64(v.Indicators)
		if c > audioMaxConfidence {
			c = audioMaxConfidence
		}
		v.Confidence = c
	} else {
		v.Confidence = audioCleanConfidence
	}
	return v
}

func countTrue(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
