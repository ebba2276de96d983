// Package detect turns repeated probe outputs into tamper verdicts. It
// holds the consistency tester (trial diffing), the statistical
// analyzer (secondary signals), and the classifier that fuses both into
// one NoiseVerdict per modality.
package detect

import (
	"fmt"

	"argus/internal/probe"
	"argus/internal/types"
)

// Verdict is the unified per-modality tamper classification. One type
// covers all modalities so consumers never branch on differently-shaped
// result objects; fields that do not apply to a modality stay false.
type Verdict struct {
	Modality probe.Modality

	// Supported is false when the capability is absent; Err carries an
	// absorbed execution/readback failure. Either way Confidence is 0:
	// unknown is never reported as clean.
	Supported bool
	Err       string

	DynamicNoise    bool // trials of an identical probe diverged
	StaticNoise     bool // stable deviation flagged by secondary stats
	PersistentNoise bool // baseline hash outside the allow-list
	RandomNoise     bool // webgl before/after cube mismatch
	Spoofed         bool // any of the above

	Indicators int // count of independently-triggered signals
	Confidence float64
	Details    map[string]string
}

// Unsupported marks a modality whose capability is absent. Terminal,
// not an error.
func Unsupported(m probe.Modality) Verdict {
	return Verdict{Modality: m, Supported: false, Confidence: 0,
		Details: map[string]string{"status": "unsupported"}}
}

// Failed absorbs a render/readback/analysis error into a zero-confidence
// verdict with no noise claim.
func Failed(m probe.Modality, err error) Verdict {
	return Verdict{Modality: m, Supported: true, Err: err.Error(), Confidence: 0,
		Details: map[string]string{"error": err.Error()}}
}

// Detection converts a verdict to its wire form, picking the single
// strongest noise type the backend weighs.
func (v Verdict) Detection() *types.NoiseDetection {
	d := &types.NoiseDetection{Confidence: v.Confidence, Details: v.detailString()}
	switch v.Modality {
	case probe.ModalityCanvas:
		switch {
		case v.DynamicNoise:
			d.HasNoise, d.Type = true, "random_noise"
		case v.StaticNoise && v.Details["static_signal"] == "pixel_variance":
			d.HasNoise, d.Type = true, "pixel_noise"
		case v.StaticNoise:
			d.HasNoise, d.Type = true, "high_entropy"
		}
	case probe.ModalityWebGL:
		switch {
		case v.RandomNoise:
			d.HasNoise, d.Type = true, "webgl_random_noise"
		case v.PersistentNoise:
			d.HasNoise, d.Type = true, "webgl_parameter_anomaly"
		}
	case probe.ModalityAudio:
		if v.DynamicNoise {
			d.HasNoise, d.Type = true, "audio_anomaly"
		}
	}
	return d
}

func (v Verdict) detailString() string {
	if v.Err != "" {
		return "error: " + v.Err
	}
	if !v.Supported {
		return "unsupported"
	}
	if len(v.Details) == 0 {
		return ""
	}
	s := ""
	for _, k := range []string{"static_signal", "entropy", "suspicious_fraction",
		"distinct_values", "rect_hash", "stable_across_trials", "segments_mismatched",
		"render_time_anomaly"} {
		if val, ok := v.Details[k]; ok {
			if s != "" {
				s += " "
			}
			s += fmt.Sprintf("%s=%s", k, val)
		}
	}
	return s
}
