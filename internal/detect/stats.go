package detect

import (
	"math"
	"time"
)

// Entropy thresholds and variance bands are secondary tamper signals:
// individually weak, counted alongside trial diffs before confidence is
// raised.
const (
	// canvasEntropyThreshold: a fixed draw never approaches a uniform
	// byte distribution; above ~7.8 bits noise injection is the likely
	// explanation.
	canvasEntropyThreshold = 7.8

	// Cross-channel difference band that flags a pixel as suspicious and
	// the fraction of opaque pixels above which the buffer is flagged.
	pixelDiffLow         = 30
	pixelDiffHigh        = 200
	pixelSuspectFraction = 0.10

	segmentVarianceTolerance = 0.01  // 1% relative
	segmentMeanTolerance     = 0.001 // 0.1% relative

	renderTimeTolerance = 0.50 // 50% relative wall-clock difference
)

// Entropy returns the Shannon entropy in bits of the observed symbol
// distribution. A single repeated symbol yields 0; n equally-frequent
// distinct symbols yield log2(n).
func Entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}
	n := float64(len(data))
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

// HighEntropy reports whether a raw canvas buffer is implausibly close
// to uniform for a fixed draw.
func HighEntropy(data []byte) (float64, bool) {
	h := Entropy(data)
	return h, h > canvasEntropyThreshold
}

// PixelVarianceReport summarizes cross-channel disagreement over the
// opaque pixels of an RGBA buffer.
type PixelVarianceReport struct {
	OpaquePixels     int
	SuspiciousPixels int
	Fraction         float64
	Flagged          bool
	Confidence       float64
}

// PixelVariance flags buffers where too many opaque pixels carry the
// mid-band channel disagreement characteristic of injected noise.
// Clean flat fills sit near 0; saturated primaries overshoot the band.
func PixelVariance(rgba []byte) PixelVarianceReport {
	var rep PixelVarianceReport
	for i := 0; i+3 < len(rgba); i += 4 {
		if rgba[i+3] != 255 {
			continue
		}
		rep.OpaquePixels++
		r, g, b := int(rgba[i]), int(rgba[i+1]), int(rgba[i+2])
		diff := absInt(r-g) + absInt(g-b) + absInt(b-r)
		if diff >= pixelDiffLow && diff <= pixelDiffHigh {
			rep.SuspiciousPixels++
		}
	}
	if rep.OpaquePixels == 0 {
		return rep
	}
	rep.Fraction = float64(rep.SuspiciousPixels) / float64(rep.OpaquePixels)
	if rep.Fraction > pixelSuspectFraction {
		rep.Flagged = true
		rep.Confidence = math.Min(2*rep.Fraction, 0.95)
	}
	return rep
}

// SegmentStats are per-window audio magnitude statistics.
type SegmentStats struct {
	Sum      float64
	Mean     float64
	Min      float64
	Max      float64
	Variance float64
}

// AnalyzeSegment computes magnitude statistics over one fixed window.
func AnalyzeSegment(samples []float32) SegmentStats {
	var st SegmentStats
	if len(samples) == 0 {
		return st
	}
	st.Min = math.Inf(1)
	st.Max = math.Inf(-1)
	for _, s := range samples {
		m := math.Abs(float64(s))
		st.Sum += m
		st.Min = math.Min(st.Min, m)
		st.Max = math.Max(st.Max, m)
	}
	st.Mean = st.Sum / float64(len(samples))
	for _, s := range samples {
		d := math.Abs(float64(s)) - st.Mean
		st.Variance += d * d
	}
	st.Variance /= float64(len(samples))
	return st
}

// SegmentsMismatch compares the same window across two trials. The
// tolerances absorb nothing: an offline render of fixed math either
// matches exactly or was perturbed.
func SegmentsMismatch(a, b SegmentStats) bool {
	return relDiff(a.Variance, b.Variance) > segmentVarianceTolerance ||
		relDiff(a.Mean, b.Mean) > segmentMeanTolerance
}

// RenderTimeAnomalous reports a large relative wall-clock difference
// between trials. Weak signal: GC pauses explain it too, so it feeds the
// indicator count rather than the dynamic-noise boolean.
func RenderTimeAnomalous(d1, d2 time.Duration) bool {
	a, b := d1.Seconds(), d2.Seconds()
	return relDiff(a, b) > renderTimeTolerance
}

func relDiff(a, b float64) float64 {
	den := math.Max(math.Abs(a), math.Abs(b))
	if den == 0 {
		return 0
	}
	return math.Abs(a-b) / den
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
