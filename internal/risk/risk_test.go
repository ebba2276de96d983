package risk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/types"
)

func legitimateSubmission() *types.SubmissionRequest {
	return &types.SubmissionRequest{
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		ScreenResolution: "1920x1080",
		Timezone:         "UTC",
		Language:         "en-US",
		Platform:         "Linux x86_64",
		Canvas:           strings.Repeat("a", 500),
		WebGL:            "rect=abc;cube=def",
		Audio:            "124.04347527516074",
		Fonts:            []string{"Arial", "Verdana", "Georgia", "Tahoma", "Courier New"},
		Plugins:          []string{"pdf-viewer"},
		CookieEnabled:    true,
	}
}

func TestEvaluateLegitimateUser(t *testing.T) {
	s := NewScorer(nil, nil, nil)
	score := s.Evaluate(legitimateSubmission(), "203.0.113.9")

	assert.InDelta(t, 1.0, score.Uniqueness, 1e-9)
	assert.Equal(t, 0.0, score.BotScore)
	assert.Equal(t, "LOW", score.RiskLevel)
	assert.False(t, score.IsBot)
	assert.Contains(t, score.Reasons, "High uniqueness score - likely legitimate user")
}

func TestEvaluateHeadlessShortCanvas(t *testing.T) {
	req := legitimateSubmission()
	req.UserAgent = "Mozilla/5.0 HeadlessChrome/120.0"
	req.Canvas = strings.Repeat("a", 50)

	s := NewScorer(nil, nil, nil)
	score := s.Evaluate(req, "")

	// Bot keyword (0.3) plus short canvas (0.2).
	assert.GreaterOrEqual(t, score.BotScore, 0.5)
	assert.NotEqual(t, "LOW", score.RiskLevel)
	assert.Contains(t, score.Reasons, "User Agent contains bot keyword: headless")
	assert.Contains(t, score.Reasons, "Canvas fingerprint too short")
}

func TestEvaluateBotScoreClamped(t *testing.T) {
	req := &types.SubmissionRequest{
		UserAgent:        "python-requests scraper bot",
		ScreenResolution: "",
		Canvas:           "",
		WebGL:            "",
		CanvasNoiseDetection: &types.NoiseDetection{
			HasNoise: true, Type: "random_noise", Confidence: 0.9,
		},
		WebGLNoiseDetection: &types.NoiseDetection{
			HasNoise: true, Type: "webgl_random_noise", Confidence: 0.9,
		},
	}

	s := NewScorer(nil, nil, nil)
	score := s.Evaluate(req, "")

	assert.Equal(t, 1.0, score.BotScore)
	assert.Equal(t, "HIGH", score.RiskLevel)
	assert.True(t, score.IsBot)
}

func TestNoiseContributionsWeightedByConfidence(t *testing.T) {
	base := legitimateSubmission()
	s := NewScorer(nil, nil, nil)
	clean := s.Evaluate(base, "").BotScore

	noisy := legitimateSubmission()
	noisy.CanvasNoiseDetection = &types.NoiseDetection{
		HasNoise: true, Type: "random_noise", Confidence: 0.9,
	}
	score := s.Evaluate(noisy, "")
	assert.InDelta(t, clean+0.4*0.9, score.BotScore, 1e-9)
	assert.Contains(t, score.Reasons, "Canvas random noise detected")

	// Zero-confidence error verdicts never claim noise, so they must
	// not move the score.
	errored := legitimateSubmission()
	errored.AudioNoiseDetection = &types.NoiseDetection{HasNoise: false, Confidence: 0}
	assert.Equal(t, clean, s.Evaluate(errored, "").BotScore)
}

func TestNoiseContributionWeights(t *testing.T) {
	s := NewScorer(nil, nil, nil)
	clean := s.Evaluate(legitimateSubmission(), "").BotScore

	cases := []struct {
		name   string
		apply  func(*types.SubmissionRequest)
		weight float64
	}{
		{"canvas pixel", func(r *types.SubmissionRequest) {
			r.CanvasNoiseDetection = &types.NoiseDetection{HasNoise: true, Type: "pixel_noise", Confidence: 0.5}
		}, 0.3},
		{"canvas entropy", func(r *types.SubmissionRequest) {
			r.CanvasNoiseDetection = &types.NoiseDetection{HasNoise: true, Type: "high_entropy", Confidence: 0.5}
		}, 0.2},
		{"webgl parameter", func(r *types.SubmissionRequest) {
			r.WebGLNoiseDetection = &types.NoiseDetection{HasNoise: true, Type: "webgl_parameter_anomaly", Confidence: 0.5}
		}, 0.3},
		{"audio", func(r *types.SubmissionRequest) {
			r.AudioNoiseDetection = &types.NoiseDetection{HasNoise: true, Type: "audio_anomaly", Confidence: 0.5}
		}, 0.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := legitimateSubmission()
			tc.apply(req)
			got := s.Evaluate(req, "").BotScore
			assert.InDelta(t, clean+tc.weight*0.5, got, 1e-9)
		})
	}
}

func TestMobileWithoutTouch(t *testing.T) {
	req := legitimateSubmission()
	req.UserAgent = "Mozilla/5.0 (Linux; Android 14) Mobile Safari"
	req.TouchSupport = false

	s := NewScorer(nil, nil, nil)
	score := s.Evaluate(req, "")
	assert.InDelta(t, 0.1, score.BotScore, 1e-9)
}

func TestUniquenessWeights(t *testing.T) {
	s := NewScorer(nil, nil, nil)

	empty := &types.SubmissionRequest{}
	assert.Equal(t, 0.0, s.Evaluate(empty, "").Uniqueness)

	partial := &types.SubmissionRequest{
		UserAgent: "ua",
		Canvas:    strings.Repeat("a", 200),
		Fonts:     []string{"Arial", "Verdana", "Georgia", "Tahoma", "Courier New"},
	}
	score := s.Evaluate(partial, "")
	require.InDelta(t, 0.55, score.Uniqueness, 1e-9)
}

func TestRiskLevelBoundaries(t *testing.T) {
	assert.Equal(t, "LOW", riskLevel(0.4))
	assert.Equal(t, "MEDIUM", riskLevel(0.41))
	assert.Equal(t, "MEDIUM", riskLevel(0.7))
	assert.Equal(t, "HIGH", riskLevel(0.71))
}
