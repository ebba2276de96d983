package types

import "time"

// NoiseDetection is the per-modality tamper summary carried on the wire.
// Type values the backend understands: random_noise, pixel_noise,
// high_entropy (canvas); webgl_random_noise, webgl_parameter_anomaly
// (webgl); audio_anomaly (audio).
type NoiseDetection struct {
	HasNoise   bool    `json:"hasNoise"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Details    string  `json:"details,omitempty"`
}

// SubmissionRequest is the fingerprint payload a client submits.
// FingerprintHash is the client-precomputed composite; when empty the
// backend derives one from the static fields.
type SubmissionRequest struct {
	FingerprintHash      string          `json:"fingerprint_hash,omitempty"`
	UserAgent            string          `json:"user_agent"`
	ScreenResolution     string          `json:"screen_resolution"`
	Timezone             string          `json:"timezone"`
	Language             string          `json:"language"`
	Platform             string          `json:"platform"`
	Canvas               string          `json:"canvas"`
	WebGL                string          `json:"webgl"`
	Audio                string          `json:"audio"`
	Fonts                []string        `json:"fonts"`
	Plugins              []string        `json:"plugins"`
	TouchSupport         bool            `json:"touch_support"`
	CookieEnabled        bool            `json:"cookie_enabled"`
	DoNotTrack           string          `json:"do_not_track"`
	CanvasNoiseDetection *NoiseDetection `json:"canvasNoiseDetection,omitempty"`
	WebGLNoiseDetection  *NoiseDetection `json:"webglNoiseDetection,omitempty"`
	AudioNoiseDetection  *NoiseDetection `json:"audioNoiseDetection,omitempty"`
}

// Assessment is the server-side risk verdict for one fingerprint hash.
type Assessment struct {
	FingerprintHash string    `json:"fingerprint_hash"`
	UniquenessScore float64   `json:"uniqueness_score"`
	BotScore        float64   `json:"bot_score"`
	RiskLevel       string    `json:"risk_level"` // LOW, MEDIUM, HIGH
	IsBot           bool      `json:"is_bot"`
	Reasons         []string  `json:"reasons"`
	VisitCount      int       `json:"visit_count"`
	LastSeen        time.Time `json:"last_seen"`
}

// SubmissionResponse is returned for every accepted submission.
type SubmissionResponse struct {
	FingerprintHash string      `json:"fingerprint_hash"`
	Analysis        *Assessment `json:"analysis,omitempty"`
	Token           string      `json:"token,omitempty"`
	Success         bool        `json:"success"`
	Message         string      `json:"message,omitempty"`
}

// AnalysisResponse wraps an assessment lookup by hash.
type AnalysisResponse struct {
	Analysis *Assessment `json:"analysis"`
	Success  bool        `json:"success"`
	Message  string      `json:"message,omitempty"`
}
