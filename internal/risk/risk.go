// Package risk scores submitted fingerprints. The scorer is pure over
// its inputs: the same submission always produces the same uniqueness
// score, bot score and reasons, so scoring can be cached per hash.
package risk

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/oschwald/geoip2-golang/v2"

	"argus/internal/types"
)

// botKeywords are substring-matched against a lowercased user agent.
// One hit is enough; further keywords do not compound.
var botKeywords = []string{"bot", "crawler", "spider", "scraper", "headless", "phantom", "selenium"}

// Score is a computed risk verdict, before the store attaches the
// visit count.
type Score struct {
	Uniqueness float64
	BotScore   float64
	RiskLevel  string
	IsBot      bool
	Reasons    []string
}

// Scorer evaluates submissions. A nil geo reader disables geo checks;
// every other signal still applies.
type Scorer struct {
	geo    *geoip2.Reader
	banned []string
	log    *slog.Logger
}

// NewScorer builds a scorer. geo may be nil. banned is the ISO country
// code deny list used when geo enrichment is available.
func NewScorer(geo *geoip2.Reader, banned []string, log *slog.Logger) *Scorer {
	if log == nil {
		log = slog.Default()
	}
	return &Scorer{geo: geo, banned: banned, log: log}
}

// Evaluate scores one submission. clientIP feeds the optional geo
// check and may be empty.
func (s *Scorer) Evaluate(req *types.SubmissionRequest, clientIP string) Score {
	uniq := uniquenessScore(req)
	bot := botScore(req)
	reasons := baseReasons(req)

	bot, reasons = applyNoise(req, bot, reasons)
	bot, reasons = s.applyGeo(clientIP, bot, reasons)

	bot = clamp01(bot)
	if bot < 0.3 && uniq > 0.8 {
		reasons = append(reasons, "High uniqueness score - likely legitimate user")
	}

	return Score{
		Uniqueness: uniq,
		BotScore:   bot,
		RiskLevel:  riskLevel(bot),
		IsBot:      bot > 0.7,
		Reasons:    reasons,
	}
}

// uniquenessScore sums fixed per-attribute weights for each populated
// entropy source. Weights total 1.0.
func uniquenessScore(req *types.SubmissionRequest) float64 {
	score := 0.0
	if req.UserAgent != "" {
		score += 0.10
	}
	if req.Canvas != "" {
		score += 0.30
	}
	if req.WebGL != "" {
		score += 0.20
	}
	if req.Audio != "" {
		score += 0.15
	}
	if len(req.Fonts) > 0 {
		score += 0.15
	}
	if len(req.Plugins) > 0 {
		score += 0.10
	}
	return score
}

func botScore(req *types.SubmissionRequest) float64 {
	score := 0.0
	ua := strings.ToLower(req.UserAgent)

	for _, kw := range botKeywords {
		if strings.Contains(ua, kw) {
			score += 0.3
			break
		}
	}
	if !req.TouchSupport && strings.Contains(ua, "mobile") {
		score += 0.1
	}
	if len(req.Canvas) < 100 || len(req.Canvas) > 10000 {
		score += 0.2
	}
	if req.WebGL == "" || req.WebGL == "undefined" {
		score += 0.15
	}
	if len(req.Fonts) < 5 || len(req.Fonts) > 200 {
		score += 0.1
	}
	if len(req.Plugins) == 0 || len(req.Plugins) > 50 {
		score += 0.1
	}
	if req.ScreenResolution == "0x0" || req.ScreenResolution == "" {
		score += 0.15
	}
	return clamp01(score)
}

// applyNoise folds the client-side tamper verdicts in, each weighted by
// its reported confidence. Detections with hasNoise=false (including
// error-tagged zero-confidence ones) contribute nothing.
func applyNoise(req *types.SubmissionRequest, score float64, reasons []string) (float64, []string) {
	if d := req.CanvasNoiseDetection; d != nil && d.HasNoise {
		switch d.Type {
		case "random_noise":
			score += 0.4 * d.Confidence
			reasons = append(reasons, "Canvas random noise detected")
		case "pixel_noise":
			score += 0.3 * d.Confidence
			reasons = append(reasons, "Canvas pixel-level noise detected")
		case "high_entropy":
			score += 0.2 * d.Confidence
			reasons = append(reasons, "Canvas high entropy indicating possible noise injection")
		default:
			reasons = append(reasons, fmt.Sprintf("Canvas noise detected: %s", d.Type))
		}
	}
	if d := req.WebGLNoiseDetection; d != nil && d.HasNoise {
		switch d.Type {
		case "webgl_random_noise":
			score += 0.4 * d.Confidence
			reasons = append(reasons, "WebGL rendering inconsistency detected")
		case "webgl_parameter_anomaly":
			score += 0.3 * d.Confidence
			reasons = append(reasons, "WebGL parameter anomaly detected")
		default:
			reasons = append(reasons, fmt.Sprintf("WebGL noise detected: %s", d.Type))
		}
	}
	if d := req.AudioNoiseDetection; d != nil && d.HasNoise {
		switch d.Type {
		case "audio_anomaly":
			score += 0.2 * d.Confidence
			reasons = append(reasons, "Audio fingerprint anomaly detected")
		default:
			reasons = append(reasons, fmt.Sprintf("Audio noise detected: %s", d.Type))
		}
	}
	return score, reasons
}

// applyGeo bumps the score for traffic from a denied country. Lookup
// failures are logged and skipped; geo is enrichment, never a gate.
func (s *Scorer) applyGeo(clientIP string, score float64, reasons []string) (float64, []string) {
	if s.geo == nil || clientIP == "" || len(s.banned) == 0 {
		return score, reasons
	}
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		s.log.Debug("geo check skipped, unparseable IP", "ip", clientIP, "error", err)
		return score, reasons
	}
	record, err := s.geo.City(addr)
	if err != nil {
		s.log.Debug("geo lookup failed", "ip", clientIP, "error", err)
		return score, reasons
	}
	code := record.Country.ISOCode
	for _, b := range s.banned {
		if code == b {
			score += 0.2
			reasons = append(reasons, fmt.Sprintf("Request originates from denied region: %s", code))
			break
		}
	}
	return score, reasons
}

func baseReasons(req *types.SubmissionRequest) []string {
	var reasons []string
	ua := strings.ToLower(req.UserAgent)
	for _, kw := range botKeywords {
		if strings.Contains(ua, kw) {
			reasons = append(reasons, fmt.Sprintf("User Agent contains bot keyword: %s", kw))
			break
		}
	}
	if len(req.Canvas) < 100 {
		reasons = append(reasons, "Canvas fingerprint too short")
	}
	if len(req.Canvas) > 10000 {
		reasons = append(reasons, "Canvas fingerprint too long (possible noise injection)")
	}
	if req.WebGL == "" || req.WebGL == "undefined" {
		reasons = append(reasons, "WebGL not supported or disabled")
	}
	if len(req.Fonts) < 5 {
		reasons = append(reasons, "Too few fonts detected")
	}
	if len(req.Fonts) > 200 {
		reasons = append(reasons, "Too many fonts detected")
	}
	if len(req.Plugins) == 0 {
		reasons = append(reasons, "No plugins detected")
	}
	if req.ScreenResolution == "0x0" || req.ScreenResolution == "" {
		reasons = append(reasons, "Invalid screen resolution")
	}
	return reasons
}

func riskLevel(bot float64) string {
	switch {
	case bot > 0.7:
		return "HIGH"
	case bot > 0.4:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
