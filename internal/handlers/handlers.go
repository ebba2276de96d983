// Package handlers implements the HTTP API: fingerprint submission,
// assessment lookup and health.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"argus/internal/cache"
	"argus/internal/fingerprint"
	"argus/internal/risk"
	"argus/internal/store"
	"argus/internal/types"
)

var startTime = time.Now()

// Handler owns the submission pipeline dependencies.
type Handler struct {
	store     *store.Store
	cache     *cache.Cache
	scorer    *risk.Scorer
	jwtSecret []byte
	log       *slog.Logger
}

// New wires the handler. cache may be nil.
func New(st *store.Store, ca *cache.Cache, sc *risk.Scorer, jwtSecret []byte, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: st, cache: ca, scorer: sc, jwtSecret: jwtSecret, log: log}
}

// SubmitFingerprint accepts a fingerprint payload, scores it, persists
// it and returns the assessment. Low-risk clients also get a signed
// pass token.
func (h *Handler) SubmitFingerprint(w http.ResponseWriter, r *http.Request) {
	var req types.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("submission decode failed", "remote", r.RemoteAddr, "error", err)
		writeJSON(w, http.StatusBadRequest, types.SubmissionResponse{
			Success: false, Message: "invalid request data: " + err.Error(),
		})
		return
	}
	if msg := validate(&req); msg != "" {
		writeJSON(w, http.StatusBadRequest, types.SubmissionResponse{Success: false, Message: msg})
		return
	}

	// Prefer the client-precomputed composite; fall back to deriving
	// one from the submitted fields.
	hash := req.FingerprintHash
	if hash == "" {
		hash = fingerprint.HashFields(map[string]any{
			"user_agent":        req.UserAgent,
			"screen_resolution": req.ScreenResolution,
			"timezone":          req.Timezone,
			"language":          req.Language,
			"platform":          req.Platform,
			"canvas":            req.Canvas,
			"webgl":             req.WebGL,
			"audio":             req.Audio,
			"fonts":             req.Fonts,
			"plugins":           req.Plugins,
			"touch_support":     req.TouchSupport,
			"cookie_enabled":    req.CookieEnabled,
			"do_not_track":      req.DoNotTrack,
		})
	}

	clientIP := ClientIP(r)
	score := h.scorer.Evaluate(&req, clientIP)

	err := h.store.SaveFingerprint(r.Context(), store.FingerprintRecord{
		FingerprintHash: hash,
		CanvasHash:      fingerprint.HashBytes([]byte(req.Canvas)),
		WebGLHash:       fingerprint.HashBytes([]byte(req.WebGL)),
		AudioHash:       fingerprint.HashBytes([]byte(req.Audio)),
		IPAddress:       clientIP,
		Request:         &req,
	})
	if err != nil {
		h.log.Error("fingerprint save failed", "fingerprint", hash, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.SubmissionResponse{
			Success: false, Message: "failed to process fingerprint",
		})
		return
	}

	assessment := &types.Assessment{
		FingerprintHash: hash,
		UniquenessScore: score.Uniqueness,
		BotScore:        score.BotScore,
		RiskLevel:       score.RiskLevel,
		IsBot:           score.IsBot,
		Reasons:         score.Reasons,
	}
	if err := h.store.UpsertAssessment(r.Context(), assessment); err != nil {
		h.log.Error("assessment save failed", "fingerprint", hash, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.SubmissionResponse{
			Success: false, Message: "failed to process fingerprint",
		})
		return
	}
	h.cache.SetAssessment(r.Context(), assessment)

	resp := types.SubmissionResponse{
		FingerprintHash: hash,
		Analysis:        assessment,
		Success:         true,
	}
	if score.RiskLevel == "LOW" {
		token, err := h.issueToken(hash, clientIP)
		if err != nil {
			h.log.Error("token issue failed", "fingerprint", hash, "error", err)
		} else {
			resp.Token = token
		}
	}

	h.log.Info("fingerprint processed",
		"fingerprint", hash,
		"ip", clientIP,
		"bot_score", score.BotScore,
		"risk_level", score.RiskLevel,
		"visits", assessment.VisitCount)
	writeJSON(w, http.StatusOK, resp)
}

// GetAnalysis returns the stored assessment for a hash, consulting the
// cache first.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if hash == "" {
		writeJSON(w, http.StatusBadRequest, types.AnalysisResponse{
			Success: false, Message: "fingerprint hash is required",
		})
		return
	}

	if a := h.cache.GetAssessment(r.Context(), hash); a != nil {
		writeJSON(w, http.StatusOK, types.AnalysisResponse{Analysis: a, Success: true})
		return
	}

	a, err := h.store.GetAssessment(r.Context(), hash)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, types.AnalysisResponse{
			Success: false, Message: "analysis not found",
		})
		return
	}
	if err != nil {
		h.log.Error("assessment lookup failed", "fingerprint", hash, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.AnalysisResponse{
			Success: false, Message: "failed to get analysis",
		})
		return
	}
	h.cache.SetAssessment(r.Context(), a)
	writeJSON(w, http.StatusOK, types.AnalysisResponse{Analysis: a, Success: true})
}

// HealthResponse is the health-check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Uptime  string `json:"uptime"`
}

// Health reports service status and uptime.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "argus",
		Uptime:  time.Since(startTime).String(),
	})
}

// VerdictResponse reports whether a presented pass token is valid.
type VerdictResponse struct {
	Valid           bool   `json:"valid"`
	FingerprintHash string `json:"fingerprint_hash,omitempty"`
	Message         string `json:"message,omitempty"`
}

// CheckVerdict validates a pass token from the Authorization header
// (Bearer) or the token query parameter.
func (h *Handler) CheckVerdict(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, VerdictResponse{Message: "token is required"})
		return
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		h.log.Info("verdict token rejected", "remote", r.RemoteAddr, "error", err)
		writeJSON(w, http.StatusUnauthorized, VerdictResponse{Message: "invalid token"})
		return
	}

	resp := VerdictResponse{Valid: true}
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if fph, ok := claims["fph"].(string); ok {
			resp.FingerprintHash = fph
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// issueToken signs a short-lived pass for a low-risk fingerprint.
func (h *Handler) issueToken(hash, clientIP string) (string, error) {
	if len(h.jwtSecret) == 0 {
		return "", errors.New("handlers: jwt secret not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"fph": hash,
		"ip":  clientIP,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(h.jwtSecret)
}

// validate rejects submissions missing the mandatory static fields.
func validate(req *types.SubmissionRequest) string {
	missing := []string{}
	for _, f := range []struct{ name, val string }{
		{"user_agent", req.UserAgent},
		{"screen_resolution", req.ScreenResolution},
		{"timezone", req.Timezone},
		{"language", req.Language},
		{"platform", req.Platform},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return ""
}

// ClientIP resolves the submitting client's address, trusting proxy
// headers in the usual precedence.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
