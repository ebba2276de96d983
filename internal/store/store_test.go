package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/types"
)

func sampleRecord(hash string) FingerprintRecord {
	return FingerprintRecord{
		FingerprintHash: hash,
		CanvasHash:      "ch",
		WebGLHash:       "wh",
		AudioHash:       "ah",
		IPAddress:       "203.0.113.9",
		Request: &types.SubmissionRequest{
			UserAgent:        "Mozilla/5.0",
			ScreenResolution: "1920x1080",
			Timezone:         "UTC",
			Language:         "en-US",
			Platform:         "Linux",
			Canvas:           "canvas-data",
			WebGL:            "webgl-data",
			Audio:            "124.04347527516074",
			Fonts:            []string{"Arial", "Verdana"},
			Plugins:          []string{"pdf-viewer"},
			CookieEnabled:    true,
			DoNotTrack:       "unspecified",
		},
	}
}

func sampleAssessment(hash string) *types.Assessment {
	return &types.Assessment{
		FingerprintHash: hash,
		UniquenessScore: 0.85,
		BotScore:        0.1,
		RiskLevel:       "LOW",
		IsBot:           false,
		Reasons:         []string{"High uniqueness score - likely legitimate user"},
	}
}

func TestSaveFingerprintIdempotent(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	rec := sampleRecord("hash-1")
	require.NoError(t, s.SaveFingerprint(ctx, rec))
	require.NoError(t, s.SaveFingerprint(ctx, rec))

	n, err := s.CountFingerprints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "repeat submission must not create a second row")
}

func TestUpsertAssessmentCountsVisits(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFingerprint(ctx, sampleRecord("hash-2")))

	a := sampleAssessment("hash-2")
	require.NoError(t, s.UpsertAssessment(ctx, a))
	assert.Equal(t, 1, a.VisitCount)
	first := a.LastSeen

	b := sampleAssessment("hash-2")
	b.BotScore = 0.2
	require.NoError(t, s.UpsertAssessment(ctx, b))
	assert.Equal(t, 2, b.VisitCount, "revisit must bump the count exactly once")
	assert.False(t, b.LastSeen.Before(first))

	got, err := s.GetAssessment(ctx, "hash-2")
	require.NoError(t, err)
	assert.Equal(t, 2, got.VisitCount)
	assert.InDelta(t, 0.2, got.BotScore, 1e-9)
}

func TestGetAssessmentRoundtrip(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFingerprint(ctx, sampleRecord("hash-3")))
	a := sampleAssessment("hash-3")
	a.Reasons = []string{"No plugins detected", "Too few fonts detected"}
	require.NoError(t, s.UpsertAssessment(ctx, a))

	got, err := s.GetAssessment(ctx, "hash-3")
	require.NoError(t, err)
	assert.Equal(t, "hash-3", got.FingerprintHash)
	assert.Equal(t, "LOW", got.RiskLevel)
	assert.Equal(t, []string{"No plugins detected", "Too few fonts detected"}, got.Reasons)
	assert.WithinDuration(t, time.Now(), got.LastSeen, time.Minute)
}

func TestGetAssessmentNotFound(t *testing.T) {
	s := OpenMemory(t)
	_, err := s.GetAssessment(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}
