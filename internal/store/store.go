// Package store persists fingerprints and their risk assessments in
// SQLite. Visit counting is done inside a single upsert statement so
// concurrent submissions of the same hash each count exactly once.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"argus/internal/types"
)

// ErrNotFound is returned when no row exists for a fingerprint hash.
var ErrNotFound = errors.New("store: fingerprint not found")

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint_hash TEXT UNIQUE NOT NULL,
	user_agent TEXT NOT NULL,
	screen_resolution TEXT NOT NULL,
	timezone TEXT NOT NULL,
	language TEXT NOT NULL,
	platform TEXT NOT NULL,
	canvas TEXT NOT NULL,
	canvas_hash TEXT NOT NULL,
	webgl TEXT NOT NULL,
	webgl_hash TEXT NOT NULL,
	audio TEXT NOT NULL,
	audio_hash TEXT NOT NULL,
	fonts TEXT NOT NULL,
	plugins TEXT NOT NULL,
	touch_support BOOLEAN NOT NULL,
	cookie_enabled BOOLEAN NOT NULL,
	do_not_track TEXT NOT NULL,
	ip_address TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS assessments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint_hash TEXT UNIQUE NOT NULL,
	uniqueness_score REAL NOT NULL,
	bot_score REAL NOT NULL,
	risk_level TEXT NOT NULL,
	is_bot BOOLEAN NOT NULL,
	reasons TEXT NOT NULL,
	visit_count INTEGER DEFAULT 1,
	last_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (fingerprint_hash) REFERENCES fingerprints (fingerprint_hash)
);`

// Store wraps the SQLite handle.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the database at path, applies the write-safe
// pragmas and ensures the schema exists.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// OpenMemory opens an in-memory store for testing. MaxOpenConns is
// pinned to 1 because each connection to ":memory:" is a separate
// database. Closing is registered on t.Cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:", slog.Default())
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

// FingerprintRecord is the persisted shape of one submission.
type FingerprintRecord struct {
	FingerprintHash string
	CanvasHash      string
	WebGLHash       string
	AudioHash       string
	IPAddress       string
	Request         *types.SubmissionRequest
}

// SaveFingerprint upserts the raw submission. Repeat submissions of
// the same hash refresh the mutable columns and updated_at.
func (s *Store) SaveFingerprint(ctx context.Context, rec FingerprintRecord) error {
	fonts, err := json.Marshal(rec.Request.Fonts)
	if err != nil {
		return fmt.Errorf("store: marshal fonts: %w", err)
	}
	plugins, err := json.Marshal(rec.Request.Plugins)
	if err != nil {
		return fmt.Errorf("store: marshal plugins: %w", err)
	}

	const query = `
		INSERT INTO fingerprints (
			fingerprint_hash, user_agent, screen_resolution, timezone, language, platform,
			canvas, canvas_hash, webgl, webgl_hash, audio, audio_hash, fonts, plugins,
			touch_support, cookie_enabled, do_not_track, ip_address, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint_hash) DO UPDATE SET
			user_agent = excluded.user_agent,
			screen_resolution = excluded.screen_resolution,
			timezone = excluded.timezone,
			language = excluded.language,
			platform = excluded.platform,
			canvas = excluded.canvas,
			canvas_hash = excluded.canvas_hash,
			webgl = excluded.webgl,
			webgl_hash = excluded.webgl_hash,
			audio = excluded.audio,
			audio_hash = excluded.audio_hash,
			fonts = excluded.fonts,
			plugins = excluded.plugins,
			touch_support = excluded.touch_support,
			cookie_enabled = excluded.cookie_enabled,
			do_not_track = excluded.do_not_track,
			ip_address = excluded.ip_address,
			updated_at = excluded.updated_at`

	now := time.Now().UTC()
	req := rec.Request
	_, err = s.db.ExecContext(ctx, query,
		rec.FingerprintHash, req.UserAgent, req.ScreenResolution, req.Timezone, req.Language, req.Platform,
		req.Canvas, rec.CanvasHash, req.WebGL, rec.WebGLHash, req.Audio, rec.AudioHash,
		string(fonts), string(plugins),
		req.TouchSupport, req.CookieEnabled, req.DoNotTrack, rec.IPAddress, now, now,
	)
	if err != nil {
		return fmt.Errorf("store: save fingerprint: %w", err)
	}
	return nil
}

// UpsertAssessment writes the latest risk verdict for a hash and bumps
// its visit count in the same statement. The stored count and last_seen
// come back from RETURNING so the caller reports what was actually
// committed, even under concurrent submissions.
func (s *Store) UpsertAssessment(ctx context.Context, a *types.Assessment) error {
	reasons, err := json.Marshal(a.Reasons)
	if err != nil {
		return fmt.Errorf("store: marshal reasons: %w", err)
	}

	const query = `
		INSERT INTO assessments (
			fingerprint_hash, uniqueness_score, bot_score, risk_level, is_bot, reasons,
			visit_count, last_seen, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(fingerprint_hash) DO UPDATE SET
			uniqueness_score = excluded.uniqueness_score,
			bot_score = excluded.bot_score,
			risk_level = excluded.risk_level,
			is_bot = excluded.is_bot,
			reasons = excluded.reasons,
			visit_count = assessments.visit_count + 1,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at
		RETURNING visit_count, last_seen`

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, query,
		a.FingerprintHash, a.UniquenessScore, a.BotScore, a.RiskLevel, a.IsBot,
		string(reasons), now, now, now,
	)
	if err := row.Scan(&a.VisitCount, &a.LastSeen); err != nil {
		return fmt.Errorf("store: upsert assessment: %w", err)
	}
	return nil
}

// GetAssessment loads the stored verdict for a hash.
func (s *Store) GetAssessment(ctx context.Context, hash string) (*types.Assessment, error) {
	const query = `
		SELECT fingerprint_hash, uniqueness_score, bot_score, risk_level, is_bot, reasons,
		       visit_count, last_seen
		FROM assessments WHERE fingerprint_hash = ?`

	a := &types.Assessment{}
	var reasons string
	err := s.db.QueryRowContext(ctx, query, hash).Scan(
		&a.FingerprintHash, &a.UniquenessScore, &a.BotScore, &a.RiskLevel,
		&a.IsBot, &reasons, &a.VisitCount, &a.LastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get assessment: %w", err)
	}
	if err := json.Unmarshal([]byte(reasons), &a.Reasons); err != nil {
		s.log.Warn("stored reasons unreadable", "fingerprint", hash, "error", err)
		a.Reasons = []string{}
	}
	return a, nil
}

// CountFingerprints reports the number of distinct stored fingerprints.
func (s *Store) CountFingerprints(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fingerprints").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count fingerprints: %w", err)
	}
	return n, nil
}
