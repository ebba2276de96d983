// argusd is the fingerprint collection and risk-assessment backend.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oschwald/geoip2-golang/v2"

	"argus/internal/cache"
	"argus/internal/config"
	"argus/internal/handlers"
	"argus/internal/middleware"
	"argus/internal/risk"
	"argus/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("config load failed", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		log.Error("store open failed", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Redis is optional; without it rate limiting and the assessment
	// cache are disabled.
	var ca *cache.Cache
	if cfg.RedisAddr != "" {
		ca, err = cache.New(ctx, cfg.RedisAddr, log)
		if err != nil {
			log.Warn("redis unavailable, cache and rate limiting disabled", "addr", cfg.RedisAddr, "error", err)
			ca = nil
		} else {
			defer ca.Close()
		}
	}

	// GeoIP is optional enrichment.
	var geo *geoip2.Reader
	if cfg.GeoIPPath != "" {
		geo, err = geoip2.Open(cfg.GeoIPPath)
		if err != nil {
			log.Warn("geoip database load failed, geo checks disabled", "path", cfg.GeoIPPath, "error", err)
		} else {
			defer geo.Close()
		}
	}

	scorer := risk.NewScorer(geo, cfg.BannedCountries, log)
	h := handlers.New(st, ca, scorer, []byte(cfg.JWTSecret), log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(ca, cfg.RateLimitRPM, log))

	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/fingerprint", h.SubmitFingerprint)
		r.Get("/analysis/{hash}", h.GetAnalysis)
		r.Get("/verdict", h.CheckVerdict)
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("argusd listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server exited")
}
