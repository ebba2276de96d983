// argusprobe runs one local collection session against the built-in
// software render backends and submits the result to an argusd server.
// The -tamper flag wraps the backends in noise simulators so detection
// can be exercised end to end.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"argus/internal/collector"
	"argus/internal/config"
	"argus/internal/detect"
	"argus/internal/probe"
	"argus/internal/types"
)

func main() {
	var (
		server     = flag.String("server", "http://localhost:8080", "argusd base URL")
		configPath = flag.String("config", "", "path to YAML config (optional)")
		tamper     = flag.String("tamper", "none", "simulated interference: none, dynamic or static")
		dryRun     = flag.Bool("dry-run", false, "collect and print without submitting")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
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

	backends, err := buildBackends(*tamper)
	if err != nil {
		log.Error("backend setup failed", "error", err)
		os.Exit(1)
	}

	col, err := collector.New(backends, collector.EnvStatic{}, collector.Options{
		Deadline:     cfg.ProbeDeadline(),
		Settle:       time.Duration(cfg.Probe.SettleMillis) * time.Millisecond,
		AudioStagger: time.Duration(cfg.Probe.AudioStaggerMillis) * time.Millisecond,
		Allowlist:    cfg.Probe.WebGLAllowlist,
		Logger:       log,
	})
	if err != nil {
		log.Error("collector setup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := col.Run(ctx)
	if err != nil {
		log.Error("collection failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("session     %s\n", result.SessionID)
	fmt.Printf("fingerprint %s\n", result.Composite.Main)
	printVerdict("canvas", result.Canvas.Verdict)
	printVerdict("webgl", result.WebGL.Verdict)
	printVerdict("audio", result.Audio.Verdict)

	if *dryRun {
		return
	}

	resp, err := submit(ctx, *server, result.Submission())
	if err != nil {
		log.Error("submission failed", "server", *server, "error", err)
		os.Exit(1)
	}
	fmt.Printf("server verdict: risk=%s bot_score=%.2f visits=%d\n",
		resp.Analysis.RiskLevel, resp.Analysis.BotScore, resp.Analysis.VisitCount)
	if resp.Token != "" {
		fmt.Printf("pass token: %s\n", resp.Token)
	}
}

func buildBackends(tamper string) (collector.Backends, error) {
	b := collector.Backends{
		Canvas: probe.NewSoftCanvas(),
		GL:     probe.NewSoftGL(),
		Audio:  probe.NewSoftAudio(),
	}
	seed := time.Now().UnixNano()
	switch tamper {
	case "none":
	case "dynamic":
		b.Canvas = probe.NewDynamicNoiseCanvas(b.Canvas, seed)
		b.GL = probe.NewDynamicNoiseGL(b.GL, seed)
		b.Audio = probe.NewDynamicNoiseAudio(b.Audio, seed)
	case "static":
		b.Canvas = &probe.StaticNoiseCanvas{Inner: b.Canvas, Seed: seed}
	default:
		return collector.Backends{}, fmt.Errorf("unknown tamper mode %q", tamper)
	}
	return b, nil
}

func printVerdict(name string, v detect.Verdict) {
	switch {
	case !v.Supported:
		fmt.Printf("%-7s unsupported\n", name)
	case v.Err != "":
		fmt.Printf("%-7s error: %s\n", name, v.Err)
	case v.Spoofed:
		fmt.Printf("%-7s SPOOFED (confidence %.2f) %s\n", name, v.Confidence, v.Details)
	default:
		fmt.Printf("%-7s clean (confidence %.2f)\n", name, v.Confidence)
	}
}

func submit(ctx context.Context, server string, payload *types.SubmissionRequest) (*types.SubmissionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/fingerprint", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var resp types.SubmissionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("server rejected submission: %s", resp.Message)
	}
	if resp.Analysis == nil {
		return nil, fmt.Errorf("server returned no analysis")
	}
	return &resp, nil
}
