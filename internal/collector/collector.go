// Package collector runs one fingerprint collection session: all four
// top-level tasks (canvas, webgl, audio, static attributes) are issued
// together and joined, each absorbing its own failures so one
// modality's breakage never aborts the others.
package collector

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"argus/internal/detect"
	"argus/internal/fingerprint"
	"argus/internal/probe"
	"argus/internal/types"
)

// Backends are the injectable render surfaces for one session. A nil
// backend means the capability is absent and its modality is reported
// unsupported. Each session gets freshly constructed backends so no
// drawing state leaks between sessions.
type Backends struct {
	Canvas probe.Canvas2D
	GL     probe.GL
	Audio  probe.AudioContext
}

// Options tune one session.
type Options struct {
	// Deadline bounds each modality's probe; expiry resolves to an
	// explicit timeout verdict instead of stalling the session.
	Deadline time.Duration
	// Settle is the pre-readback delay for backends without a
	// completion fence.
	Settle time.Duration
	// AudioStagger separates the two offline audio renders.
	AudioStagger time.Duration
	// Allowlist holds the known-good red-rectangle hashes. Empty means
	// derive a single entry from a pristine reference renderer. The list
	// is deliberately narrow: unlisted-but-legitimate hardware is an
	// expected false positive treated as low-certainty evidence.
	Allowlist []string
	Logger    *slog.Logger
}

// ModalityResult carries one modality's verdict plus the material the
// aggregator and submission need.
type ModalityResult struct {
	Verdict detect.Verdict
	Payload string
	Hash    string
}

// Result is a finished collection session.
type Result struct {
	SessionID string
	Canvas    ModalityResult
	WebGL     ModalityResult
	Audio     ModalityResult
	Static    StaticAttributes
	StaticErr string
	Composite fingerprint.Composite
}

// Collector orchestrates probes, detectors and aggregation for one
// session.
type Collector struct {
	backends Backends
	static   StaticProvider
	opts     Options
	log      *slog.Logger
}

// New validates the options and constructs a session collector.
func New(b Backends, static StaticProvider, opts Options) (*Collector, error) {
	if static == nil {
		return nil, fmt.Errorf("collector: static provider is required")
	}
	if opts.Deadline <= 0 {
		opts.Deadline = 5 * time.Second
	}
	if opts.AudioStagger <= 0 {
		opts.AudioStagger = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.Allowlist) == 0 && b.GL != nil {
		ref, err := probe.NewSoftGL().RenderRect()
		if err != nil {
			return nil, fmt.Errorf("collector: derive reference allowlist: %w", err)
		}
		opts.Allowlist = []string{fingerprint.HashBytes(ref)}
	}
	return &Collector{backends: b, static: static, opts: opts, log: opts.Logger}, nil
}

// Run executes the session. The error return covers only catastrophic
// initialization problems; per-modality failures are encoded in the
// verdicts.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	res := &Result{SessionID: uuid.NewString()}

	type task struct {
		name string
		fn   func(context.Context)
	}
	tasks := []task{
		{"canvas", func(tctx context.Context) { res.Canvas = c.runCanvas(tctx) }},
		{"webgl", func(tctx context.Context) { res.WebGL = c.runWebGL(tctx) }},
		{"audio", func(tctx context.Context) { res.Audio = c.runAudio(tctx) }},
		{"static", func(tctx context.Context) {
			attrs, err := c.static.Collect()
			if err != nil {
				res.StaticErr = err.Error()
				return
			}
			res.Static = attrs
		}},
	}

	done := make(chan struct{}, len(tasks))
	for _, t := range tasks {
		t := t
		go func() {
			defer func() { done <- struct{}{} }()
			tctx, cancel := context.WithTimeout(ctx, c.opts.Deadline)
			defer cancel()
			t.fn(tctx)
		}()
	}
	for range tasks {
		<-done
	}

	res.Composite = fingerprint.Compose(map[string]string{
		"canvas": res.Canvas.Hash,
		"webgl":  res.WebGL.Hash,
		"audio":  res.Audio.Hash,
		"static": fingerprint.HashBytes([]byte(res.Static.CanonicalString())),
	})

	c.log.Info("collection session complete",
		"session_id", res.SessionID,
		"fingerprint", res.Composite.Main,
		"canvas_spoofed", res.Canvas.Verdict.Spoofed,
		"webgl_spoofed", res.WebGL.Verdict.Spoofed,
		"audio_spoofed", res.Audio.Verdict.Spoofed)
	return res, nil
}

// runCanvas renders the same pattern twice on one surface, trials
// strictly sequential, and classifies the pair.
func (c *Collector) runCanvas(ctx context.Context) (out ModalityResult) {
	defer absorb(probe.ModalityCanvas, &out)

	if c.backends.Canvas == nil {
		out.Verdict = detect.Unsupported(probe.ModalityCanvas)
		return out
	}

	t1, err := c.timedRender(ctx, probe.ModalityCanvas, 1, c.backends.Canvas.Render)
	if err != nil {
		out.Verdict = detect.Failed(probe.ModalityCanvas, err)
		return out
	}
	c.settle(ctx)
	t2, err := c.timedRender(ctx, probe.ModalityCanvas, 2, c.backends.Canvas.Render)
	if err != nil {
		out.Verdict = detect.Failed(probe.ModalityCanvas, err)
		return out
	}

	rep := detect.CompareTrials(t1.Data, t2.Data)
	out.Verdict = detect.ClassifyCanvas(rep, t2.Data)
	out.Hash = fingerprint.HashBytes(t1.Data)

	w, h := c.backends.Canvas.Size()
	png, err := probe.EncodePNG(t1.Data, w, h)
	if err != nil {
		out.Verdict = detect.Failed(probe.ModalityCanvas, err)
		return out
	}
	out.Payload = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return out
}

// runWebGL runs the persistent baseline probe (two local rect renders,
// allow-list membership) and the two-phase dynamic cube probe (second
// render gated on the load milestone).
func (c *Collector) runWebGL(ctx context.Context) (out ModalityResult) {
	defer absorb(probe.ModalityWebGL, &out)

	gl := c.backends.GL
	if gl == nil {
		out.Verdict = detect.Unsupported(probe.ModalityWebGL)
		return out
	}

	rect1, err := c.timedRender(ctx, probe.ModalityWebGL, 1, gl.RenderRect)
	if err != nil {
		out.Verdict = detect.Failed(probe.ModalityWebGL, err)
		return out
	}
	rect2, err := c.timedRender(ctx, probe.ModalityWebGL, 2, gl.RenderRect)
	if err != nil {
		out.Verdict = detect.Failed(probe.ModalityWebGL, err)
		return out
	}

	before, err := c.timedRender(ctx, probe.ModalityWebGL, 3, gl.RenderCube)
	if err != nil {
		out.Verdict = detect.Failed(probe.ModalityWebGL, err)
		return out
	}

	select {
	case <-gl.Ready():
	case <-ctx.Done():
		out.Verdict = detect.Failed(probe.ModalityWebGL, fmt.Errorf("timeout waiting for load milestone"))
		return out
	}
	after, err := c.timedRender(ctx, probe.ModalityWebGL, 4, gl.RenderCube)
	if err != nil {
		out.Verdict = detect.Failed(probe.ModalityWebGL, err)
		return out
	}

	rectHash := fingerprint.HashBytes(rect1.Data)
	out.Verdict = detect.ClassifyWebGL(detect.WebGLEvidence{
		RectHash:   rectHash,
		Allowlist:  c.opts.Allowlist,
		CubeBefore: fingerprint.HashBytes(before.Data),
		CubeAfter:  fingerprint.HashBytes(after.Data),
		RectStable: detect.CompareTrials(rect1.Data, rect2.Data).Consistent,
	})
	out.Hash = fingerprint.HashBytes(append(rect1.Data, before.Data...))
	out.Payload = "rect=" + rectHash + ";cube=" + fingerprint.HashBytes(before.Data)
	return out
}

// runAudio performs two full offline renders separated by the stagger
// and compares the main fingerprint plus each fixed window.
func (c *Collector) runAudio(ctx context.Context) (out ModalityResult) {
	defer absorb(probe.ModalityAudio, &out)

	audio := c.backends.Audio
	if audio == nil {
		out.Verdict = detect.Unsupported(probe.ModalityAudio)
		return out
	}

	buf1, d1, err := c.timedAudio(ctx, audio)
	if err != nil {
		out.Verdict = detect.Failed(probe.ModalityAudio, err)
		return out
	}
	if !sleepCtx(ctx, c.opts.AudioStagger) {
		out.Verdict = detect.Failed(probe.ModalityAudio, ctx.Err())
		return out
	}
	buf2, d2, err := c.timedAudio(ctx, audio)
	if err != nil {
		out.Verdict = detect.Failed(probe.ModalityAudio, err)
		return out
	}

	out.Verdict = detect.ClassifyAudio(audioTrial(buf1, d1), audioTrial(buf2, d2))
	out.Hash = fingerprint.HashBytes(probe.AudioBytes(buf1))
	out.Payload = probe.AudioFingerprint(buf1)
	return out
}

func audioTrial(buf []float32, d time.Duration) detect.AudioTrial {
	t := detect.AudioTrial{Fingerprint: probe.AudioFingerprint(buf), Duration: d}
	for i, w := range probe.ExtractWindows(buf) {
		t.Segments[i] = detect.AnalyzeSegment(w)
	}
	return t
}

// timedRender runs one render under the task context, resolving a
// deadline expiry to an explicit error rather than blocking.
func (c *Collector) timedRender(ctx context.Context, m probe.Modality, trial int, render func() ([]byte, error)) (probe.Sample, error) {
	type res struct {
		data []byte
		err  error
	}
	ch := make(chan res, 1)
	start := time.Now()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- res{nil, fmt.Errorf("render panic: %v", p)}
			}
		}()
		data, err := render()
		ch <- res{data, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return probe.Sample{}, r.err
		}
		return probe.Sample{
			Modality: m,
			Trial:    trial,
			Data:     r.data,
			Duration: time.Since(start),
			Taken:    time.Now(),
		}, nil
	case <-ctx.Done():
		return probe.Sample{}, fmt.Errorf("timeout: %w", ctx.Err())
	}
}

func (c *Collector) timedAudio(ctx context.Context, audio probe.AudioContext) ([]float32, time.Duration, error) {
	type res struct {
		buf []float32
		err error
	}
	ch := make(chan res, 1)
	start := time.Now()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- res{nil, fmt.Errorf("render panic: %v", p)}
			}
		}()
		buf, err := audio.RenderOffline()
		ch <- res{buf, err}
	}()
	select {
	case r := <-ch:
		return r.buf, time.Since(start), r.err
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("timeout: %w", ctx.Err())
	}
}

func (c *Collector) settle(ctx context.Context) {
	if c.opts.Settle > 0 {
		sleepCtx(ctx, c.opts.Settle)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// absorb catches panics out of analysis code at the modality boundary,
// encoding them as zero-confidence verdicts.
func absorb(m probe.Modality, out *ModalityResult) {
	if r := recover(); r != nil {
		out.Verdict = detect.Failed(m, fmt.Errorf("analysis panic: %v", r))
		out.Payload = ""
		out.Hash = ""
	}
}

// Submission converts a finished session to the wire payload.
func (r *Result) Submission() *types.SubmissionRequest {
	return &types.SubmissionRequest{
		FingerprintHash:      r.Composite.Main,
		UserAgent:            r.Static.UserAgent,
		ScreenResolution:     r.Static.ScreenResolution,
		Timezone:             r.Static.Timezone,
		Language:             r.Static.Language,
		Platform:             r.Static.Platform,
		Canvas:               r.Canvas.Payload,
		WebGL:                r.WebGL.Payload,
		Audio:                r.Audio.Payload,
		Fonts:                r.Static.Fonts,
		Plugins:              r.Static.Plugins,
		TouchSupport:         r.Static.TouchSupport,
		CookieEnabled:        r.Static.CookieEnabled,
		DoNotTrack:           r.Static.DoNotTrack,
		CanvasNoiseDetection: r.Canvas.Verdict.Detection(),
		WebGLNoiseDetection:  r.WebGL.Verdict.Detection(),
		AudioNoiseDetection:  r.Audio.Verdict.Detection(),
	}
}
