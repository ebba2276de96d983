package probe

import (
	"math/rand"
)

// Tamper simulators wrap a clean backend with the two transforms
// anti-fingerprinting extensions apply: per-call random perturbation
// (dynamic noise) and a stable seeded transform (static noise). They
// exist so detection can be demonstrated and tested against a known
// adversary instead of a live browser extension.

// DynamicNoiseCanvas perturbs a random subset of pixels on every render.
type DynamicNoiseCanvas struct {
	Inner Canvas2D
	rng   *rand.Rand
}

func NewDynamicNoiseCanvas(inner Canvas2D, seed int64) *DynamicNoiseCanvas {
	return &DynamicNoiseCanvas{Inner: inner, rng: rand.New(rand.NewSource(seed))}
}

func (c *DynamicNoiseCanvas) Size() (int, int) { return c.Inner.Size() }

func (c *DynamicNoiseCanvas) Render() ([]byte, error) {
	pix, err := c.Inner.Render()
	if err != nil {
		return nil, err
	}
	// ±1 tweaks on ~2% of channels, a fresh pattern per call.
	for i := 0; i < len(pix); i++ {
		if i%4 == 3 {
			continue // leave alpha alone
		}
		if c.rng.Float64() < 0.02 {
			pix[i] = jitter(pix[i], c.rng)
		}
	}
	return pix, nil
}

// StaticNoiseCanvas applies the same heavy per-channel scramble on every
// render: stable across trials, far from any clean baseline. High
// channel disagreement is what the pixel-variance analyzer keys on.
type StaticNoiseCanvas struct {
	Inner Canvas2D
	Seed  int64
}

func (c *StaticNoiseCanvas) Size() (int, int) { return c.Inner.Size() }

func (c *StaticNoiseCanvas) Render() ([]byte, error) {
	pix, err := c.Inner.Render()
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(c.Seed)) // reseeded per render: stable transform
	for i := 0; i < len(pix); i += 4 {
		pix[i] = byte(int(pix[i])+rng.Intn(161)-80) | 1
		pix[i+1] = byte(int(pix[i+1]) + rng.Intn(161) - 80)
		pix[i+2] = byte(int(pix[i+2]) + rng.Intn(161) - 80)
	}
	return pix, nil
}

// DynamicNoiseGL randomizes cube readbacks per call and shifts the
// red-rectangle baseline off the allow-list.
type DynamicNoiseGL struct {
	Inner GL
	rng   *rand.Rand
}

func NewDynamicNoiseGL(inner GL, seed int64) *DynamicNoiseGL {
	return &DynamicNoiseGL{Inner: inner, rng: rand.New(rand.NewSource(seed))}
}

func (g *DynamicNoiseGL) Ready() <-chan struct{} { return g.Inner.Ready() }

func (g *DynamicNoiseGL) RenderRect() ([]byte, error) {
	pix, err := g.Inner.RenderRect()
	if err != nil {
		return nil, err
	}
	return perturb(pix, g.rng, 0.01), nil
}

func (g *DynamicNoiseGL) RenderCube() ([]byte, error) {
	pix, err := g.Inner.RenderCube()
	if err != nil {
		return nil, err
	}
	return perturb(pix, g.rng, 0.01), nil
}

// DynamicNoiseAudio adds a fresh low-amplitude dither to every render.
type DynamicNoiseAudio struct {
	Inner AudioContext
	rng   *rand.Rand
}

func NewDynamicNoiseAudio(inner AudioContext, seed int64) *DynamicNoiseAudio {
	return &DynamicNoiseAudio{Inner: inner, rng: rand.New(rand.NewSource(seed))}
}

func (a *DynamicNoiseAudio) RenderOffline() ([]float32, error) {
	buf, err := a.Inner.RenderOffline()
	if err != nil {
		return nil, err
	}
	for i := range buf {
		buf[i] += float32((a.rng.Float64() - 0.5) * 0.02)
	}
	return buf, nil
}

func perturb(pix []byte, rng *rand.Rand, fraction float64) []byte {
	for i := 0; i < len(pix); i++ {
		if i%4 == 3 {
			continue
		}
		if rng.Float64() < fraction {
			pix[i] = jitter(pix[i], rng)
		}
	}
	return pix
}

func jitter(b byte, rng *rand.Rand) byte {
	if rng.Intn(2) == 0 {
		if b == 255 {
			return 254
		}
		return b + 1
	}
	if b == 0 {
		return 1
	}
	return b - 1
}
