package probe

import (
	"math"
	"sort"
)

const (
	rectWidth  = 64
	rectHeight = 32

	cubeWidth  = 128
	cubeHeight = 128
)

// SoftGL is the default GL backend: a minimal software renderer with
// deterministic float math. The zero value is not usable; construct one
// per session with NewSoftGL so no framebuffer state is shared.
type SoftGL struct {
	ready chan struct{}
}

// NewSoftGL returns a GL backend whose load milestone is already
// reached, matching a page that has finished loading.
func NewSoftGL() *SoftGL {
	ch := make(chan struct{})
	close(ch)
	return &SoftGL{ready: ch}
}

// NewSoftGLDeferred returns a GL backend plus a func that marks the load
// milestone. The collector's second cube trial blocks until it fires.
func NewSoftGLDeferred() (*SoftGL, func()) {
	ch := make(chan struct{})
	var once bool
	fire := func() {
		if !once {
			once = true
			close(ch)
		}
	}
	return &SoftGL{ready: ch}, fire
}

func (g *SoftGL) Ready() <-chan struct{} { return g.ready }

// RenderRect clears a small framebuffer and fills a fixed sub-region
// with opaque red, the baseline probe compared against the allow-list.
func (g *SoftGL) RenderRect() ([]byte, error) {
	fb := newFramebuffer(rectWidth, rectHeight, [4]byte{0, 0, 0, 255})
	for y := 8; y < 24; y++ {
		for x := 8; x < 56; x++ {
			fb.set(x, y, [4]byte{255, 0, 0, 255})
		}
	}
	return fb.pix, nil
}

// RenderCube draws a perspective-projected cube with six flat-colored
// faces at a fixed camera and rotation. Per-call randomization injected
// by an anti-fingerprinting layer shows up as differing readbacks.
func (g *SoftGL) RenderCube() ([]byte, error) {
	fb := newFramebuffer(cubeWidth, cubeHeight, [4]byte{16, 16, 32, 255})

	verts := cubeVertices()
	rotated := make([]vec3, len(verts))
	for i, v := range verts {
		rotated[i] = rotateY(rotateX(v, 0.5), 0.8)
	}

	projected := make([][2]float64, len(rotated))
	for i, v := range rotated {
		z := v.z + 4.0 // camera at -4 on the z axis
		f := 180.0 / z
		projected[i] = [2]float64{
			cubeWidth/2 + v.x*f,
			cubeHeight/2 - v.y*f,
		}
	}

	faces := cubeFaces()
	// Painter's algorithm: far faces first.
	sort.SliceStable(faces, func(i, j int) bool {
		return faceDepth(rotated, faces[i]) > faceDepth(rotated, faces[j])
	})

	for _, f := range faces {
		quad := f.idx
		fillTriangle(fb, projected[quad[0]], projected[quad[1]], projected[quad[2]], f.color)
		fillTriangle(fb, projected[quad[0]], projected[quad[2]], projected[quad[3]], f.color)
	}
	return fb.pix, nil
}

type vec3 struct{ x, y, z float64 }

func rotateX(v vec3, a float64) vec3 {
	s, c := math.Sin(a), math.Cos(a)
	return vec3{v.x, v.y*c - v.z*s, v.y*s + v.z*c}
}

func rotateY(v vec3, a float64) vec3 {
	s, c := math.Sin(a), math.Cos(a)
	return vec3{v.x*c + v.z*s, v.y, -v.x*s + v.z*c}
}

func cubeVertices() []vec3 {
	return []vec3{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}
}

type face struct {
	idx   [4]int
	color [4]byte
}

func cubeFaces() []face {
	return []face{
		{[4]int{0, 1, 2, 3}, [4]byte{255, 0, 0, 255}},   // front
		{[4]int{5, 4, 7, 6}, [4]byte{0, 255, 0, 255}},   // back
		{[4]int{4, 0, 3, 7}, [4]byte{0, 0, 255, 255}},   // left
		{[4]int{1, 5, 6, 2}, [4]byte{255, 255, 0, 255}}, // right
		{[4]int{3, 2, 6, 7}, [4]byte{255, 0, 255, 255}}, // top
		{[4]int{4, 5, 1, 0}, [4]byte{0, 255, 255, 255}}, // bottom
	}
}

func faceDepth(verts []vec3, f face) float64 {
	var d float64
	for _, i := range f.idx {
		d += verts[i].z
	}
	return d / 4
}

type framebuffer struct {
	w, h int
	pix  []byte
}

func newFramebuffer(w, h int, clear [4]byte) *framebuffer {
	fb := &framebuffer{w: w, h: h, pix: make([]byte, 4*w*h)}
	for i := 0; i < w*h; i++ {
		copy(fb.pix[4*i:], clear[:])
	}
	return fb
}

func (fb *framebuffer) set(x, y int, c [4]byte) {
	if x < 0 || y < 0 || x >= fb.w || y >= fb.h {
		return
	}
	copy(fb.pix[4*(y*fb.w+x):], c[:])
}

// fillTriangle rasterizes with an edge-function test over the bounding
// box. Pixel centers are sampled at integer coordinates + 0.5.
func fillTriangle(fb *framebuffer, a, b, c [2]float64, col [4]byte) {
	minX := int(math.Floor(min3(a[0], b[0], c[0])))
	maxX := int(math.Ceil(max3(a[0], b[0], c[0])))
	minY := int(math.Floor(min3(a[1], b[1], c[1])))
	maxY := int(math.Ceil(max3(a[1], b[1], c[1])))

	area := edge(a, b, c)
	if area == 0 {
		return
	}
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := [2]float64{float64(x) + 0.5, float64(y) + 0.5}
			w0 := edge(a, b, p)
			w1 := edge(b, c, p)
			w2 := edge(c, a, p)
			if (w0 >= 0 && w1 >= 0 && w2 >= 0) || (w0 <= 0 && w1 <= 0 && w2 <= 0) {
				fb.set(x, y, col)
			}
		}
	}
}

func edge(a, b, p [2]float64) float64 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

func min3(a, b, c float64) float64 { return math.Min(a, math.Min(b, c)) }
func max3(a, b, c float64) float64 { return math.Max(a, math.Max(b, c)) }
