package navigator

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"github.com/samber/lo"
	"go.uber.org/zap/zaptest"
)

func v3(x, y, z float64) mgl64.Vec3 { return mgl64.Vec3{x, y, z} }

func almostEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func vecNear(a, b mgl64.Vec3, tol float64) bool {
	return near(a[0], b[0], tol) && near(a[1], b[1], tol) && near(a[2], b[2], tol)
}

// fixedXS samples the same interaction distance everywhere and records the
// materials it was asked about.
type fixedXS struct {
	materials []string
	dist      float64
	process   uint8

	mu      sync.Mutex
	sampled []int32
}

func (f *fixedXS) MaterialIndex(name string) (int, bool) {
	i := lo.IndexOf(f.materials, name)
	return i, i >= 0
}

func (f *fixedXS) EnergyBin(e float64) int { return 0 }

func (f *fixedXS) SampleInteraction(material int32, e float64, rng *rand.Rand) (float64, uint8) {
	f.mu.Lock()
	f.sampled = append(f.sampled, material)
	f.mu.Unlock()
	return f.dist, f.process
}

// recordingPhysics leaves the particle untouched and records where it interacted.
type recordingPhysics struct {
	mu        sync.Mutex
	positions []mgl64.Vec3
}

func (r *recordingPhysics) Interact(process uint8, material int32, p *Particles, i int, rng *rand.Rand) float64 {
	r.mu.Lock()
	r.positions = append(r.positions, p.Position(i))
	r.mu.Unlock()
	return 0
}

// absorbingPhysics deposits the whole energy and kills the particle.
type absorbingPhysics struct{}

func (absorbingPhysics) Interact(process uint8, material int32, p *Particles, i int, rng *rand.Rand) float64 {
	e := p.E[i]
	p.E[i] = 0
	p.Status[i] = StatusDead
	return e
}

func testParams() Params {
	params := DefaultParams()
	params.Seed = 1
	return params
}

func newTestDevice(t *testing.T) *compute.Device {
	return compute.NewDevice(compute.Options{Workers: 4}, zaptest.NewLogger(t))
}

func newTestNavigator(t *testing.T, dev *compute.Device, xs CrossSections, phys Physics, params Params) *Navigator {
	t.Helper()
	nav, err := New(dev, xs, phys, params, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("navigator: %v", err)
	}
	return nav
}

// uniformCube is a 10x10x10 grid of 1 mm voxels made of one material.
func uniformCube(t *testing.T, dev *compute.Device, name string) *VoxelizedSolid {
	t.Helper()
	labels := make([]int32, 1000)
	s, err := NewVoxelizedSolid(dev, name, [3]int{10, 10, 10}, v3(1, 1, 1), labels, []string{"Water"})
	if err != nil {
		t.Fatalf("voxelized solid: %v", err)
	}
	return s
}

// boxTriangles meshes the box [-h, h]^3 with 12 facets.
func boxTriangles(h float64) []Triangle {
	c := func(x, y, z float64) mgl64.Vec3 { return v3(x*h, y*h, z*h) }
	quads := [][4]mgl64.Vec3{
		{c(-1, -1, -1), c(1, -1, -1), c(1, 1, -1), c(-1, 1, -1)}, // z-
		{c(-1, -1, 1), c(1, -1, 1), c(1, 1, 1), c(-1, 1, 1)},     // z+
		{c(-1, -1, -1), c(1, -1, -1), c(1, -1, 1), c(-1, -1, 1)}, // y-
		{c(-1, 1, -1), c(1, 1, -1), c(1, 1, 1), c(-1, 1, 1)},     // y+
		{c(-1, -1, -1), c(-1, 1, -1), c(-1, 1, 1), c(-1, -1, 1)}, // x-
		{c(1, -1, -1), c(1, 1, -1), c(1, 1, 1), c(1, -1, 1)},     // x+
	}
	var tris []Triangle
	for _, q := range quads {
		tris = append(tris, NewTriangle(q[0], q[1], q[2]), NewTriangle(q[0], q[2], q[3]))
	}
	return tris
}

// newBatch maps the stack and fills n identical particles.
func newBatch(t *testing.T, dev *compute.Device, n int, energy float64, pos, dir mgl64.Vec3) *Particles {
	t.Helper()
	p, err := NewParticles(dev, n)
	if err != nil {
		t.Fatalf("particles: %v", err)
	}
	release := p.Map()
	defer release()
	if err := p.Reset(n); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for i := 0; i < n; i++ {
		p.Set(i, KindPhoton, energy, pos, dir)
	}
	return p
}
