package source

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
)

func newDevice(t *testing.T) *compute.Device {
	return compute.NewDevice(compute.Options{Workers: 4}, zaptest.NewLogger(t))
}

func beamAlongX() Options {
	return Options{
		Name:      "xray",
		Kind:      navigator.KindPhoton,
		Position:  mgl64.Vec3{-200, 0, 0},
		LocalAxis: [3]mgl64.Vec3{{0, 0, 1}, {0, 1, 0}, {-1, 0, 0}},
		Aperture:  5 * math.Pi / 180,
		FocalSpot: mgl64.Vec3{0.6, 1.2, 0},
		Energy:    0.06,
	}
}

func TestGenerateFillsTheCone(t *testing.T) {
	dev := newDevice(t)
	src, err := New(beamAlongX(), dev, 11, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	const n = 5000
	p, err := navigator.NewParticles(dev, n)
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Generate(p, n); err != nil {
		t.Fatal(err)
	}
	release := p.Map()
	defer release()
	if p.Number != n {
		t.Fatalf("number %d", p.Number)
	}
	cosAp := math.Cos(5 * math.Pi / 180)
	for i := 0; i < n; i++ {
		d := p.Direction(i)
		if math.Abs(d.Len()-1) > 1e-12 {
			t.Fatalf("particle %d: direction not unit %v", i, d)
		}
		// local +Z maps to global +X
		if d.X() < cosAp-1e-12 {
			t.Fatalf("particle %d leaves the cone: %v", i, d)
		}
		pos := p.Position(i)
		// local x is global -z (zero spot), local y is global y
		if math.Abs(pos.X()+200) > 1e-9 || math.Abs(pos.Y()) > 0.6 || math.Abs(pos.Z()) > 0.3 {
			t.Fatalf("particle %d emitted outside the focal spot: %v", i, pos)
		}
		if p.E[i] != 0.06 || p.Status[i] != navigator.StatusAlive || p.SolidID[i] != navigator.NoSolid {
			t.Fatalf("particle %d: energy %v status %d solid %d", i, p.E[i], p.Status[i], p.SolidID[i])
		}
	}
	if got := src.Position(); !got.ApproxEqual(mgl64.Vec3{-200, 0, 0}) {
		t.Fatalf("position %v", got)
	}
}

func TestPencilBeam(t *testing.T) {
	opts := beamAlongX()
	opts.Aperture = 0
	opts.FocalSpot = mgl64.Vec3{}
	src, err := New(opts, newDevice(t), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	for k := 0; k < 100; k++ {
		pos, dir := src.sampleLocal(rng)
		if pos != (mgl64.Vec3{}) || !dir.ApproxEqual(mgl64.Vec3{0, 0, 1}) {
			t.Fatalf("pencil beam sampled %v %v", pos, dir)
		}
	}
}

func TestSpectrumSampling(t *testing.T) {
	opts := beamAlongX()
	opts.Spectrum = [][2]float64{{0.03, 1}, {0.05, 3}, {0.08, 0}}
	src, err := New(opts, newDevice(t), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(8))
	counts := map[float64]int{}
	const n = 40000
	for k := 0; k < n; k++ {
		counts[src.SampleEnergy(rng)]++
	}
	if counts[0.08] != 0 {
		t.Fatal("zero weight bin sampled")
	}
	if f := float64(counts[0.05]) / n; math.Abs(f-0.75) > 0.01 {
		t.Fatalf("0.05 MeV fraction %v", f)
	}
}

func TestNewRejects(t *testing.T) {
	dev := newDevice(t)
	mutate := []func(*Options){
		func(o *Options) { o.Aperture = -0.1 },
		func(o *Options) { o.Aperture = 4 },
		func(o *Options) { o.FocalSpot = mgl64.Vec3{-1, 0, 0} },
		func(o *Options) { o.Energy = 0 },
		func(o *Options) { o.Spectrum = [][2]float64{{0.05, 0}} },
		func(o *Options) { o.Spectrum = [][2]float64{{-0.05, 1}} },
		func(o *Options) { o.LocalAxis = [3]mgl64.Vec3{{1, 0, 0}, {1, 0, 0}, {0, 0, 1}} },
	}
	for i, m := range mutate {
		opts := beamAlongX()
		m(&opts)
		if _, err := New(opts, dev, 1, nil); !errors.Is(err, navigator.ErrConfig) {
			t.Fatalf("case %d: expected a configuration error, got %v", i, err)
		}
	}
}
