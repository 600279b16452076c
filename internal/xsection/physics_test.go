package xsection

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
	"go.uber.org/zap/zaptest"
)

func onePhoton(t *testing.T, e float64, dir mgl64.Vec3) (*navigator.Particles, func()) {
	t.Helper()
	dev := compute.NewDevice(compute.Options{Workers: 1}, zaptest.NewLogger(t))
	p, err := navigator.NewParticles(dev, 1)
	if err != nil {
		t.Fatal(err)
	}
	release := p.Map()
	if err := p.Reset(1); err != nil {
		t.Fatal(err)
	}
	p.Set(0, navigator.KindPhoton, e, mgl64.Vec3{}, dir)
	return p, release
}

func TestPhotoelectricAbsorbs(t *testing.T) {
	p, release := onePhoton(t, 0.05, mgl64.Vec3{0, 0, 1})
	defer release()
	ph := NewPhysics(newTable(t))
	edep := ph.Interact(Photoelectric, 0, p, 0, rand.New(rand.NewSource(1)))
	if edep != 0.05 || p.E[0] != 0 || p.Status[0] != navigator.StatusDead {
		t.Fatalf("edep %v energy %v status %d", edep, p.E[0], p.Status[0])
	}
}

func TestComptonConservesEnergy(t *testing.T) {
	ph := NewPhysics(newTable(t))
	rng := rand.New(rand.NewSource(9))
	for _, e := range []float64{0.01, 0.06, 1, 20} {
		p, release := onePhoton(t, e, mgl64.Vec3{0.3, -0.4, 0.8})
		for k := 0; k < 500; k++ {
			before := p.E[0]
			edep := ph.Interact(Compton, 0, p, 0, rng)
			after := p.E[0]
			if !near(edep+after, before, 1e-12) {
				t.Fatalf("%v MeV: %v + %v != %v", e, edep, after, before)
			}
			// the scattered photon keeps at least E / (1 + 2E/mc²)
			if after < before/(1+2*before/ElectronMass)-1e-12 || after > before {
				t.Fatalf("%v MeV: scattered energy %v out of kinematic range", e, after)
			}
			if d := p.Direction(0); !near(d.Len(), 1, 1e-12) {
				t.Fatalf("direction not normalized: %v", d)
			}
			p.E[0] = e
		}
		release()
	}
}

func TestComptonForwardPeakedAtHighEnergy(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	mean := func(e float64) float64 {
		sum := 0.0
		for k := 0; k < 20000; k++ {
			_, cost := sampleKleinNishina(e, rng)
			sum += cost
		}
		return sum / 20000
	}
	low, high := mean(0.001), mean(10)
	// Thomson limit is symmetric
	if math.Abs(low) > 0.05 {
		t.Fatalf("low energy mean cosine %v", low)
	}
	if high < 0.5 {
		t.Fatalf("high energy mean cosine %v", high)
	}
}

func TestRayleighKeepsEnergy(t *testing.T) {
	p, release := onePhoton(t, 0.03, mgl64.Vec3{1, 0, 0})
	defer release()
	ph := NewPhysics(newTable(t))
	rng := rand.New(rand.NewSource(2))
	changed := false
	for k := 0; k < 100; k++ {
		if edep := ph.Interact(Rayleigh, 0, p, 0, rng); edep != 0 {
			t.Fatalf("rayleigh deposited %v", edep)
		}
		if p.E[0] != 0.03 || p.Status[0] != navigator.StatusAlive {
			t.Fatal("rayleigh must only change the direction")
		}
		if !p.Direction(0).ApproxEqual(mgl64.Vec3{1, 0, 0}) {
			changed = true
		}
	}
	if !changed {
		t.Fatal("direction never changed")
	}
}

func TestChargedParticlesStop(t *testing.T) {
	p, release := onePhoton(t, 0.2, mgl64.Vec3{0, 0, 1})
	defer release()
	p.Kind[0] = navigator.KindElectron
	edep := NewPhysics(newTable(t)).Interact(Compton, 0, p, 0, rand.New(rand.NewSource(1)))
	if edep != 0.2 || p.Status[0] != navigator.StatusFreeze {
		t.Fatalf("edep %v status %d", edep, p.Status[0])
	}
}

func TestRotateUnitZ(t *testing.T) {
	z := mgl64.Vec3{0, 0, 1}
	for _, u := range []mgl64.Vec3{{0, 0, 1}, {0, 0, -1}, {1, 0, 0}, mgl64.Vec3{1, 2, -3}.Normalize()} {
		if got := RotateUnitZ(z, u); !got.ApproxEqualThreshold(u, 1e-12) {
			t.Fatalf("z rotated onto %v gives %v", u, got)
		}
		// angles to the new axis are preserved
		v := mgl64.Vec3{0.6, 0, 0.8}
		if got := RotateUnitZ(v, u); !near(got.Dot(u), 0.8, 1e-12) || !near(got.Len(), 1, 1e-12) {
			t.Fatalf("u=%v: rotated %v", u, got)
		}
	}
}
