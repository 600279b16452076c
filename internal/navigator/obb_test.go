package navigator

import (
	"math"
	"math/rand"
	"testing"
)

func TestOBBDistance(t *testing.T) {
	dev := newTestDevice(t)
	s := uniformCube(t, dev, "cube")
	o := s.OBB()

	cases := []struct {
		name     string
		pos, dir [3]float64
		want     float64
	}{
		{"ahead", [3]float64{-20, 0, 0}, [3]float64{1, 0, 0}, 15},
		{"closer", [3]float64{-12, 0, 0}, [3]float64{1, 0, 0}, 7},
		{"from above", [3]float64{0, 0, 9}, [3]float64{0, 0, -1}, 4},
		{"inside", [3]float64{1, -2, 3}, [3]float64{0, 1, 0}, 0},
		{"behind", [3]float64{20, 0, 0}, [3]float64{1, 0, 0}, OutOfWorld},
		{"parallel miss", [3]float64{-20, 8, 0}, [3]float64{1, 0, 0}, OutOfWorld},
		{"oblique miss", [3]float64{-20, 0, 0}, [3]float64{1, 1, 0}, OutOfWorld},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := o.Distance(v3(tc.pos[0], tc.pos[1], tc.pos[2]), normalize(v3(tc.dir[0], tc.dir[1], tc.dir[2])))
			if tc.want == OutOfWorld {
				if d != OutOfWorld {
					t.Fatalf("expected a miss, got %v", d)
				}
				return
			}
			if !almostEq(d, tc.want) {
				t.Fatalf("distance = %v, want %v", d, tc.want)
			}
		})
	}
}

func TestOBBDistanceFollowsPlacement(t *testing.T) {
	dev := newTestDevice(t)
	s := uniformCube(t, dev, "cube")
	s.SetPosition(v3(100, 0, 0))
	s.SetRotation(v3(0, 0, math.Pi/4))

	// the rotated cube reaches 5*sqrt(2) along the x axis
	d := s.OBB().Distance(v3(0, 0, 0), v3(1, 0, 0))
	if want := 100 - 5*math.Sqrt2; !near(d, want, 1e-9) {
		t.Fatalf("distance = %v, want %v", d, want)
	}
}

func TestOBBExitDistanceAndContains(t *testing.T) {
	dev := newTestDevice(t)
	o := uniformCube(t, dev, "cube").OBB()
	if d := o.ExitDistance(v3(0, 0, 0), v3(1, 0, 0)); !almostEq(d, 5) {
		t.Fatalf("exit distance = %v", d)
	}
	if d := o.ExitDistance(v3(-4, 0, 0), v3(-1, 0, 0)); !almostEq(d, 1) {
		t.Fatalf("exit distance = %v", d)
	}
	if !o.Contains(v3(5, 5, 5)) || o.Contains(v3(5.001, 0, 0)) {
		t.Fatal("containment must include the faces only")
	}
}

func TestGlobalBoundsStayOrdered(t *testing.T) {
	dev := newTestDevice(t)
	s := uniformCube(t, dev, "cube")
	rng := rand.New(rand.NewSource(7))
	for k := 0; k < 200; k++ {
		s.SetPosition(v3(rng.Float64()*200-100, rng.Float64()*200-100, rng.Float64()*200-100))
		s.SetRotation(v3(rng.Float64()*2*math.Pi, rng.Float64()*2*math.Pi, rng.Float64()*2*math.Pi))
		minP, maxP := s.OBB().GlobalBounds()
		for a := 0; a < 3; a++ {
			if minP[a] > maxP[a] {
				t.Fatalf("iteration %d axis %d: min %v > max %v", k, a, minP[a], maxP[a])
			}
			// a 10 mm cube spans at least 10 mm on every axis whatever the rotation
			if maxP[a]-minP[a] < 10-1e-9 {
				t.Fatalf("iteration %d axis %d: extent %v too small", k, a, maxP[a]-minP[a])
			}
		}
		if s.Transformation().Dirty() {
			t.Fatal("setters on a solid must leave the matrix up to date")
		}
	}
}
