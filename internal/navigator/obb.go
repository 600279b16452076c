package navigator

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// OBB is an axis aligned box in a solid's local frame, placed in the world by
// the solid's transformation.
type OBB struct {
	Min, Max  mgl64.Vec3 // local frame
	transform *Transformation
}

type rayRecips struct {
	inv [3]float64
	par [3]bool // parallel flags (|D| < eps)
}

func computeRayRecips(d mgl64.Vec3) rayRecips {
	rr := rayRecips{}
	for a := 0; a < 3; a++ {
		if x := d[a]; x > parallelEps || x < -parallelEps {
			rr.inv[a] = 1 / x
		} else {
			rr.par[a] = true
		}
	}
	return rr
}

// raySlab intersects the ray O + t·D with the box [minP, maxP]. Axes flagged as
// parallel contribute no bound, and reject the ray when O lies outside their slab.
func raySlab(O, minP, maxP mgl64.Vec3, rr rayRecips) (tmin, tmax float64, ok bool) {
	tmin, tmax = math.Inf(-1), math.Inf(1)
	for a := 0; a < 3; a++ {
		if rr.par[a] {
			if O[a] < minP[a] || O[a] > maxP[a] {
				return 0, 0, false
			}
			continue
		}
		t1 := (minP[a] - O[a]) * rr.inv[a]
		t2 := (maxP[a] - O[a]) * rr.inv[a]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
	}
	return tmin, tmax, tmin <= tmax
}

// Transformation returns the placement shared with the owning solid.
func (o *OBB) Transformation() *Transformation { return o.transform }

// Distance returns how far a particle at global pos moving along global dir is
// from entering the box: 0 when already inside, OutOfWorld when the box is
// missed or lies behind the particle.
func (o *OBB) Distance(pos, dir mgl64.Vec3) float64 {
	lp := o.transform.GlobalToLocalPosition(pos)
	ld := o.transform.GlobalToLocalDirection(dir)
	tmin, tmax, ok := raySlab(lp, o.Min, o.Max, computeRayRecips(ld))
	if !ok || tmax < 0 {
		return OutOfWorld
	}
	if tmin < 0 {
		return 0
	}
	return tmin
}

// ExitDistance returns the distance from a local point inside the box to its
// far face along a local direction.
func (o *OBB) ExitDistance(local, dir mgl64.Vec3) float64 {
	_, tmax, ok := raySlab(local, o.Min, o.Max, computeRayRecips(dir))
	if !ok || tmax < 0 {
		return 0
	}
	return tmax
}

// Contains reports whether a local point lies inside the box.
func (o *OBB) Contains(local mgl64.Vec3) bool {
	for a := 0; a < 3; a++ {
		if local[a] < o.Min[a] || local[a] > o.Max[a] {
			return false
		}
	}
	return true
}

// GlobalBounds returns the axis aligned bounds of the box in the global frame,
// from its eight transformed corners.
func (o *OBB) GlobalBounds() (minP, maxP mgl64.Vec3) {
	M := o.transform.GetTransformationMatrix()
	inf := math.Inf(1)
	minP = mgl64.Vec3{inf, inf, inf}
	maxP = mgl64.Vec3{-inf, -inf, -inf}
	for c := 0; c < 8; c++ {
		corner := o.Min
		if c&1 != 0 {
			corner[0] = o.Max[0]
		}
		if c&2 != 0 {
			corner[1] = o.Max[1]
		}
		if c&4 != 0 {
			corner[2] = o.Max[2]
		}
		g := mgl64.TransformCoordinate(corner, M)
		for a := 0; a < 3; a++ {
			minP[a] = math.Min(minP[a], g[a])
			maxP[a] = math.Max(maxP[a], g[a])
		}
	}
	return minP, maxP
}
