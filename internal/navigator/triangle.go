package navigator

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Triangle is a mesh facet with a precomputed bounding sphere.
type Triangle struct {
	V      [3]mgl64.Vec3
	Center mgl64.Vec3
	Radius float64
}

// NewTriangle builds a facet and its bounding sphere: the sphere spanning the
// two most distant vertices, grown to include the third one.
func NewTriangle(a, b, c mgl64.Vec3) Triangle {
	t := Triangle{V: [3]mgl64.Vec3{a, b, c}}

	// most distant pair
	p, q, r := a, b, c
	best := a.Sub(b).LenSqr()
	if d := a.Sub(c).LenSqr(); d > best {
		p, q, r, best = a, c, b, d
	}
	if d := b.Sub(c).LenSqr(); d > best {
		p, q, r = b, c, a
	}
	t.Center = p.Add(q).Mul(0.5)
	t.Radius = p.Sub(q).Len() * 0.5

	// grow to the remaining point
	if d := r.Sub(t.Center).Len(); d > t.Radius {
		newR := (t.Radius + d) * 0.5
		t.Center = t.Center.Add(r.Sub(t.Center).Mul((newR - t.Radius) / d))
		t.Radius = newR
	}
	return t
}

// Bounds returns the axis aligned bounds of the facet.
func (t *Triangle) Bounds() (minP, maxP mgl64.Vec3) {
	minP, maxP = t.V[0], t.V[0]
	for _, v := range t.V[1:] {
		for a := 0; a < 3; a++ {
			minP[a] = math.Min(minP[a], v[a])
			maxP[a] = math.Max(maxP[a], v[a])
		}
	}
	return minP, maxP
}

// hitsSphere is the cheap bounding sphere rejection.
func (t *Triangle) hitsSphere(O, D mgl64.Vec3) bool {
	oc := O.Sub(t.Center)
	b := oc.Dot(D)
	c := oc.LenSqr() - t.Radius*t.Radius
	if c > 0 && b > 0 {
		return false
	}
	return b*b-c >= 0
}

// Intersect returns the ray parameter of the hit with O + t·D, Möller–Trumbore.
func (t *Triangle) Intersect(O, D mgl64.Vec3) (float64, bool) {
	if !t.hitsSphere(O, D) {
		return 0, false
	}
	const eps = 1e-12
	e1 := t.V[1].Sub(t.V[0])
	e2 := t.V[2].Sub(t.V[0])
	pv := D.Cross(e2)
	det := e1.Dot(pv)
	if det > -eps && det < eps {
		return 0, false
	}
	inv := 1 / det
	tv := O.Sub(t.V[0])
	u := tv.Dot(pv) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	qv := tv.Cross(e1)
	v := D.Dot(qv) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	d := e2.Dot(qv) * inv
	if d <= 0 {
		return 0, false
	}
	return d, true
}
