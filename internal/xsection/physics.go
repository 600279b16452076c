package xsection

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
)

// ElectronMass is m_e c², MeV.
const ElectronMass = 0.51099895

// Physics applies photon processes. Secondary electrons are not transported:
// their kinetic energy is deposited where they are created.
type Physics struct {
	table *Table
}

var _ navigator.Physics = (*Physics)(nil)

func NewPhysics(t *Table) *Physics { return &Physics{table: t} }

// Interact applies process to particle i and returns the local deposit.
func (ph *Physics) Interact(process uint8, material int32, p *navigator.Particles, i int, rng *rand.Rand) float64 {
	if p.Kind[i] != navigator.KindPhoton {
		// charged particles stop on the spot
		e := p.E[i]
		p.E[i] = 0
		p.Status[i] = navigator.StatusFreeze
		return e
	}
	switch process {
	case Photoelectric:
		e := p.E[i]
		p.E[i] = 0
		p.Status[i] = navigator.StatusDead
		return e
	case Compton:
		eps, cost := sampleKleinNishina(p.E[i], rng)
		scattered := eps * p.E[i]
		edep := p.E[i] - scattered
		p.E[i] = scattered
		p.SetDirection(i, scatter(p.Direction(i), cost, rng))
		return edep
	case Rayleigh:
		p.SetDirection(i, scatter(p.Direction(i), sampleThomson(rng), rng))
		return 0
	}
	return 0
}

// sampleKleinNishina returns the ratio of scattered to incident photon energy
// and the scattering cosine, by the composition and rejection method of
// Butcher and Messel.
func sampleKleinNishina(e float64, rng *rand.Rand) (eps, cost float64) {
	k := e / ElectronMass
	eps0 := 1 / (1 + 2*k)
	eps0sq := eps0 * eps0
	alpha1 := -math.Log(eps0)
	alpha2 := alpha1 + 0.5*(1-eps0sq)

	var epssq, onecost, sint2 float64
	for {
		if alpha1 > alpha2*rng.Float64() {
			eps = math.Exp(-alpha1 * rng.Float64())
			epssq = eps * eps
		} else {
			epssq = eps0sq + (1-eps0sq)*rng.Float64()
			eps = math.Sqrt(epssq)
		}
		onecost = (1 - eps) / (eps * k)
		sint2 = onecost * (2 - onecost)
		if 1-eps*sint2/(1+epssq) >= rng.Float64() {
			break
		}
	}
	return eps, 1 - onecost
}

// sampleThomson draws a cosine from (1 + cos²)/2.
func sampleThomson(rng *rand.Rand) float64 {
	for {
		c := 2*rng.Float64() - 1
		if (1+c*c)*0.5 >= rng.Float64() {
			return c
		}
	}
}

// scatter turns dir by the polar cosine cost and a uniform azimuth.
func scatter(dir mgl64.Vec3, cost float64, rng *rand.Rand) mgl64.Vec3 {
	sint := math.Sqrt(math.Max(0, 1-cost*cost))
	phi := 2 * math.Pi * rng.Float64()
	return RotateUnitZ(mgl64.Vec3{sint * math.Cos(phi), sint * math.Sin(phi), cost}, dir)
}

// RotateUnitZ expresses v, given in a frame whose Z axis is the unit vector u,
// in the frame of u.
func RotateUnitZ(v, u mgl64.Vec3) mgl64.Vec3 {
	up := u.X()*u.X() + u.Y()*u.Y()
	if up > 0 {
		up = math.Sqrt(up)
		return mgl64.Vec3{
			(u.X()*u.Z()*v.X()-u.Y()*v.Y())/up + u.X()*v.Z(),
			(u.Y()*u.Z()*v.X()+u.X()*v.Y())/up + u.Y()*v.Z(),
			-up*v.X() + u.Z()*v.Z(),
		}
	}
	if u.Z() < 0 {
		return mgl64.Vec3{-v.X(), v.Y(), -v.Z()}
	}
	return v
}
