package navigator

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ComputeDistanceToSolids finds, for every alive particle in the world, the
// nearest solid along its direction. The distance goes to NavigatorDistance and
// the solid to CandidateSolid; a particle that misses everything gets
// OutOfWorld and NoSolid. On equal distances the lowest solid id wins.
// Positions are left untouched.
func (n *Navigator) ComputeDistanceToSolids(p *Particles) {
	n.dev.Dispatch("distance_to_solids", p.Number, func(wid, i int) {
		if p.Status[i] != StatusAlive || p.SolidID[i] != NoSolid {
			return
		}
		pos, dir := p.Position(i), p.Direction(i)
		best, candidate := OutOfWorld, NoSolid
		for _, s := range n.solids {
			// strictly smaller keeps the earliest registered solid on ties
			if d := s.OBB().Distance(pos, dir); d < best {
				best, candidate = d, s.ID()
			}
		}
		p.NavigatorDistance[i] = best
		p.CandidateSolid[i] = candidate
	})
}

// DistanceTo returns the distance from a global position and direction to the
// OBB of one solid, 0 when inside and OutOfWorld when missed.
func (n *Navigator) DistanceTo(id int32, pos, dir mgl64.Vec3) (float64, error) {
	s, err := n.Solid(id)
	if err != nil {
		return OutOfWorld, err
	}
	return s.OBB().Distance(pos, normalize(dir)), nil
}
