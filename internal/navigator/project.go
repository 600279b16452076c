package navigator

// ProjectParticles moves every alive particle in the world onto the solid
// found by ComputeDistanceToSolids and makes it the current solid. The position
// is biased by the geometry tolerance along the direction so the particle lands
// inside. Particles without a candidate have left the world and are marked DEAD.
func (n *Navigator) ProjectParticles(p *Particles) {
	bias := n.params.GeometryTolerance
	n.dev.Dispatch("project_to_solid", p.Number, func(wid, i int) {
		if p.Status[i] != StatusAlive || p.SolidID[i] != NoSolid {
			return
		}
		if p.CandidateSolid[i] == NoSolid {
			p.Terminate(i, StatusDead, FlagEscaped)
			n.stats.add(Escaped)
			return
		}
		step := p.NavigatorDistance[i] + bias
		p.Px[i] += p.Dx[i] * step
		p.Py[i] += p.Dy[i] * step
		p.Pz[i] += p.Dz[i] * step
		p.TOF[i] += step / SpeedOfLight

		p.SolidID[i] = p.CandidateSolid[i]
		p.CandidateSolid[i] = NoSolid
		p.NavigatorDistance[i] = 0
		p.Material[i] = NoMaterial
		n.stats.add(Entered)
	})
}
