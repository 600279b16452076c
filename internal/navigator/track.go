package navigator

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// trackState is the state of a particle inside TrackThrough.
type trackState uint8

const (
	stateEntering trackState = iota
	stateIntegrating
	stateInteracting
	stateExiting
	stateTerminated
)

// TrackThrough steps every alive particle currently owned by solid id through
// its interior. Each step compares the distance to the next region boundary
// with the remaining distance to the next interaction; the boundary wins ties.
// Particles leave with SolidID cleared (exited), or terminated: absorbed (DEAD),
// below the energy cutoff (FREEZE) or out of step budget (DEAD, runaway).
func (n *Navigator) TrackThrough(p *Particles, id int32) error {
	s, err := n.Solid(id)
	if err != nil {
		return err
	}
	n.dev.Dispatch("track_through", p.Number, func(wid, i int) {
		if p.Status[i] != StatusAlive || p.SolidID[i] != id {
			return
		}
		n.trackParticle(s, p, i, n.rngs[wid])
	})
	return nil
}

func (n *Navigator) trackParticle(s Solid, p *Particles, i int, rng *rand.Rand) {
	tol := n.params.GeometryTolerance
	cutoff := n.params.EnergyCutoff
	t := s.Transformation()
	acc := s.Accumulator()

	lp := t.GlobalToLocalPosition(p.Position(i))
	ld := t.GlobalToLocalDirection(p.Direction(i))

	var (
		material int32
		region   int
		steps    int
	)
	resample := true
	state := stateEntering

	for state != stateTerminated && state != stateExiting {
		switch state {
		case stateEntering:
			if p.E[i] < cutoff {
				_, region = s.ResolveMaterialAt(lp)
				if acc != nil {
					acc.Deposit(region, p.E[i])
				}
				p.E[i] = 0
				n.freeze(p, i)
				state = stateTerminated
				continue
			}
			state = stateIntegrating

		case stateIntegrating:
			if steps >= n.params.MaxSteps {
				n.runaway(s, p, i, t.LocalToGlobalPosition(lp))
				state = stateTerminated
				continue
			}
			steps++

			material, region = s.ResolveMaterialAt(lp)
			if material != p.Material[i] {
				p.Material[i] = material
				resample = true
			}
			if resample {
				p.EIndex[i] = int32(n.xs.EnergyBin(p.E[i]))
				p.NextInteractionDistance[i], p.NextProcess[i] = n.xs.SampleInteraction(material, p.E[i], rng)
				resample = false
			}
			if acc != nil {
				acc.Track(region)
			}

			boundary, exits := s.BoundaryDistance(lp, ld, region)
			if boundary < tol {
				boundary = tol
			}
			p.NavigatorDistance[i] = boundary

			if d := p.NextInteractionDistance[i]; d < boundary {
				lp = lp.Add(ld.Mul(d))
				p.TOF[i] += d / SpeedOfLight
				p.NextInteractionDistance[i] = 0
				state = stateInteracting
				continue
			}

			// cross the boundary, landing one tolerance past it
			step := boundary + tol
			lp = lp.Add(ld.Mul(step))
			p.TOF[i] += step / SpeedOfLight
			if rest := p.NextInteractionDistance[i] - step; rest > 0 {
				p.NextInteractionDistance[i] = rest
			} else {
				p.NextInteractionDistance[i] = 0
			}
			n.stats.add(Crossing)
			if exits {
				state = stateExiting
			}

		case stateInteracting:
			p.SetPosition(i, t.LocalToGlobalPosition(lp))
			edep := n.phys.Interact(p.NextProcess[i], material, p, i, rng)
			n.stats.add(Interaction)
			switch {
			case p.Status[i] == StatusDead:
				p.Flags[i] |= FlagAbsorbed
				n.stats.add(Absorbed)
			case p.Status[i] == StatusFreeze || p.E[i] < cutoff:
				edep += p.E[i]
				p.E[i] = 0
				n.freeze(p, i)
			}
			if acc != nil {
				acc.Deposit(region, edep)
			}
			if p.Status[i] != StatusAlive {
				state = stateTerminated
				continue
			}
			ld = t.GlobalToLocalDirection(p.Direction(i))
			resample = true
			state = stateIntegrating
		}
	}

	p.Steps[i] += int32(steps)
	p.SetPosition(i, t.LocalToGlobalPosition(lp))
	if state == stateExiting {
		p.SolidID[i] = NoSolid
		p.Material[i] = NoMaterial
		n.stats.add(Exited)
	}
}

// freeze stops a particle below the energy cutoff, its energy already deposited.
func (n *Navigator) freeze(p *Particles, i int) {
	p.Terminate(i, StatusFreeze, FlagFrozen)
	n.stats.add(Frozen)
}

func (n *Navigator) runaway(s Solid, p *Particles, i int, pos mgl64.Vec3) {
	p.Terminate(i, StatusDead, FlagRunaway)
	n.stats.add(Runaway)
	if n.runaways.Inc() <= maxRunawayReports {
		n.log.Warn("particle exceeded step budget",
			zap.Int("particle", i),
			zap.String("solid", s.Name()),
			zap.Float64s("position", pos[:]),
			zap.Float64("energy", p.E[i]),
			zap.Int("max_steps", n.params.MaxSteps))
	}
}
