package navigator

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Run transports a batch until no particle is alive: distance to solids,
// projection, then track-through in every solid, repeated. Particles still
// alive after MaxRounds are terminated as runaways. Cancellation is only
// checked between rounds; a cancelled batch is abandoned as a whole.
func (n *Navigator) Run(ctx context.Context, p *Particles) error {
	if !n.initialized {
		return ConfigError("Navigator", "Run", "Initialize must be called before tracking")
	}
	for round := 0; round < n.params.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "Navigator::Run: batch aborted")
		}
		release := p.Map()
		alive := p.CountStatus(StatusAlive)
		release()
		if alive == 0 {
			n.log.Debug("batch done", zap.Int("rounds", round))
			return nil
		}

		n.ComputeDistanceToSolids(p)
		n.ProjectParticles(p)
		for _, s := range n.solids {
			if err := n.TrackThrough(p, s.ID()); err != nil {
				return err
			}
		}
	}

	release := p.Map()
	alive := p.CountStatus(StatusAlive)
	release()
	if alive == 0 {
		return nil
	}
	n.dev.Dispatch("terminate_runaways", p.Number, func(wid, i int) {
		if p.Status[i] == StatusAlive {
			p.Terminate(i, StatusDead, FlagRunaway)
			n.stats.add(Runaway)
		}
	})
	n.log.Warn("batch reached the round limit",
		zap.Int("max_rounds", n.params.MaxRounds),
		zap.Int("terminated", alive))
	return nil
}
