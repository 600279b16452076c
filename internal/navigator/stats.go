package navigator

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Outcome categorizes tracking events.
type Outcome uint8

const (
	Entered     Outcome = iota // particle projected into a solid
	Crossing                   // voxel or facet boundary crossed without interacting
	Interaction                // discrete interaction applied
	Exited                     // particle left a solid
	Escaped                    // particle left the world (DEAD)
	Absorbed                   // process absorbed the particle (DEAD)
	Frozen                     // energy fell below the cutoff (FREEZE)
	Runaway                    // step budget exceeded (DEAD)
	numOutcomes
)

var outcomeNames = [numOutcomes]string{
	"entered", "crossing", "interaction", "exited", "escaped", "absorbed", "frozen", "runaway",
}

func (o Outcome) String() string {
	if o < numOutcomes {
		return outcomeNames[o]
	}
	return "unknown"
}

// TrackStats counts tracking outcomes across all workers.
type TrackStats struct {
	counts [numOutcomes]atomic.Uint64
}

func (s *TrackStats) add(o Outcome) { s.counts[o].Inc() }

// Count returns the number of events of an outcome.
func (s *TrackStats) Count(o Outcome) uint64 { return s.counts[o].Load() }

// Summary returns every counter by name.
func (s *TrackStats) Summary() map[string]uint64 {
	m := make(map[string]uint64, numOutcomes)
	for o := Outcome(0); o < numOutcomes; o++ {
		m[o.String()] = s.counts[o].Load()
	}
	return m
}

// Log writes the counters as one structured line.
func (s *TrackStats) Log(log *zap.Logger, msg string) {
	fields := make([]zap.Field, 0, numOutcomes)
	for o := Outcome(0); o < numOutcomes; o++ {
		fields = append(fields, zap.Uint64(o.String(), s.counts[o].Load()))
	}
	log.Info(msg, fields...)
}
