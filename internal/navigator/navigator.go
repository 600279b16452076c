// Package navigator moves primary particles through the registered solids:
// distance to the nearest solid, projection onto its boundary and tracking
// through its interior until the particle exits or terminates.
package navigator

import (
	"math"
	"math/rand"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// CrossSections is the material table consulted while tracking.
// Implementations must be safe for concurrent reads.
type CrossSections interface {
	MaterialIndex(name string) (int, bool)
	EnergyBin(energy float64) int
	// SampleInteraction draws the distance to the next discrete interaction and
	// the process that will happen there. An infinite distance means none.
	SampleInteraction(material int32, energy float64, rng *rand.Rand) (distance float64, process uint8)
}

// Physics applies a process to particle i. It updates energy, direction and
// status in place and returns the energy deposited locally.
type Physics interface {
	Interact(process uint8, material int32, p *Particles, i int, rng *rand.Rand) float64
}

// Params are the tracking tolerances and livelock guards.
type Params struct {
	GeometryTolerance float64 // epsilon bias and minimum step, mm
	MaxSteps          int     // per particle per track-through
	MaxRounds         int     // distance/project/track rounds per batch
	EnergyCutoff      float64 // MeV
	Seed              int64   // 0 seeds from the clock
}

// DefaultParams returns conservative defaults.
func DefaultParams() Params {
	return Params{
		GeometryTolerance: DefaultGeometryTolerance,
		MaxSteps:          DefaultMaxSteps,
		MaxRounds:         DefaultMaxRounds,
		EnergyCutoff:      DefaultEnergyCutoff,
	}
}

// Navigator owns the registered solids and runs the tracking kernels on a
// compute device.
type Navigator struct {
	log    *zap.Logger
	dev    *compute.Device
	xs     CrossSections
	phys   Physics
	params Params

	solids      []Solid
	tree        *rtreego.Rtree
	rngs        []*rand.Rand
	stats       TrackStats
	runaways    atomic.Int64
	initialized bool
}

// New builds a navigator. Every collaborator is injected; log may be nil.
func New(dev *compute.Device, xs CrossSections, phys Physics, params Params, log *zap.Logger) (*Navigator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dev == nil || xs == nil || phys == nil {
		return nil, ConfigError("Navigator", "New", "device, cross sections and physics are required")
	}
	if !(params.GeometryTolerance > 0) || math.IsInf(params.GeometryTolerance, 0) {
		return nil, ConfigError("Navigator", "New", "geometry tolerance must be positive, got %g", params.GeometryTolerance)
	}
	if params.MaxSteps <= 0 || params.MaxRounds <= 0 {
		return nil, ConfigError("Navigator", "New", "max steps (%d) and max rounds (%d) must be positive", params.MaxSteps, params.MaxRounds)
	}
	if params.EnergyCutoff < 0 {
		return nil, ConfigError("Navigator", "New", "energy cutoff must not be negative")
	}
	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rngs := make([]*rand.Rand, dev.Workers())
	for wid := range rngs {
		rngs[wid] = rand.New(rand.NewSource(seed ^ int64(uint64(wid)*0x9e3779b97f4a7c15)))
	}
	return &Navigator{
		log:    log.Named("navigator"),
		dev:    dev,
		xs:     xs,
		phys:   phys,
		params: params,
		rngs:   rngs,
	}, nil
}

// Params returns the tracking parameters.
func (n *Navigator) Params() Params { return n.params }

// Stats returns the outcome counters accumulated since creation.
func (n *Navigator) Stats() *TrackStats { return &n.stats }

// RegisterSolid assigns the next id (0, 1, 2...) to s. Ids are never reused.
// Solids can only be registered before Initialize.
func (n *Navigator) RegisterSolid(s Solid) (int32, error) {
	if n.initialized {
		return NoSolid, ConfigError("Navigator", "RegisterSolid", "solid %q registered after initialization", s.Name())
	}
	id := int32(len(n.solids))
	if err := s.assignID(id); err != nil {
		return NoSolid, err
	}
	n.solids = append(n.solids, s)
	return id, nil
}

// Solids returns the registered solids ordered by id.
func (n *Navigator) Solids() []Solid { return n.solids }

// Solid returns the solid registered under id.
func (n *Navigator) Solid(id int32) (Solid, error) {
	if id < 0 || int(id) >= len(n.solids) {
		return nil, ConfigError("Navigator", "Solid", "unknown solid id %d", id)
	}
	return n.solids[id], nil
}

// Initialize binds solid materials to the cross-section table, refreshes every
// transformation and reports overlapping solids. It must run before tracking.
func (n *Navigator) Initialize() error {
	if len(n.solids) == 0 {
		return ConfigError("Navigator", "Initialize", "no solid registered")
	}
	for _, s := range n.solids {
		if err := s.BindMaterials(n.xs.MaterialIndex); err != nil {
			return err
		}
		s.Transformation().UpdateTransformationMatrix()
	}
	if err := n.buildIndex(); err != nil {
		return err
	}
	for _, pair := range n.Overlaps() {
		n.log.Warn("overlapping solids, the lowest id wins where they overlap",
			zap.String("first", n.solids[pair[0]].Name()),
			zap.String("second", n.solids[pair[1]].Name()))
	}
	for _, s := range n.solids {
		s.Describe(n.log)
	}
	n.initialized = true
	return nil
}

// SetPosition moves a solid. It waits for any in-flight kernel, so tracking
// never observes a transformation half updated.
func (n *Navigator) SetPosition(id int32, xyz mgl64.Vec3) error {
	s, err := n.Solid(id)
	if err != nil {
		return err
	}
	release := n.dev.HostAccess()
	defer release()
	s.SetPosition(xyz)
	return n.refreshIndex()
}

// SetRotation rotates a solid, angles in radians around X, Y and Z.
func (n *Navigator) SetRotation(id int32, angles mgl64.Vec3) error {
	s, err := n.Solid(id)
	if err != nil {
		return err
	}
	release := n.dev.HostAccess()
	defer release()
	s.SetRotation(angles)
	return n.refreshIndex()
}

func (n *Navigator) refreshIndex() error {
	if !n.initialized {
		return nil
	}
	return n.buildIndex()
}
