// Package source produces primary particles.
package source

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
	"go.uber.org/zap"
)

// Options describe an X-ray cone beam source. Angles are in radians.
type Options struct {
	Name      string
	Kind      uint8
	Position  mgl64.Vec3
	Rotation  mgl64.Vec3
	LocalAxis [3]mgl64.Vec3 // rows, identity when zero
	Aperture  float64       // cone half-angle around local +Z
	FocalSpot mgl64.Vec3    // full sizes of the emitting box along local axes, mm
	Energy    float64       // MeV, monoenergetic mode
	Spectrum  [][2]float64  // [energy MeV, weight], overrides Energy
}

// XRaySource emits from a focal spot into a cone around its local +Z axis.
type XRaySource struct {
	name      string
	kind      uint8
	transform *navigator.Transformation
	cosAp     float64
	focal     mgl64.Vec3

	energy   float64
	energies []float64
	cdf      []float64 // cumulative weights, last = 1

	dev  *compute.Device
	rngs []*rand.Rand
	log  *zap.Logger
}

// New validates opts and places the source.
func New(opts Options, dev *compute.Device, seed int64, log *zap.Logger) (*XRaySource, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dev == nil {
		return nil, navigator.ConfigError("XRaySource", "Initialize", "compute device is required")
	}
	if opts.Aperture < 0 || opts.Aperture > math.Pi {
		return nil, navigator.ConfigError("XRaySource", "Initialize", "aperture %g rad outside [0, pi]", opts.Aperture)
	}
	for a := 0; a < 3; a++ {
		if opts.FocalSpot[a] < 0 {
			return nil, navigator.ConfigError("XRaySource", "Initialize", "negative focal spot %v", opts.FocalSpot)
		}
	}
	s := &XRaySource{
		name:   opts.Name,
		kind:   opts.Kind,
		cosAp:  math.Cos(opts.Aperture),
		focal:  opts.FocalSpot,
		energy: opts.Energy,
		dev:    dev,
		log:    log.Named("source"),
	}
	if err := s.setSpectrum(opts.Spectrum); err != nil {
		return nil, err
	}
	if len(s.energies) == 0 && !(opts.Energy > 0) {
		return nil, navigator.ConfigError("XRaySource", "Initialize", "energy must be positive, got %g", opts.Energy)
	}

	s.transform = navigator.NewTransformation()
	s.transform.SetTranslation(opts.Position)
	s.transform.SetRotation(opts.Rotation)
	if opts.LocalAxis != ([3]mgl64.Vec3{}) {
		m := mgl64.Mat3FromRows(opts.LocalAxis[0], opts.LocalAxis[1], opts.LocalAxis[2])
		if math.Abs(m.Det()) < 1e-12 {
			return nil, navigator.ConfigError("XRaySource", "Initialize", "singular local axis %v", opts.LocalAxis)
		}
		s.transform.SetAxisTransformation(opts.LocalAxis[0], opts.LocalAxis[1], opts.LocalAxis[2])
	}
	s.transform.UpdateTransformationMatrix()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.rngs = make([]*rand.Rand, dev.Workers())
	for wid := range s.rngs {
		s.rngs[wid] = rand.New(rand.NewSource(seed ^ int64(uint64(wid+1)*0xbf58476d1ce4e5b9)))
	}

	pos := s.transform.LocalToGlobalPosition(mgl64.Vec3{})
	dir := s.transform.LocalToGlobalDirection(mgl64.Vec3{0, 0, 1})
	s.log.Info("source",
		zap.String("name", s.name),
		zap.Float64s("position", pos[:]),
		zap.Float64s("direction", dir[:]),
		zap.Float64("aperture", opts.Aperture),
		zap.Float64s("focal_spot", s.focal[:]),
		zap.Int("spectrum_bins", len(s.energies)))
	return s, nil
}

func (s *XRaySource) setSpectrum(bins [][2]float64) error {
	if len(bins) == 0 {
		return nil
	}
	total := 0.0
	for _, b := range bins {
		if !(b[0] > 0) || b[1] < 0 {
			return navigator.ConfigError("XRaySource", "Initialize", "bad spectrum bin %v", b)
		}
		total += b[1]
	}
	if !(total > 0) {
		return navigator.ConfigError("XRaySource", "Initialize", "spectrum without weight")
	}
	s.energies = make([]float64, len(bins))
	s.cdf = make([]float64, len(bins))
	acc := 0.0
	for i, b := range bins {
		acc += b[1]
		s.energies[i] = b[0]
		s.cdf[i] = acc / total
	}
	s.cdf[len(s.cdf)-1] = 1
	return nil
}

func (s *XRaySource) Name() string                             { return s.name }
func (s *XRaySource) Transformation() *navigator.Transformation { return s.transform }

// Position returns the focal spot center in the global frame.
func (s *XRaySource) Position() mgl64.Vec3 {
	return s.transform.LocalToGlobalPosition(mgl64.Vec3{})
}

// SampleEnergy draws a primary energy, MeV.
func (s *XRaySource) SampleEnergy(rng *rand.Rand) float64 {
	if len(s.energies) == 0 {
		return s.energy
	}
	i := sort.SearchFloat64s(s.cdf, rng.Float64())
	if i >= len(s.energies) {
		i = len(s.energies) - 1
	}
	return s.energies[i]
}

// sampleLocal draws an emission point and direction in the local frame: a
// uniform point of the focal spot and a direction uniform over the cone cap.
func (s *XRaySource) sampleLocal(rng *rand.Rand) (pos, dir mgl64.Vec3) {
	for a := 0; a < 3; a++ {
		pos[a] = (rng.Float64() - 0.5) * s.focal[a]
	}
	cost := 1 - rng.Float64()*(1-s.cosAp)
	sint := math.Sqrt(math.Max(0, 1-cost*cost))
	phi := 2 * math.Pi * rng.Float64()
	dir = mgl64.Vec3{sint * math.Cos(phi), sint * math.Sin(phi), cost}
	return pos, dir
}

// Generate resets p to n fresh primaries in the global frame.
func (s *XRaySource) Generate(p *navigator.Particles, n int) error {
	release := p.Map()
	err := p.Reset(n)
	release()
	if err != nil {
		return err
	}
	s.dev.Dispatch("generate_primaries", n, func(wid, i int) {
		rng := s.rngs[wid]
		pos, dir := s.sampleLocal(rng)
		p.Set(i, s.kind, s.SampleEnergy(rng),
			s.transform.LocalToGlobalPosition(pos),
			s.transform.LocalToGlobalDirection(dir))
	})
	return nil
}
