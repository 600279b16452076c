package navigator

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"github.com/samber/lo"
)

// Particles is the primary particle stack, one slot per particle in a batch,
// stored as a structure of arrays on the compute device.
//
// Kernels read and write the arrays directly. Host code (sources, tests,
// readout) must hold the mapping returned by Map while touching them.
type Particles struct {
	E, TOF     []float64 // MeV, ns
	Px, Py, Pz []float64 // mm
	Dx, Dy, Dz []float64 // unit

	NavigatorDistance       []float64 // distance to the candidate solid or the next boundary
	NextInteractionDistance []float64 // remaining distance to the next discrete interaction

	EIndex         []int32 // energy bin cache
	SolidID        []int32
	CandidateSolid []int32
	Material       []int32 // last resolved material
	Steps          []int32

	NextProcess []uint8
	Status      []uint8
	Level       []uint8
	Kind        []uint8
	Flags       []uint8

	// Number of active slots, at most Capacity.
	Number int

	dev     *compute.Device
	buffers []compute.Releaser
}

const particlesComponent = "PrimaryParticles"

// NewParticles allocates a stack able to hold capacity particles.
func NewParticles(dev *compute.Device, capacity int) (*Particles, error) {
	p := &Particles{dev: dev}
	for _, dst := range []*[]float64{
		&p.E, &p.TOF, &p.Px, &p.Py, &p.Pz, &p.Dx, &p.Dy, &p.Dz,
		&p.NavigatorDistance, &p.NextInteractionDistance,
	} {
		b, err := compute.Allocate[float64](dev, particlesComponent, capacity)
		if err != nil {
			p.Release()
			return nil, err
		}
		p.buffers = append(p.buffers, b)
		*dst = b.Device()
	}
	for _, dst := range []*[]int32{&p.EIndex, &p.SolidID, &p.CandidateSolid, &p.Material, &p.Steps} {
		b, err := compute.Allocate[int32](dev, particlesComponent, capacity)
		if err != nil {
			p.Release()
			return nil, err
		}
		p.buffers = append(p.buffers, b)
		*dst = b.Device()
	}
	for _, dst := range []*[]uint8{&p.NextProcess, &p.Status, &p.Level, &p.Kind, &p.Flags} {
		b, err := compute.Allocate[uint8](dev, particlesComponent, capacity)
		if err != nil {
			p.Release()
			return nil, err
		}
		p.buffers = append(p.buffers, b)
		*dst = b.Device()
	}
	return p, nil
}

// Capacity returns the number of slots.
func (p *Particles) Capacity() int { return len(p.E) }

// Map grants host access to every array until the returned func is called.
func (p *Particles) Map() func() { return p.dev.HostAccess() }

// Release frees the device memory.
func (p *Particles) Release() {
	for _, b := range p.buffers {
		b.Release()
	}
	p.buffers = nil
}

// Reset recycles the stack for a new batch of n particles: every slot is alive,
// in the world, with nothing sampled yet.
func (p *Particles) Reset(n int) error {
	if n < 0 || n > p.Capacity() {
		return ConfigError("Particles", "Reset", "batch of %d particles exceeds capacity %d", n, p.Capacity())
	}
	p.Number = n
	for i := 0; i < n; i++ {
		p.E[i], p.TOF[i] = 0, 0
		p.Px[i], p.Py[i], p.Pz[i] = 0, 0, 0
		p.Dx[i], p.Dy[i], p.Dz[i] = 0, 0, 1
		p.NavigatorDistance[i] = OutOfWorld
		p.NextInteractionDistance[i] = 0
		p.EIndex[i] = 0
		p.SolidID[i] = NoSolid
		p.CandidateSolid[i] = NoSolid
		p.Material[i] = NoMaterial
		p.Steps[i] = 0
		p.NextProcess[i] = NoProcess
		p.Status[i] = StatusAlive
		p.Level[i] = 0
		p.Kind[i] = KindPhoton
		p.Flags[i] = 0
	}
	return nil
}

// Set fills slot i with a primary particle.
func (p *Particles) Set(i int, kind uint8, energy float64, pos, dir mgl64.Vec3) {
	p.Kind[i] = kind
	p.E[i] = energy
	p.SetPosition(i, pos)
	p.SetDirection(i, dir)
}

func (p *Particles) Position(i int) mgl64.Vec3 {
	return mgl64.Vec3{p.Px[i], p.Py[i], p.Pz[i]}
}

func (p *Particles) SetPosition(i int, v mgl64.Vec3) {
	p.Px[i], p.Py[i], p.Pz[i] = v[0], v[1], v[2]
}

func (p *Particles) Direction(i int) mgl64.Vec3 {
	return mgl64.Vec3{p.Dx[i], p.Dy[i], p.Dz[i]}
}

// SetDirection stores d normalized.
func (p *Particles) SetDirection(i int, d mgl64.Vec3) {
	d = normalize(d)
	p.Dx[i], p.Dy[i], p.Dz[i] = d[0], d[1], d[2]
}

// Terminate sets a terminal status and its flag.
func (p *Particles) Terminate(i int, status, flag uint8) {
	p.Status[i] = status
	p.Flags[i] |= flag
}

// CountStatus counts active particles with the given status.
func (p *Particles) CountStatus(status uint8) int {
	return lo.Count(p.Status[:p.Number], status)
}

// CountFlag counts active particles carrying flag.
func (p *Particles) CountFlag(flag uint8) int {
	return lo.CountBy(p.Flags[:p.Number], func(f uint8) bool { return f&flag != 0 })
}
