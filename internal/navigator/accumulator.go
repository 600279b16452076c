package navigator

import (
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"go.uber.org/atomic"
)

// Accumulator collects dosimetry per region (voxel) of a solid. Every update is
// atomic, so concurrent kernels never lose a deposit.
type Accumulator struct {
	edep   *compute.Buffer[atomic.Float64]
	edep2  *compute.Buffer[atomic.Float64]
	hits   *compute.Buffer[atomic.Uint64]
	tracks *compute.Buffer[atomic.Uint64]
}

// Dose is a host copy of an Accumulator.
type Dose struct {
	Edep        []float64 // MeV
	EdepSquared []float64
	Hits        []uint64 // interactions
	Tracks      []uint64 // particle steps started in the region
}

// NewAccumulator allocates n zeroed cells for component.
func NewAccumulator(dev *compute.Device, component string, n int) (*Accumulator, error) {
	a := &Accumulator{}
	var err error
	if a.edep, err = compute.Allocate[atomic.Float64](dev, component, n); err != nil {
		return nil, err
	}
	if a.edep2, err = compute.Allocate[atomic.Float64](dev, component, n); err != nil {
		a.Release()
		return nil, err
	}
	if a.hits, err = compute.Allocate[atomic.Uint64](dev, component, n); err != nil {
		a.Release()
		return nil, err
	}
	if a.tracks, err = compute.Allocate[atomic.Uint64](dev, component, n); err != nil {
		a.Release()
		return nil, err
	}
	return a, nil
}

// Len returns the number of cells.
func (a *Accumulator) Len() int { return a.edep.Len() }

// Deposit records an interaction in region, adding e when positive.
func (a *Accumulator) Deposit(region int, e float64) {
	a.hits.Device()[region].Inc()
	if e <= 0 {
		return
	}
	a.edep.Device()[region].Add(e)
	a.edep2.Device()[region].Add(e * e)
}

// Track records a tracking step starting in region.
func (a *Accumulator) Track(region int) {
	a.tracks.Device()[region].Inc()
}

// Snapshot copies the accumulated values to the host.
func (a *Accumulator) Snapshot() Dose {
	edep, unmap := a.edep.Map()
	defer unmap()
	edep2 := a.edep2.Device()
	hits := a.hits.Device()
	tracks := a.tracks.Device()

	n := len(edep)
	d := Dose{
		Edep:        make([]float64, n),
		EdepSquared: make([]float64, n),
		Hits:        make([]uint64, n),
		Tracks:      make([]uint64, n),
	}
	for i := 0; i < n; i++ {
		d.Edep[i] = edep[i].Load()
		d.EdepSquared[i] = edep2[i].Load()
		d.Hits[i] = hits[i].Load()
		d.Tracks[i] = tracks[i].Load()
	}
	return d
}

// Total returns the summed energy deposit.
func (d Dose) Total() float64 {
	sum := 0.0
	for _, e := range d.Edep {
		sum += e
	}
	return sum
}

// Release frees the device memory.
func (a *Accumulator) Release() {
	if a.edep != nil {
		a.edep.Release()
	}
	if a.edep2 != nil {
		a.edep2.Release()
	}
	if a.hits != nil {
		a.hits.Release()
	}
	if a.tracks != nil {
		a.tracks.Release()
	}
}
