package navigator

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"go.uber.org/zap"
)

// VoxelizedSolid is a regular grid of voxels, each carrying a material label.
// The grid is centered on the local origin.
type VoxelizedSolid struct {
	solidCore
	dims   [3]int
	size   mgl64.Vec3
	labels []int32
	buf    *compute.Buffer[int32]
	dev    *compute.Device
}

var _ Solid = (*VoxelizedSolid)(nil)

// NewVoxelizedSolid builds a grid of dims voxels of the given size. labels holds
// one index into materials per voxel, x fastest then y then z.
func NewVoxelizedSolid(dev *compute.Device, name string, dims [3]int, size mgl64.Vec3, labels []int32, materials []string) (*VoxelizedSolid, error) {
	n := 1
	for a := 0; a < 3; a++ {
		if dims[a] <= 0 {
			return nil, ConfigError("VoxelizedSolid", "Initialize", "solid %q: non positive dimensions %v", name, dims)
		}
		if !(size[a] > 0) || math.IsInf(size[a], 0) {
			return nil, ConfigError("VoxelizedSolid", "Initialize", "solid %q: zero sized voxels %v", name, size)
		}
		n *= dims[a]
	}
	if len(labels) != n {
		return nil, ConfigError("VoxelizedSolid", "Initialize", "solid %q: %d labels for %d voxels", name, len(labels), n)
	}
	if len(materials) == 0 {
		return nil, ConfigError("VoxelizedSolid", "Initialize", "solid %q: no material", name)
	}
	for i, l := range labels {
		if l < 0 || int(l) >= len(materials) {
			return nil, ConfigError("VoxelizedSolid", "Initialize", "solid %q: voxel %d has label %d, only %d materials", name, i, l, len(materials))
		}
	}

	buf, err := compute.Allocate[int32](dev, "VoxelizedSolid", n)
	if err != nil {
		return nil, err
	}
	data, unmap := buf.Map()
	copy(data, labels)
	unmap()

	s := &VoxelizedSolid{
		solidCore: newSolidCore(name, materials),
		dims:      dims,
		size:      size,
		labels:    buf.Device(),
		buf:       buf,
		dev:       dev,
	}
	for a := 0; a < 3; a++ {
		half := float64(dims[a]) * size[a] * 0.5
		s.obb.Min[a] = -half
		s.obb.Max[a] = half
	}
	return s, nil
}

func (s *VoxelizedSolid) Kind() SolidKind { return SolidVoxelized }

func (s *VoxelizedSolid) Dimensions() [3]int    { return s.dims }
func (s *VoxelizedSolid) VoxelSize() mgl64.Vec3 { return s.size }
func (s *VoxelizedSolid) NumberOfVoxels() int   { return s.dims[0] * s.dims[1] * s.dims[2] }
func (s *VoxelizedSolid) idx(i, j, k int) int   { return i + s.dims[0]*(j+s.dims[1]*k) }

func (s *VoxelizedSolid) unidx(r int) (i, j, k int) {
	i = r % s.dims[0]
	r /= s.dims[0]
	return i, r % s.dims[1], r / s.dims[1]
}

// EnableDosimetry attaches a per voxel accumulator.
func (s *VoxelizedSolid) EnableDosimetry() error {
	if s.acc != nil {
		return nil
	}
	acc, err := NewAccumulator(s.dev, "VoxelizedSolid", s.NumberOfVoxels())
	if err != nil {
		return err
	}
	s.acc = acc
	return nil
}

// VoxelIndex returns the voxel holding a local point, clamped to the grid.
func (s *VoxelizedSolid) VoxelIndex(local mgl64.Vec3) (i, j, k int) {
	var ijk [3]int
	for a := 0; a < 3; a++ {
		v := int(math.Floor((local[a] - s.obb.Min[a]) / s.size[a]))
		if v < 0 {
			v = 0
		} else if v >= s.dims[a] {
			v = s.dims[a] - 1
		}
		ijk[a] = v
	}
	return ijk[0], ijk[1], ijk[2]
}

func (s *VoxelizedSolid) ResolveMaterialAt(local mgl64.Vec3) (int32, int) {
	r := s.idx(s.VoxelIndex(local))
	return s.material(s.labels[r]), r
}

// BoundaryDistance returns the distance to the nearest wall of voxel region and
// whether the voxel behind that wall is outside the grid.
func (s *VoxelizedSolid) BoundaryDistance(local, dir mgl64.Vec3, region int) (float64, bool) {
	i, j, k := s.unidx(region)
	ijk := [3]int{i, j, k}
	best, axis := math.Inf(1), -1
	for a := 0; a < 3; a++ {
		d := dir[a]
		if d < parallelEps && d > -parallelEps {
			continue
		}
		next := ijk[a]
		if d > 0 {
			next++
		}
		wall := s.obb.Min[a] + float64(next)*s.size[a]
		t := (wall - local[a]) / d
		if t < best {
			best, axis = t, a
		}
	}
	if axis < 0 {
		return OutOfWorld, true
	}
	if best < 0 {
		best = 0
	}
	if dir[axis] > 0 {
		return best, ijk[axis]+1 >= s.dims[axis]
	}
	return best, ijk[axis]-1 < 0
}

func (s *VoxelizedSolid) Describe(log *zap.Logger) {
	s.describe(log, SolidVoxelized).Info("solid",
		zap.Ints("dimensions", s.dims[:]),
		zap.Float64s("voxel_size", s.size[:]))
}

// Release frees the device memory.
func (s *VoxelizedSolid) Release() {
	s.buf.Release()
	if s.acc != nil {
		s.acc.Release()
	}
}
