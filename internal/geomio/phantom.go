package geomio

import (
	"github.com/deadsy/sdfx/sdf"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// PhantomCreator fills a voxel label grid with analytic shapes. The grid is
// centered on the local origin like a voxelized solid; a voxel takes the
// material of the last shape containing its center.
type PhantomCreator struct {
	dims      [3]int
	size      mgl64.Vec3
	labels    []int32
	materials []string
	log       *zap.Logger
}

// NewPhantomCreator starts a grid filled with the background material.
func NewPhantomCreator(dims [3]int, voxelSize mgl64.Vec3, background string, log *zap.Logger) (*PhantomCreator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	n := 1
	for a := 0; a < 3; a++ {
		if dims[a] <= 0 || !(voxelSize[a] > 0) {
			return nil, navigator.ConfigError("PhantomCreator", "Initialize", "bad grid %v x %v", dims, voxelSize)
		}
		n *= dims[a]
	}
	if background == "" {
		return nil, navigator.ConfigError("PhantomCreator", "Initialize", "background material is required")
	}
	return &PhantomCreator{
		dims:      dims,
		size:      voxelSize,
		labels:    make([]int32, n),
		materials: []string{background},
		log:       log,
	}, nil
}

// label returns the label of a material, adding it on first use.
func (c *PhantomCreator) label(material string) int32 {
	if i := lo.IndexOf(c.materials, material); i >= 0 {
		return int32(i)
	}
	c.materials = append(c.materials, material)
	return int32(len(c.materials) - 1)
}

// Center returns the center of voxel (i, j, k) in the local frame.
func (c *PhantomCreator) Center(i, j, k int) mgl64.Vec3 {
	ijk := [3]int{i, j, k}
	var p mgl64.Vec3
	for a := 0; a < 3; a++ {
		p[a] = (float64(ijk[a])+0.5-float64(c.dims[a])*0.5) * c.size[a]
	}
	return p
}

// Add paints a shape made of material and returns the number of voxels it
// claimed.
func (c *PhantomCreator) Add(s Shape, material string) (int, error) {
	if material == "" {
		return 0, navigator.ConfigError("PhantomCreator", "Add", "%s without material", s.Kind)
	}
	field, err := s.SDF()
	if err != nil {
		return 0, err
	}
	label := c.label(material)
	painted := 0
	r := 0
	for k := 0; k < c.dims[2]; k++ {
		for j := 0; j < c.dims[1]; j++ {
			for i := 0; i < c.dims[0]; i++ {
				p := c.Center(i, j, k)
				if inside(field, p) {
					c.labels[r] = label
					painted++
				}
				r++
			}
		}
	}
	c.log.Debug("phantom shape",
		zap.String("kind", string(s.Kind)),
		zap.String("material", material),
		zap.Int("voxels", painted))
	return painted, nil
}

func inside(field sdf.SDF3, p mgl64.Vec3) bool {
	return field.Evaluate(vec(p)) <= 0
}

// Dimensions returns the grid size in voxels.
func (c *PhantomCreator) Dimensions() [3]int { return c.dims }

// VoxelSize returns the voxel size, mm.
func (c *PhantomCreator) VoxelSize() mgl64.Vec3 { return c.size }

// Labels returns one material label per voxel, x fastest.
func (c *PhantomCreator) Labels() []int32 { return c.labels }

// Materials returns the label to material table, background first.
func (c *PhantomCreator) Materials() []string { return c.materials }

// Build turns the grid into a voxelized solid.
func (c *PhantomCreator) Build(dev *compute.Device, name string) (*navigator.VoxelizedSolid, error) {
	return navigator.NewVoxelizedSolid(dev, name, c.dims, c.size, c.labels, c.materials)
}
