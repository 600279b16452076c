package navigator

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"go.uber.org/zap"
)

// Regions of a meshed solid.
const (
	MeshInside   = 0
	MeshEnvelope = 1
)

// parityDir is the probe direction of the containment test, skewed so that it
// is unlikely to graze edges of axis aligned meshes.
var parityDir = normalize(mgl64.Vec3{0.5727, 0.6173, 0.5393})

// MeshedSolid is a closed triangle mesh. Points inside the mesh are made of the
// mesh material; the rest of its OBB is filled with the envelope material.
type MeshedSolid struct {
	solidCore
	tris []Triangle
	root *MeshNode
	buf  *compute.Buffer[Triangle]
	dev  *compute.Device
}

var _ Solid = (*MeshedSolid)(nil)

// NewMeshedSolid builds a meshed solid from local frame triangles. The OBB is
// the mesh bounds grown by 10% and rounded outward to whole millimeters.
func NewMeshedSolid(dev *compute.Device, name string, tris []Triangle, material, envelope string) (*MeshedSolid, error) {
	if len(tris) == 0 {
		return nil, ConfigError("MeshedSolid", "Initialize", "solid %q: empty mesh", name)
	}
	if material == "" || envelope == "" {
		return nil, ConfigError("MeshedSolid", "Initialize", "solid %q: material and envelope are required", name)
	}
	buf, err := compute.Allocate[Triangle](dev, "MeshedSolid", len(tris))
	if err != nil {
		return nil, err
	}
	data, unmap := buf.Map()
	copy(data, tris)
	unmap()

	s := &MeshedSolid{
		solidCore: newSolidCore(name, []string{material, envelope}),
		tris:      buf.Device(),
		buf:       buf,
		dev:       dev,
	}
	minP, maxP := s.tris[0].Bounds()
	for i := 1; i < len(s.tris); i++ {
		a, b := s.tris[i].Bounds()
		minP, maxP = aabbUnion(minP, maxP, a, b)
	}
	for a := 0; a < 3; a++ {
		c := (minP[a] + maxP[a]) * 0.5
		half := (maxP[a] - minP[a]) * 0.5 * 1.1
		s.obb.Min[a] = math.Floor(c - half)
		s.obb.Max[a] = math.Ceil(c + half)
	}
	s.root = buildMeshBVH(s.tris)
	return s, nil
}

func (s *MeshedSolid) Kind() SolidKind        { return SolidMeshed }
func (s *MeshedSolid) NumberOfTriangles() int { return len(s.tris) }
func (s *MeshedSolid) Root() *MeshNode        { return s.root }
func (s *MeshedSolid) Triangles() []Triangle  { return s.tris }

// EnableDosimetry attaches an accumulator with one cell per region.
func (s *MeshedSolid) EnableDosimetry() error {
	if s.acc != nil {
		return nil
	}
	acc, err := NewAccumulator(s.dev, "MeshedSolid", 2)
	if err != nil {
		return err
	}
	s.acc = acc
	return nil
}

// Inside is the parity containment test against the mesh.
func (s *MeshedSolid) Inside(local mgl64.Vec3) bool {
	if !s.obb.Contains(local) {
		return false
	}
	return s.root.crossings(s.tris, local, parityDir)%2 == 1
}

func (s *MeshedSolid) ResolveMaterialAt(local mgl64.Vec3) (int32, int) {
	if s.Inside(local) {
		return s.material(MeshInside), MeshInside
	}
	return s.material(MeshEnvelope), MeshEnvelope
}

// BoundaryDistance returns the distance to the next mesh facet, or to the OBB
// exit when no facet is closer.
func (s *MeshedSolid) BoundaryDistance(local, dir mgl64.Vec3, region int) (float64, bool) {
	exit := s.obb.ExitDistance(local, dir)
	if t, ok := s.root.nearest(s.tris, local, dir, exit); ok && t < exit {
		return t, false
	}
	return exit, true
}

func (s *MeshedSolid) Describe(log *zap.Logger) {
	s.describe(log, SolidMeshed).Info("solid", zap.Int("triangles", len(s.tris)))
}

// Release frees the device memory.
func (s *MeshedSolid) Release() {
	s.buf.Release()
	if s.acc != nil {
		s.acc.Release()
	}
}
