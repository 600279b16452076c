package navigator

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

type SolidKind uint8

const (
	SolidVoxelized SolidKind = iota
	SolidMeshed
)

func (k SolidKind) String() string {
	switch k {
	case SolidVoxelized:
		return "voxelized"
	case SolidMeshed:
		return "meshed"
	default:
		return "unknown"
	}
}

// Solid is a trackable region registered in a Navigator. Both variants share an
// OBB and a transformation; what differs is how the interior is resolved.
//
// ResolveMaterialAt and BoundaryDistance work in the local frame. A region is a
// variant specific index (a voxel for voxelized solids, inside/outside for
// meshes) that also addresses the accumulator.
type Solid interface {
	ID() int32
	Name() string
	Kind() SolidKind
	OBB() *OBB
	Transformation() *Transformation
	Accumulator() *Accumulator

	// SetPosition and SetRotation refresh the matrix and OBB before returning.
	SetPosition(xyz mgl64.Vec3)
	SetRotation(angles mgl64.Vec3)

	// Materials lists the material names referenced by the solid content.
	Materials() []string
	// BindMaterials resolves Materials against the cross-section table.
	BindMaterials(lookup func(name string) (int, bool)) error

	ResolveMaterialAt(local mgl64.Vec3) (material int32, region int)
	// BoundaryDistance returns the distance to the next region boundary and
	// whether crossing it leaves the solid.
	BoundaryDistance(local, dir mgl64.Vec3, region int) (dist float64, exits bool)

	Describe(log *zap.Logger)

	assignID(id int32) error
}

// solidCore is the state shared by every solid variant.
type solidCore struct {
	id          int32
	name        string
	obb         OBB
	transform   *Transformation
	materials   []string
	materialIDs []int32
	acc         *Accumulator
}

func newSolidCore(name string, materials []string) solidCore {
	t := NewTransformation()
	return solidCore{
		id:        NoSolid,
		name:      name,
		obb:       OBB{transform: t},
		transform: t,
		materials: materials,
	}
}

func (s *solidCore) ID() int32                       { return s.id }
func (s *solidCore) Name() string                    { return s.name }
func (s *solidCore) OBB() *OBB                       { return &s.obb }
func (s *solidCore) Transformation() *Transformation { return s.transform }
func (s *solidCore) Accumulator() *Accumulator       { return s.acc }
func (s *solidCore) Materials() []string             { return s.materials }

func (s *solidCore) assignID(id int32) error {
	if s.id != NoSolid {
		return ConfigError("Solid", "Register", "solid %q already registered with id %d", s.name, s.id)
	}
	s.id = id
	return nil
}

func (s *solidCore) SetPosition(xyz mgl64.Vec3) {
	s.transform.SetTranslation(xyz)
	s.transform.UpdateTransformationMatrix()
}

func (s *solidCore) SetRotation(angles mgl64.Vec3) {
	s.transform.SetRotation(angles)
	s.transform.UpdateTransformationMatrix()
}

func (s *solidCore) BindMaterials(lookup func(name string) (int, bool)) error {
	ids := make([]int32, len(s.materials))
	for i, name := range s.materials {
		id, ok := lookup(name)
		if !ok {
			return ConfigError("Solid", "Initialize", "solid %q references unregistered material %q", s.name, name)
		}
		ids[i] = int32(id)
	}
	s.materialIDs = ids
	return nil
}

// material maps a label to its table index, NoMaterial until the solid is
// bound.
func (s *solidCore) material(label int32) int32 {
	if int(label) >= len(s.materialIDs) {
		return NoMaterial
	}
	return s.materialIDs[label]
}

func (s *solidCore) describe(log *zap.Logger, kind SolidKind) *zap.Logger {
	minP, maxP := s.obb.GlobalBounds()
	pos, rot := s.transform.Translation(), s.transform.Rotation()
	return log.With(
		zap.Int32("id", s.id),
		zap.String("solid", s.name),
		zap.Stringer("kind", kind),
		zap.Float64s("position", pos[:]),
		zap.Float64s("rotation", rot[:]),
		zap.Float64s("border_min", minP[:]),
		zap.Float64s("border_max", maxP[:]),
		zap.Strings("materials", s.materials),
		zap.Bool("dosimetry", s.acc != nil),
	)
}
