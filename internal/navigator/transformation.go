package navigator

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Transformation places a solid or a source in the global frame.
// The matrix maps local coordinates to global ones:
//
//	M = T · Rz · Ry · Rx · A
//
// so the local axis matrix A applies first, then the Euler rotation (X, then Y,
// then Z) and finally the translation T. Setters only mark the matrix dirty;
// UpdateTransformationMatrix must run before the matrix is read again.
type Transformation struct {
	translation mgl64.Vec3
	rotation    mgl64.Vec3 // radians
	axis        mgl64.Mat3

	matrix  mgl64.Mat4
	inverse mgl64.Mat4
	dirty   bool
}

// NewTransformation returns an identity placement, already up to date.
func NewTransformation() *Transformation {
	t := &Transformation{axis: mgl64.Ident3()}
	t.dirty = true
	t.UpdateTransformationMatrix()
	return t
}

func (t *Transformation) SetTranslation(v mgl64.Vec3) {
	t.translation = v
	t.dirty = true
}

// SetRotation takes Euler angles in radians around X, Y and Z.
func (t *Transformation) SetRotation(angles mgl64.Vec3) {
	t.rotation = angles
	t.dirty = true
}

// SetAxisTransformation sets the local axis matrix from its three rows.
func (t *Transformation) SetAxisTransformation(axisX, axisY, axisZ mgl64.Vec3) {
	t.axis = mgl64.Mat3FromRows(axisX, axisY, axisZ)
	t.dirty = true
}

func (t *Transformation) Translation() mgl64.Vec3 { return t.translation }
func (t *Transformation) Rotation() mgl64.Vec3    { return t.rotation }

// Dirty reports whether a setter ran after the last update.
func (t *Transformation) Dirty() bool { return t.dirty }

func rotFromAngles(a mgl64.Vec3) mgl64.Mat4 {
	R := mgl64.HomogRotate3DX(a.X())
	R = mgl64.HomogRotate3DY(a.Y()).Mul4(R)
	R = mgl64.HomogRotate3DZ(a.Z()).Mul4(R)
	return R
}

// UpdateTransformationMatrix recomputes the matrix and its inverse. It is a
// no-op when nothing changed, so repeated calls return bit-identical matrices.
func (t *Transformation) UpdateTransformationMatrix() {
	if !t.dirty {
		return
	}
	T := mgl64.Translate3D(t.translation.X(), t.translation.Y(), t.translation.Z())
	t.matrix = T.Mul4(rotFromAngles(t.rotation)).Mul4(t.axis.Mat4())
	t.inverse = t.matrix.Inv()
	t.dirty = false
}

// GetTransformationMatrix returns the local to global matrix.
// Precondition: UpdateTransformationMatrix ran after the last setter. While
// Dirty reports true the matrix of the previous update is returned.
func (t *Transformation) GetTransformationMatrix() mgl64.Mat4 {
	return t.matrix
}

// LocalToGlobalPosition maps a local point to the global frame.
func (t *Transformation) LocalToGlobalPosition(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, t.matrix)
}

// GlobalToLocalPosition maps a global point to the local frame.
func (t *Transformation) GlobalToLocalPosition(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, t.inverse)
}

// LocalToGlobalDirection rotates a local direction into the global frame.
func (t *Transformation) LocalToGlobalDirection(d mgl64.Vec3) mgl64.Vec3 {
	return normalize(mgl64.TransformNormal(d, t.matrix))
}

// GlobalToLocalDirection rotates a global direction into the local frame.
func (t *Transformation) GlobalToLocalDirection(d mgl64.Vec3) mgl64.Vec3 {
	return normalize(mgl64.TransformNormal(d, t.inverse))
}

func normalize(v mgl64.Vec3) mgl64.Vec3 {
	if l := v.Len(); l > 0 {
		return v.Mul(1 / l)
	}
	return v
}
