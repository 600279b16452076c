// Package geomio loads and generates solid geometry: binary STL meshes,
// analytic meshes, voxelized phantoms and raw dose files.
package geomio

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
)

// ShapeKind names an analytic volume.
type ShapeKind string

const (
	ShapeBox    ShapeKind = "box"
	ShapeTube   ShapeKind = "tube" // cylinder along local Z
	ShapeSphere ShapeKind = "sphere"
)

// Shape is an analytic volume in a solid's local frame, mm.
type Shape struct {
	Kind   ShapeKind
	Center mgl64.Vec3
	Size   mgl64.Vec3 // box full lengths
	Radius float64
	Height float64 // tube full length
}

// SDF returns the signed distance field of the shape, negative inside.
func (s Shape) SDF() (sdf.SDF3, error) {
	var (
		body sdf.SDF3
		err  error
	)
	switch s.Kind {
	case ShapeBox:
		body, err = sdf.Box3D(v3.Vec{X: s.Size[0], Y: s.Size[1], Z: s.Size[2]}, 0)
	case ShapeTube:
		body, err = sdf.Cylinder3D(s.Height, s.Radius, 0)
	case ShapeSphere:
		body, err = sdf.Sphere3D(s.Radius)
	default:
		return nil, navigator.ConfigError("Shape", "SDF", "unknown shape kind %q", s.Kind)
	}
	if err != nil {
		return nil, navigator.ConfigError("Shape", "SDF", "%s: %v", s.Kind, err)
	}
	if s.Center == (mgl64.Vec3{}) {
		return body, nil
	}
	return sdf.Transform3D(body, sdf.Translate3d(vec(s.Center))), nil
}

func vec(p mgl64.Vec3) v3.Vec { return v3.Vec{X: p[0], Y: p[1], Z: p[2]} }
