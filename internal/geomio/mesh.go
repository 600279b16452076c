package geomio

import (
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
)

// DefaultMeshCells is the marching cubes resolution along the longest axis.
const DefaultMeshCells = 64

// AnalyticMesh tessellates a shape with marching cubes. cells <= 0 uses
// DefaultMeshCells.
func AnalyticMesh(s Shape, cells int) ([]navigator.Triangle, error) {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	field, err := s.SDF()
	if err != nil {
		return nil, err
	}
	mesh := render.ToTriangles(field, render.NewMarchingCubesUniform(cells))
	tris := fromSDFX(mesh)
	if len(tris) == 0 {
		return nil, navigator.ConfigError("Shape", "Mesh", "%s produced no triangle at %d cells", s.Kind, cells)
	}
	return tris, nil
}

// fromSDFX drops degenerate facets, which marching cubes emits on flat faces.
func fromSDFX(mesh []*sdf.Triangle3) []navigator.Triangle {
	tris := make([]navigator.Triangle, 0, len(mesh))
	for _, t := range mesh {
		a := mgl64.Vec3{t[0].X, t[0].Y, t[0].Z}
		b := mgl64.Vec3{t[1].X, t[1].Y, t[1].Z}
		c := mgl64.Vec3{t[2].X, t[2].Y, t[2].Z}
		if b.Sub(a).Cross(c.Sub(a)).LenSqr() == 0 {
			continue
		}
		tris = append(tris, navigator.NewTriangle(a, b, c))
	}
	return tris
}

func toSDFX(tris []navigator.Triangle) []*sdf.Triangle3 {
	mesh := make([]*sdf.Triangle3, len(tris))
	for i := range tris {
		mesh[i] = &sdf.Triangle3{vec(tris[i].V[0]), vec(tris[i].V[1]), vec(tris[i].V[2])}
	}
	return mesh
}
