package geomio

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/deadsy/sdfx/render"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
	"github.com/pkg/errors"
)

const (
	stlHeaderSize = 80
	stlRecordSize = 50 // normal, 3 vertices, attribute
)

// ReadSTL loads a binary STL file. Vertices are returned in mm together with
// the bounds of the mesh.
func ReadSTL(path string) (tris []navigator.Triangle, minP, maxP mgl64.Vec3, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, minP, maxP, errors.Wrapf(err, "MeshedSolid::LoadMesh: %s", path)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, minP, maxP, errors.Wrapf(err, "MeshedSolid::LoadMesh: %s", path)
	}
	tris, err = DecodeSTL(bufio.NewReader(f), st.Size())
	if err != nil {
		return nil, minP, maxP, errors.Wrapf(err, "MeshedSolid::LoadMesh: %s", path)
	}
	minP, maxP = tris[0].Bounds()
	for i := 1; i < len(tris); i++ {
		a, b := tris[i].Bounds()
		for k := 0; k < 3; k++ {
			minP[k] = math.Min(minP[k], a[k])
			maxP[k] = math.Max(maxP[k], b[k])
		}
	}
	return tris, minP, maxP, nil
}

// DecodeSTL reads a binary STL stream of the given total size.
func DecodeSTL(r io.Reader, size int64) ([]navigator.Triangle, error) {
	header := make([]byte, stlHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, navigator.ConfigError("MeshedSolid", "LoadMesh", "short STL header: %v", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, navigator.ConfigError("MeshedSolid", "LoadMesh", "missing triangle count: %v", err)
	}
	if count == 0 {
		return nil, navigator.ConfigError("MeshedSolid", "LoadMesh", "mesh without triangles")
	}
	if want := stlHeaderSize + 4 + int64(count)*stlRecordSize; size >= 0 && size != want {
		// ASCII files and truncated ones both land here
		return nil, navigator.ConfigError("MeshedSolid", "LoadMesh", "not a binary STL: %d bytes for %d triangles, want %d", size, count, want)
	}

	var rec struct {
		Normal [3]float32
		V      [3][3]float32
		Attr   uint16
	}
	tris := make([]navigator.Triangle, 0, count)
	for i := uint32(0); i < count; i++ {
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, navigator.ConfigError("MeshedSolid", "LoadMesh", "triangle %d: %v", i, err)
		}
		var v [3]mgl64.Vec3
		for k := 0; k < 3; k++ {
			v[k] = mgl64.Vec3{float64(rec.V[k][0]), float64(rec.V[k][1]), float64(rec.V[k][2])}
		}
		tris = append(tris, navigator.NewTriangle(v[0], v[1], v[2]))
	}
	return tris, nil
}

// WriteSTL saves triangles as a binary STL file.
func WriteSTL(path string, tris []navigator.Triangle) error {
	if err := render.SaveSTL(path, toSDFX(tris)); err != nil {
		return errors.Wrapf(err, "MeshedSolid::SaveMesh: %s", path)
	}
	return nil
}
