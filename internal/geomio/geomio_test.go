package geomio

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
)

func tetra() []navigator.Triangle {
	a, b, c, d := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, mgl64.Vec3{0, 10, 0}, mgl64.Vec3{0, 0, 10}
	return []navigator.Triangle{
		navigator.NewTriangle(a, c, b),
		navigator.NewTriangle(a, b, d),
		navigator.NewTriangle(a, d, c),
		navigator.NewTriangle(b, c, d),
	}
}

func TestSTLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tetra.stl")
	if err := WriteSTL(path, tetra()); err != nil {
		t.Fatal(err)
	}
	tris, minP, maxP, err := ReadSTL(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(tris) != 4 {
		t.Fatalf("read %d triangles", len(tris))
	}
	if !minP.ApproxEqual(mgl64.Vec3{0, 0, 0}) || !maxP.ApproxEqual(mgl64.Vec3{10, 10, 10}) {
		t.Fatalf("bounds %v %v", minP, maxP)
	}
	for i, tri := range tris {
		for _, v := range tri.V {
			if v.Sub(tri.Center).Len() > tri.Radius+1e-9 {
				t.Fatalf("triangle %d: vertex outside its bounding sphere", i)
			}
		}
	}
}

func TestDecodeSTLRejects(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, stlHeaderSize))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(2))
	buf.Write(make([]byte, stlRecordSize)) // one record short

	if _, err := DecodeSTL(bytes.NewReader(buf.Bytes()), int64(buf.Len())); !errors.Is(err, navigator.ErrConfig) {
		t.Fatalf("truncated file: %v", err)
	}
	ascii := []byte("solid cube\nfacet normal 0 0 1\nendsolid cube\n")
	if _, err := DecodeSTL(bytes.NewReader(ascii), int64(len(ascii))); !errors.Is(err, navigator.ErrConfig) {
		t.Fatalf("ascii file: %v", err)
	}
	empty := append(make([]byte, stlHeaderSize), 0, 0, 0, 0)
	if _, err := DecodeSTL(bytes.NewReader(empty), int64(len(empty))); !errors.Is(err, navigator.ErrConfig) {
		t.Fatalf("empty mesh: %v", err)
	}
	if _, _, _, err := ReadSTL(filepath.Join(t.TempDir(), "missing.stl")); err == nil {
		t.Fatal("missing file must fail")
	}
}

func TestAnalyticMeshIsClosed(t *testing.T) {
	dev := compute.NewDevice(compute.Options{Workers: 2}, zaptest.NewLogger(t))
	tris, err := AnalyticMesh(Shape{Kind: ShapeSphere, Radius: 10}, 32)
	if err != nil {
		t.Fatal(err)
	}
	s, err := navigator.NewMeshedSolid(dev, "ball", tris, "Water", "Air")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Inside(mgl64.Vec3{1, 2, 3}) || !s.Inside(mgl64.Vec3{-8, 0, 0.5}) {
		t.Fatal("points well inside the sphere resolve outside")
	}
	if s.Inside(mgl64.Vec3{9, 9, 0}) || s.Inside(mgl64.Vec3{0, -10.8, 0.2}) {
		t.Fatal("points outside the sphere resolve inside")
	}
	// 10% growth of a 20 mm mesh, rounded outward
	if o := s.OBB(); o.Min[0] > -11 || o.Max[0] < 11 || o.Max[0] > 13 {
		t.Fatalf("OBB %v %v", o.Min, o.Max)
	}
}

func TestAnalyticMeshShapes(t *testing.T) {
	for _, s := range []Shape{
		{Kind: ShapeBox, Size: mgl64.Vec3{10, 20, 30}, Center: mgl64.Vec3{5, 0, 0}},
		{Kind: ShapeTube, Radius: 5, Height: 20},
	} {
		tris, err := AnalyticMesh(s, 24)
		if err != nil {
			t.Fatalf("%s: %v", s.Kind, err)
		}
		minP, maxP := tris[0].Bounds()
		for i := 1; i < len(tris); i++ {
			a, b := tris[i].Bounds()
			for k := 0; k < 3; k++ {
				minP[k] = math.Min(minP[k], a[k])
				maxP[k] = math.Max(maxP[k], b[k])
			}
		}
		want := s.Size
		if s.Kind == ShapeTube {
			want = mgl64.Vec3{10, 10, 20}
		}
		for k := 0; k < 3; k++ {
			// marching cubes is exact to about one cell
			cell := want[k] / 12
			if math.Abs((maxP[k]-minP[k])-want[k]) > cell {
				t.Fatalf("%s axis %d: extent %v, want %v", s.Kind, k, maxP[k]-minP[k], want[k])
			}
		}
		if c := (minP[0] + maxP[0]) / 2; math.Abs(c-s.Center[0]) > 1 {
			t.Fatalf("%s: center x %v", s.Kind, c)
		}
	}
	if _, err := AnalyticMesh(Shape{Kind: "cone"}, 8); !errors.Is(err, navigator.ErrConfig) {
		t.Fatalf("unknown kind: %v", err)
	}
}

func TestPhantomCreator(t *testing.T) {
	c, err := NewPhantomCreator([3]int{20, 20, 10}, mgl64.Vec3{1, 1, 2}, "Air", zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Center(0, 0, 0); !got.ApproxEqual(mgl64.Vec3{-9.5, -9.5, -9}) {
		t.Fatalf("first voxel center %v", got)
	}
	n, err := c.Add(Shape{Kind: ShapeBox, Size: mgl64.Vec3{4, 4, 4}}, "Water")
	if err != nil {
		t.Fatal(err)
	}
	// 4x4 voxels in x, y and 2 slabs of 2 mm in z
	if n != 32 {
		t.Fatalf("box claimed %d voxels", n)
	}
	if _, err := c.Add(Shape{Kind: ShapeSphere, Radius: 1.2}, "Bone"); err != nil {
		t.Fatal(err)
	}
	if got := c.Materials(); len(got) != 3 || got[0] != "Air" || got[1] != "Water" || got[2] != "Bone" {
		t.Fatalf("materials %v", got)
	}
	if _, err := c.Add(Shape{Kind: ShapeTube, Radius: 3, Height: 4}, "Water"); err != nil {
		t.Fatal(err)
	}
	if len(c.Materials()) != 3 {
		t.Fatal("material reused under a new label")
	}

	dev := compute.NewDevice(compute.Options{Workers: 2}, zaptest.NewLogger(t))
	s, err := c.Build(dev, "phantom")
	if err != nil {
		t.Fatal(err)
	}
	lookup := map[string]int{"Air": 0, "Water": 1, "Bone": 2}
	bind := func(name string) (int, bool) {
		id, ok := lookup[name]
		return id, ok
	}
	if err := s.BindMaterials(bind); err != nil {
		t.Fatal(err)
	}
	// the tube was added last and covers the sphere
	if m, _ := s.ResolveMaterialAt(mgl64.Vec3{0.5, 0.5, 1}); m != 1 {
		t.Fatalf("center material %d", m)
	}
	if m, _ := s.ResolveMaterialAt(mgl64.Vec3{9.5, 9.5, 9}); m != 0 {
		t.Fatalf("corner material %d", m)
	}

	if _, err := NewPhantomCreator([3]int{0, 1, 1}, mgl64.Vec3{1, 1, 1}, "Air", nil); !errors.Is(err, navigator.ErrConfig) {
		t.Fatalf("bad grid: %v", err)
	}
	if _, err := c.Add(Shape{Kind: ShapeBox, Size: mgl64.Vec3{1, 1, 1}}, ""); !errors.Is(err, navigator.ErrConfig) {
		t.Fatalf("missing material: %v", err)
	}
}

func TestRawEdepRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dose.raw")
	values := []float64{0, 1.5, 2.25, 3, 4, 5}
	if err := WriteRawEdep(path, [3]int{3, 2, 1}, values); err != nil {
		t.Fatal(err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if st.Size() != 12+6*8 {
		t.Fatalf("file size %d", st.Size())
	}
	dims, got, err := ReadRawEdep(path)
	if err != nil {
		t.Fatal(err)
	}
	if dims != [3]int{3, 2, 1} {
		t.Fatalf("dims %v", dims)
	}
	for i := range values {
		if got[i] != values[i] {
			t.Fatalf("value %d: %v != %v", i, got[i], values[i])
		}
	}
	if err := WriteRawEdep(path, [3]int{2, 2, 2}, values); err == nil {
		t.Fatal("size mismatch must fail")
	}
}

func TestReadRawEdepRejectsBadHeader(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, header [3]int32, voxels int) string {
		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
			t.Fatal(err)
		}
		if err := binary.Write(&buf, binary.LittleEndian, make([]float64, voxels)); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	cases := map[string]string{
		// 2^90 voxels wraps an int product to zero
		"overflow": write("overflow.raw", [3]int32{1 << 30, 1 << 30, 1 << 30}, 0),
		"short":    write("short.raw", [3]int32{2, 2, 2}, 7),
		"negative": write("negative.raw", [3]int32{2, -2, 2}, 8),
		"huge":     write("huge.raw", [3]int32{1 << 30, 1, 1}, 4),
	}
	for name, path := range cases {
		if _, _, err := ReadRawEdep(path); err == nil {
			t.Fatalf("%s: header accepted", name)
		}
	}
	dims, values, err := ReadRawEdep(write("empty.raw", [3]int32{0, 4, 4}, 0))
	if err != nil || dims != [3]int{0, 4, 4} || len(values) != 0 {
		t.Fatalf("empty map: %v %v %v", dims, values, err)
	}
}
