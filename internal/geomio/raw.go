package geomio

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteRawEdep saves a voxel map: the dimensions as three little endian int32,
// then one float64 per voxel, x fastest.
func WriteRawEdep(path string, dims [3]int, values []float64) error {
	for a := 0; a < 3; a++ {
		if dims[a] < 0 || dims[a] > math.MaxInt32 {
			return errors.Errorf("dimensions %v outside the int32 header range", dims)
		}
	}
	// 64-bit multiply to avoid overflow
	exp64 := int64(dims[0]) * int64(dims[1]) * int64(dims[2])
	if int64(len(values)) != exp64 {
		return errors.Errorf("%s: %d values for %v voxels", path, len(values), dims)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create raw file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := [3]int32{int32(dims[0]), int32(dims[1]), int32(dims[2])}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Wrapf(err, "%s: header", path)
	}
	if exp64 > 0 {
		if err := binary.Write(w, binary.LittleEndian, values); err != nil {
			return errors.Wrapf(err, "%s: body", path)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "%s: flush", path)
	}
	return f.Sync()
}

const rawHeaderSize = 3 * 4

// ReadRawEdep loads a file written by WriteRawEdep. The header must match the
// size of the body exactly.
func ReadRawEdep(path string) (dims [3]int, values []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return dims, nil, errors.Wrap(err, "open raw file")
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return dims, nil, errors.Wrap(err, "stat raw file")
	}
	r := bufio.NewReader(f)
	var header [3]int32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return dims, nil, errors.Wrapf(err, "%s: header", path)
	}
	body := (st.Size() - rawHeaderSize) / 8
	n := int64(1)
	for a := 0; a < 3; a++ {
		if header[a] < 0 {
			return dims, nil, errors.Errorf("%s: negative dimensions %v", path, header)
		}
		dims[a] = int(header[a])
		if d := int64(header[a]); d > 0 && n > body/d {
			return dims, nil, errors.Errorf("%s: dimensions %v exceed the %d stored voxels", path, header, body)
		}
		n *= int64(header[a])
	}
	if n*8 != st.Size()-rawHeaderSize {
		return dims, nil, errors.Errorf("%s: %d body bytes for %v voxels", path, st.Size()-rawHeaderSize, header)
	}
	values = make([]float64, n)
	if err := binary.Read(r, binary.LittleEndian, values); err != nil {
		return dims, nil, errors.Wrapf(err, "%s: body", path)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return dims, nil, errors.Errorf("%s: trailing bytes after %d voxels", path, n)
	}
	return dims, values, nil
}
