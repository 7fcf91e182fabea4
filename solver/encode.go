package solver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ronanh/intcomp"
)

// Binary model format: a fixed header followed by length-prefixed blocks of
// intcomp-compressed integers. Floats travel as their IEEE 754 bit patterns.
var modelMagic = [4]byte{'C', 'P', 'L', 'X'}

const modelFormatVersion = uint32(1)

var errInvalidFormat = errors.New("solver: invalid model format")

// WriteTo serializes the model. It implements io.WriterTo.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	header := struct {
		Magic    [4]byte
		Version  uint32
		Sense    uint32
		Flags    uint32
		Cols     uint64
		Rows     uint64
		ObjConst uint64
	}{
		Magic:    modelMagic,
		Version:  modelFormatVersion,
		Sense:    uint32(m.Sense),
		Cols:     uint64(m.Cols),
		Rows:     uint64(m.Rows()),
		ObjConst: math.Float64bits(m.ObjConst),
	}
	if m.Lower != nil {
		header.Flags |= 1
	}
	if m.Upper != nil {
		header.Flags |= 2
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return 0, err
	}
	n := int64(binary.Size(header))

	blocks := [][]uint64{
		intsToUints(m.RowPtr),
		intsToUints(m.ColIdx),
		relsToUints(m.Rel),
		floatsToUints(m.Obj),
		floatsToUints(m.Coef),
		floatsToUints(m.RHS),
		floatsToUints(m.Lower),
		floatsToUints(m.Upper),
	}
	for _, b := range blocks {
		written, err := writeUints(w, b)
		n += written
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ReadFrom deserializes a model written by WriteTo. It implements
// io.ReaderFrom.
func (m *Model) ReadFrom(r io.Reader) (int64, error) {
	var header struct {
		Magic    [4]byte
		Version  uint32
		Sense    uint32
		Flags    uint32
		Cols     uint64
		Rows     uint64
		ObjConst uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, err
	}
	n := int64(binary.Size(header))
	if header.Magic != modelMagic {
		return n, errInvalidFormat
	}
	if header.Version != modelFormatVersion {
		return n, fmt.Errorf("%w: version %d, want %d", errInvalidFormat, header.Version, modelFormatVersion)
	}

	blocks := make([][]uint64, 8)
	for i := range blocks {
		read, b, err := readUints(r)
		n += read
		if err != nil {
			return n, err
		}
		blocks[i] = b
	}

	m.Cols = int(header.Cols)
	m.Sense = Sense(header.Sense)
	m.ObjConst = math.Float64frombits(header.ObjConst)
	m.RowPtr = uintsToInts(blocks[0])
	m.ColIdx = uintsToInts(blocks[1])
	m.Rel = uintsToRels(blocks[2])
	m.Obj = uintsToFloats(blocks[3])
	m.Coef = uintsToFloats(blocks[4])
	m.RHS = uintsToFloats(blocks[5])
	if header.Flags&1 != 0 {
		m.Lower = uintsToFloats(blocks[6])
	} else {
		m.Lower = nil
	}
	if header.Flags&2 != 0 {
		m.Upper = uintsToFloats(blocks[7])
	} else {
		m.Upper = nil
	}
	if got := m.Rows(); got != int(header.Rows) {
		return n, fmt.Errorf("%w: %d rows, header says %d", errInvalidFormat, got, header.Rows)
	}
	return n, m.Validate()
}

func writeUints(w io.Writer, in []uint64) (int64, error) {
	buf := intcomp.CompressUint64(in, nil)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(buf))); err != nil {
		return 0, err
	}
	if err := binary.Write(w, binary.LittleEndian, buf); err != nil {
		return 8, err
	}
	return 8 + 8*int64(len(buf)), nil
}

func readUints(r io.Reader) (int64, []uint64, error) {
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return 0, nil, err
	}
	buf := make([]uint64, length)
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return 8, nil, err
	}
	return 8 + 8*int64(length), intcomp.UncompressUint64(buf, nil), nil
}

func intsToUints(s []int) []uint64 {
	out := make([]uint64, len(s))
	for i, v := range s {
		out[i] = uint64(v)
	}
	return out
}

func uintsToInts(s []uint64) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[i] = int(v)
	}
	return out
}

func relsToUints(s []Rel) []uint64 {
	out := make([]uint64, len(s))
	for i, v := range s {
		out[i] = uint64(v)
	}
	return out
}

func uintsToRels(s []uint64) []Rel {
	out := make([]Rel, len(s))
	for i, v := range s {
		out[i] = Rel(v)
	}
	return out
}

func floatsToUints(s []float64) []uint64 {
	out := make([]uint64, len(s))
	for i, v := range s {
		out[i] = math.Float64bits(v)
	}
	return out
}

func uintsToFloats(s []uint64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = math.Float64frombits(v)
	}
	return out
}
