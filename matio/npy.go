package matio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var magic = []byte("\x93NUMPY")

// ErrFormat is returned for malformed or unsupported .npy documents.
var ErrFormat = errors.New("matio: unsupported npy document")

// Array is a decoded .npy document.
type Array struct {
	// Descr is the NumPy dtype string, e.g. "<f4".
	Descr string
	Shape []int
	// Data holds the raw little-endian element bytes.
	Data []byte
}

// Len returns the number of elements.
func (a *Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}

	return n
}

// Rows returns the leading dimension, or 1 for a scalar.
func (a *Array) Rows() int {
	if len(a.Shape) == 0 {
		return 1
	}

	return a.Shape[0]
}

// Cols returns the product of the trailing dimensions.
func (a *Array) Cols() int {
	if len(a.Shape) == 0 {
		return 1
	}

	n := 1
	for _, d := range a.Shape[1:] {
		n *= d
	}

	return n
}

// Float32 returns the elements as float32, converting from float64 if
// needed.
func (a *Array) Float32() ([]float32, error) {
	n := a.Len()
	out := make([]float32, n)

	switch a.Descr {
	case "<f4":
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(a.Data[4*i:]))
		}
	case "<f8":
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(a.Data[8*i:])))
		}
	default:
		return nil, fmt.Errorf("%w: cannot read %s as float32", ErrFormat, a.Descr)
	}

	return out, nil
}

// Int32 returns the elements as int32, narrowing from int64 if needed.
func (a *Array) Int32() ([]int32, error) {
	n := a.Len()
	out := make([]int32, n)

	switch a.Descr {
	case "<i4":
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(a.Data[4*i:])) // nolint gosec
		}
	case "<i8":
		for i := range out {
			out[i] = int32(int64(binary.LittleEndian.Uint64(a.Data[8*i:]))) // nolint gosec
		}
	default:
		return nil, fmt.Errorf("%w: cannot read %s as int32", ErrFormat, a.Descr)
	}

	return out, nil
}

func itemSize(descr string) (int, bool) {
	switch descr {
	case "<f4", "<i4":
		return 4, true
	case "<f8", "<i8":
		return 8, true
	default:
		return 0, false
	}
}

// Decode reads one .npy document from r.
func Decode(r io.Reader) (*Array, error) {
	br := bufio.NewReader(r)

	pre := make([]byte, 8)
	if _, err := io.ReadFull(br, pre); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	if !bytes.Equal(pre[:6], magic) {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}

	var headerLen int

	switch pre[6] {
	case 1:
		var l uint16
		if err := binary.Read(br, binary.LittleEndian, &l); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		headerLen = int(l)
	case 2, 3:
		var l uint32
		if err := binary.Read(br, binary.LittleEndian, &l); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		headerLen = int(l)
	default:
		return nil, fmt.Errorf("%w: version %d.%d", ErrFormat, pre[6], pre[7])
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	a, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	size, _ := itemSize(a.Descr)

	a.Data = make([]byte, a.Len()*size)
	if _, err := io.ReadFull(br, a.Data); err != nil {
		return nil, fmt.Errorf("%w: short data: %w", ErrFormat, err)
	}

	return a, nil
}

func headerValue(header, key string) (string, bool) {
	i := strings.Index(header, "'"+key+"'")
	if i < 0 {
		return "", false
	}

	rest := strings.TrimLeft(header[i+len(key)+2:], " ")
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}

	return strings.TrimLeft(rest[1:], " "), true
}

func parseHeader(header string) (*Array, error) {
	descr, ok := headerValue(header, "descr")
	if !ok || len(descr) < 2 || descr[0] != '\'' {
		return nil, fmt.Errorf("%w: missing descr", ErrFormat)
	}

	end := strings.IndexByte(descr[1:], '\'')
	if end < 0 {
		return nil, fmt.Errorf("%w: bad descr", ErrFormat)
	}

	a := &Array{Descr: descr[1 : end+1]}
	if strings.HasPrefix(a.Descr, "=") {
		a.Descr = "<" + a.Descr[1:]
	}

	if _, ok := itemSize(a.Descr); !ok {
		return nil, fmt.Errorf("%w: dtype %s", ErrFormat, a.Descr)
	}

	fortran, ok := headerValue(header, "fortran_order")
	if !ok {
		return nil, fmt.Errorf("%w: missing fortran_order", ErrFormat)
	}

	if strings.HasPrefix(fortran, "True") {
		return nil, fmt.Errorf("%w: fortran order", ErrFormat)
	}

	shape, ok := headerValue(header, "shape")
	if !ok || !strings.HasPrefix(shape, "(") {
		return nil, fmt.Errorf("%w: missing shape", ErrFormat)
	}

	closing := strings.IndexByte(shape, ')')
	if closing < 0 {
		return nil, fmt.Errorf("%w: bad shape", ErrFormat)
	}

	for _, f := range strings.Split(shape[1:closing], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}

		d, err := strconv.Atoi(strings.TrimSuffix(f, "L"))
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%w: bad dimension %q", ErrFormat, f)
		}

		a.Shape = append(a.Shape, d)
	}

	return a, nil
}

func encodeHeader(descr string, shape []int) []byte {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}

	tuple := strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}

	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, tuple)

	// Magic, version and length take 10 bytes; the header ends in a newline
	// and pads the data offset to a multiple of 64.
	total := 10 + len(dict) + 1
	pad := (64 - total%64) % 64

	out := make([]byte, 0, total+pad)
	out = append(out, magic...)
	out = append(out, 1, 0)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(dict)+pad+1)) // nolint gosec
	out = append(out, dict...)
	out = append(out, bytes.Repeat([]byte{' '}, pad)...)
	out = append(out, '\n')

	return out
}

func checkShape(n int, shape []int) ([]int, error) {
	if len(shape) == 0 {
		return []int{n}, nil
	}

	total := 1
	for _, d := range shape {
		total *= d
	}

	if total != n {
		return nil, fmt.Errorf("matio: shape %v does not match %d elements", shape, n)
	}

	return shape, nil
}

// EncodeFloat32 writes data as a little-endian float32 .npy document. An
// empty shape writes a vector.
func EncodeFloat32(w io.Writer, data []float32, shape ...int) error {
	shape, err := checkShape(len(data), shape)
	if err != nil {
		return err
	}

	buf := encodeHeader("<f4", shape)
	for _, v := range data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}

	_, err = w.Write(buf)

	return err
}

// EncodeInt32 writes data as a little-endian int32 .npy document.
func EncodeInt32(w io.Writer, data []int32, shape ...int) error {
	shape, err := checkShape(len(data), shape)
	if err != nil {
		return err
	}

	buf := encodeHeader("<i4", shape)
	for _, v := range data {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v)) // nolint gosec
	}

	_, err = w.Write(buf)

	return err
}
