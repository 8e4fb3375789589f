package matio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
)

// Load reads a matrix file, decompressing it according to its extension.
func Load(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r, err := NewReader(bufio.NewReader(f), CompressionFor(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	a, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return a, nil
}

// LoadFloat32 reads a 2-D matrix file as float32 and returns its data with
// the row count and the row width. A 1-D array is read as a single column.
func LoadFloat32(path string) (data []float32, rows, cols int, err error) {
	a, err := Load(path)
	if err != nil {
		return nil, 0, 0, err
	}

	data, err = a.Float32()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%s: %w", path, err)
	}

	return data, a.Rows(), a.Cols(), nil
}

// SaveFloat32 writes data as a matrix file, compressing it according to the
// extension of path.
func SaveFloat32(path string, data []float32, shape ...int) error {
	return save(path, func(buf *bytes.Buffer) error { return EncodeFloat32(buf, data, shape...) })
}

// SaveInt32 writes data as an int32 matrix file.
func SaveInt32(path string, data []int32, shape ...int) error {
	return save(path, func(buf *bytes.Buffer) error { return EncodeInt32(buf, data, shape...) })
}

func save(path string, encode func(buf *bytes.Buffer) error) (err error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	w, err := NewWriter(f, CompressionFor(path))
	if err != nil {
		return err
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// MarshalFloat32 encodes data as an in-memory .npy document.
func MarshalFloat32(data []float32, shape ...int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeFloat32(&buf, data, shape...); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// MarshalInt32 encodes data as an in-memory .npy document.
func MarshalInt32(data []int32, shape ...int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeInt32(&buf, data, shape...); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes an in-memory .npy document.
func Unmarshal(data []byte) (*Array, error) {
	return Decode(bytes.NewReader(data))
}
