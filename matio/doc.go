// Package matio reads and writes dense matrices in the NumPy .npy format.
//
// Files ending in ".zst" are zstd-compressed and files ending in ".lz4" are
// LZ4-frame-compressed; the inner payload is always a plain .npy document.
// Only little-endian float32, float64, int32 and int64 arrays in C order are
// supported.
package matio
