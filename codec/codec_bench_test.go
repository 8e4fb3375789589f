package codec

import (
	"testing"
)

type benchManifest struct {
	Version  int                `json:"version"`
	Key      string             `json:"key"`
	Count    int                `json:"count"`
	Dim      int                `json:"dim"`
	Args     map[string]string  `json:"args"`
	Numbers  map[string]float64 `json:"numbers"`
	Files    []string           `json:"files"`
	Fallback bool               `json:"fallback"`
}

func benchmarkCodecMarshal(b *testing.B, c Codec, v any) {
	b.Helper()
	b.ReportAllocs()

	warm, err := c.Marshal(v)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(warm)))

	for b.Loop() {
		if _, err := c.Marshal(v); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkCodecUnmarshal(b *testing.B, c Codec, v any) {
	b.Helper()
	b.ReportAllocs()

	data, err := c.Marshal(v)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))

	for b.Loop() {
		var out benchManifest
		if err := c.Unmarshal(data, &out); err != nil {
			b.Fatal(err)
		}
	}
}

func benchManifestValue() benchManifest {
	return benchManifest{
		Version: 1,
		Key:     "0f3a9c",
		Count:   10000,
		Dim:     384,
		Args:    map[string]string{"metric": "cosine", "knn_method": "hnsw", "initialize_method": "spectral"},
		Numbers: map[string]float64{"n_neighbors": 15, "min_dist": 0.1, "spread": 1, "n_epochs": 200},
		Files:   []string{"embedding.npy", "knn_indices.npy", "knn_distances.npy"},
	}
}

func BenchmarkMarshal(b *testing.B) {
	v := benchManifestValue()

	b.Run("json", func(b *testing.B) { benchmarkCodecMarshal(b, JSON{}, v) })
	b.Run("go-json", func(b *testing.B) { benchmarkCodecMarshal(b, GoJSON{}, v) })
}

func BenchmarkUnmarshal(b *testing.B) {
	v := benchManifestValue()

	b.Run("json", func(b *testing.B) { benchmarkCodecUnmarshal(b, JSON{}, v) })
	b.Run("go-json", func(b *testing.B) { benchmarkCodecUnmarshal(b, GoJSON{}, v) })
}
