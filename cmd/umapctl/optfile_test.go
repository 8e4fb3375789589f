package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/umapgo"
	"github.com/hupe1980/umapgo/distance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionFile(t *testing.T) {
	s := newOptionSet()

	err := s.parseOptionFile([]byte(`
metric: cosine
nNeighbors: 12
min_dist: 0.25
knn_method: "nndescent"
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"metric": "cosine", "knn_method": "nndescent"}, s.Strings)
	assert.Equal(t, map[string]float64{"n_neighbors": 12, "min_dist": 0.25}, s.Numbers)
}

func TestParseOptionFileErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not yaml", "metric: [cosine"},
		{"nested", "metric:\n  name: cosine"},
		{"bool", "metric: true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newOptionSet().parseOptionFile([]byte(tt.raw))
			require.Error(t, err)
			assert.Equal(t, CodeConfigParseInvalidFormat, codeOf(err))
		})
	}
}

func TestLoadOptionFileMissing(t *testing.T) {
	err := newOptionSet().loadOptionFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, CodeConfigLoadReadFailure, codeOf(err))
}

func TestParseAssignments(t *testing.T) {
	s := newOptionSet()
	require.NoError(t, s.parseAssignments([]string{"metric=cosine", "n_neighbors=8", "metric=euclidean"}))

	assert.Equal(t, map[string]string{"metric": "euclidean"}, s.Strings)
	assert.Equal(t, map[string]float64{"n_neighbors": 8}, s.Numbers)
	assert.Equal(t, "metric=euclidean n_neighbors=8", s.String())

	err := s.parseAssignments([]string{"metric"})
	require.Error(t, err)
	assert.Equal(t, CodeCLIInputInvalid, codeOf(err))
}

func TestOptionSetApply(t *testing.T) {
	s := newOptionSet()
	require.NoError(t, s.parseAssignments([]string{"method=vptree", "metric=cosine"}))

	opts := umapgo.NewKNNOptions()
	require.NoError(t, s.apply(opts))
	assert.Equal(t, umapgo.MethodVPTree, opts.Method)
	assert.Equal(t, distance.MetricCosine, opts.Metric)

	bad := newOptionSet()
	require.NoError(t, bad.parseAssignments([]string{"hnsw_n_links=0"}))
	err := bad.apply(umapgo.NewKNNOptions())
	require.Error(t, err)
	assert.Equal(t, CodeConfigValidateInvalidValue, codeOf(err))
	assert.ErrorIs(t, err, umapgo.ErrInvalidOptionValue)
}

func TestOptionsFileFlag(t *testing.T) {
	dir := t.TempDir()
	optPath := filepath.Join(dir, "opts.yaml")
	require.NoError(t, os.WriteFile(optPath, []byte("method: vptree\nmetric: euclidean\n"), 0o600))

	path := writeClustered(t, 30, 4)

	out, _, err := execute(t, "knn", path, "--index", "3", "-k", "4", "--options", optPath)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
