package umapgo

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/hupe1980/umapgo/distance"
	"github.com/hupe1980/umapgo/hnsw"
	"github.com/hupe1980/umapgo/internal/umap"
	"github.com/hupe1980/umapgo/nndescent"
)

// Method selects a neighbor backend. The numeric values are stable and
// used across the handle boundary.
type Method int

const (
	MethodVPTree    Method = 0
	MethodHNSW      Method = 2
	MethodNNDescent Method = 3
)

func (m Method) String() string {
	switch m {
	case MethodVPTree:
		return "vptree"
	case MethodHNSW:
		return "hnsw"
	case MethodNNDescent:
		return "nndescent"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMethod parses the configuration name of a backend.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "vptree":
		return MethodVPTree, nil
	case "hnsw":
		return MethodHNSW, nil
	case "nndescent":
		return MethodNNDescent, nil
	default:
		return 0, fmt.Errorf("unsupported method %q", s)
	}
}

// InitializeMethod selects how the initial layout of an embedding is computed.
type InitializeMethod = umap.InitializeMethod

const (
	InitializeSpectral = umap.InitializeSpectral
	InitializeRandom   = umap.InitializeRandom
	InitializeNone     = umap.InitializeNone
)

// BackendOptions holds the tuning knobs of the neighbor backends.
type BackendOptions struct {
	HNSWLinks          int
	HNSWEfConstruction int
	HNSWEfSearch       int

	// NNDescentNeighbors is the number of graph slots per point, self
	// included. Zero or less selects the backend default.
	NNDescentNeighbors int
	// NNDescentTrees and NNDescentIters select automatic values when zero
	// or less.
	NNDescentTrees int
	NNDescentIters int
	NNDescentSeed  uint64
}

// DefaultBackendOptions returns the backend defaults.
func DefaultBackendOptions() BackendOptions {
	return BackendOptions{
		HNSWLinks:          hnsw.DefaultOptions.M,
		HNSWEfConstruction: hnsw.DefaultOptions.EfConstruction,
		HNSWEfSearch:       hnsw.DefaultOptions.EfSearch,
		NNDescentNeighbors: nndescent.DefaultOptions.NNeighbors,
		NNDescentSeed:      nndescent.DefaultOptions.Seed,
	}
}

type numberKey[T any] struct {
	get func(o *T) float64
	set func(o *T, v float64) bool
}

func intKey[T any](field func(o *T) *int, valid func(int) bool) numberKey[T] {
	return numberKey[T]{
		get: func(o *T) float64 { return float64(*field(o)) },
		set: func(o *T, v float64) bool {
			n := int(v)
			if !valid(n) {
				return false
			}
			*field(o) = n
			return true
		},
	}
}

func floatKey[T any](field func(o *T) *float64, valid func(float64) bool) numberKey[T] {
	return numberKey[T]{
		get: func(o *T) float64 { return *field(o) },
		set: func(o *T, v float64) bool {
			if !valid(v) {
				return false
			}
			*field(o) = v
			return true
		},
	}
}

func seedKey[T any](field func(o *T) *uint64) numberKey[T] {
	return numberKey[T]{
		get: func(o *T) float64 { return float64(*field(o)) },
		set: func(o *T, v float64) bool {
			if v < 0 || v >= math.MaxUint64 {
				return false
			}
			*field(o) = uint64(v)
			return true
		},
	}
}

func positive(n int) bool        { return n > 0 }
func anyInt(int) bool            { return true }
func anyFloat(float64) bool      { return true }
func nonNegative(v float64) bool { return v >= 0 }
func unitRange(v float64) bool   { return v >= 0 && v <= 1 }

var backendKeys = map[string]numberKey[BackendOptions]{
	"hnsw_n_links":          intKey(func(o *BackendOptions) *int { return &o.HNSWLinks }, positive),
	"hnsw_ef_construction":  intKey(func(o *BackendOptions) *int { return &o.HNSWEfConstruction }, positive),
	"hnsw_ef_search":        intKey(func(o *BackendOptions) *int { return &o.HNSWEfSearch }, positive),
	"nndescent_n_neighbors": intKey(func(o *BackendOptions) *int { return &o.NNDescentNeighbors }, anyInt),
	"nndescent_n_trees":     intKey(func(o *BackendOptions) *int { return &o.NNDescentTrees }, anyInt),
	"nndescent_n_iters":     intKey(func(o *BackendOptions) *int { return &o.NNDescentIters }, anyInt),
	"nndescent_seed":        seedKey(func(o *BackendOptions) *uint64 { return &o.NNDescentSeed }),
}

// CanonicalKey converts a camelCase option key such as "nNeighbors" to its
// snake_case form. Snake_case keys are returned unchanged.
func CanonicalKey(key string) string {
	var b strings.Builder

	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func checkFinite(key string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return invalidValue(key, value)
	}

	return nil
}

// KNNOptions configures a KNN context.
//
// Fields may be set directly or through the string-keyed setters, which
// validate their input and never modify the options on failure.
type KNNOptions struct {
	Method  Method
	Metric  distance.Metric
	Backend BackendOptions
}

// NewKNNOptions returns the default KNN options: HNSW, Euclidean metric and a
// neighbor-descent seed of 42.
func NewKNNOptions() *KNNOptions {
	return &KNNOptions{
		Method:  MethodHNSW,
		Metric:  distance.MetricEuclidean,
		Backend: DefaultBackendOptions(),
	}
}

// SetNumber sets a numeric option.
func (o *KNNOptions) SetNumber(key string, value float64) error {
	k := CanonicalKey(key)

	nk, ok := backendKeys[k]
	if !ok {
		return unknownOption(key)
	}

	if err := checkFinite(key, value); err != nil {
		return err
	}

	if !nk.set(&o.Backend, value) {
		return invalidValue(key, value)
	}

	return nil
}

// SetString sets an enumerated option.
func (o *KNNOptions) SetString(key, value string) error {
	switch CanonicalKey(key) {
	case "metric":
		m, err := distance.ParseMetric(value)
		if err != nil {
			return invalidValue(key, value)
		}
		o.Metric = m
	case "method":
		m, err := ParseMethod(value)
		if err != nil {
			return invalidValue(key, value)
		}
		o.Method = m
	default:
		return unknownOption(key)
	}

	return nil
}

// GetNumber returns the current value of a numeric option.
func (o *KNNOptions) GetNumber(key string) (float64, error) {
	nk, ok := backendKeys[CanonicalKey(key)]
	if !ok {
		return 0, unknownOption(key)
	}

	return nk.get(&o.Backend), nil
}

// GetString returns the current value of an enumerated option.
func (o *KNNOptions) GetString(key string) (string, error) {
	switch CanonicalKey(key) {
	case "metric":
		return o.Metric.String(), nil
	case "method":
		return o.Method.String(), nil
	default:
		return "", unknownOption(key)
	}
}

// UMAPOptions configures an embedding context.
type UMAPOptions struct {
	KNNMethod Method
	Metric    distance.Metric
	Backend   BackendOptions

	LocalConnectivity  float64
	Bandwidth          float64
	MixRatio           float64
	Spread             float64
	MinDist            float64
	A                  float64
	B                  float64
	RepulsionStrength  float64
	LearningRate       float64
	NegativeSampleRate float64
	NEpochs            int
	NNeighbors         int
	Seed               uint64
	InitializeMethod   InitializeMethod
}

// NewUMAPOptions returns the default embedding options.
func NewUMAPOptions() *UMAPOptions {
	d := umap.DefaultOptions()

	return &UMAPOptions{
		KNNMethod:          MethodHNSW,
		Metric:             distance.MetricEuclidean,
		Backend:            DefaultBackendOptions(),
		LocalConnectivity:  d.LocalConnectivity,
		Bandwidth:          d.Bandwidth,
		MixRatio:           d.MixRatio,
		Spread:             d.Spread,
		MinDist:            d.MinDist,
		A:                  d.A,
		B:                  d.B,
		RepulsionStrength:  d.RepulsionStrength,
		LearningRate:       d.LearningRate,
		NegativeSampleRate: d.NegativeSampleRate,
		NEpochs:            d.NEpochs,
		NNeighbors:         d.NNeighbors,
		Seed:               d.Seed,
		InitializeMethod:   d.Initialize,
	}
}

var umapKeys = map[string]numberKey[UMAPOptions]{
	"local_connectivity":   floatKey(func(o *UMAPOptions) *float64 { return &o.LocalConnectivity }, nonNegative),
	"bandwidth":            floatKey(func(o *UMAPOptions) *float64 { return &o.Bandwidth }, nonNegative),
	"mix_ratio":            floatKey(func(o *UMAPOptions) *float64 { return &o.MixRatio }, unitRange),
	"spread":               floatKey(func(o *UMAPOptions) *float64 { return &o.Spread }, anyFloat),
	"min_dist":             floatKey(func(o *UMAPOptions) *float64 { return &o.MinDist }, anyFloat),
	"a":                    floatKey(func(o *UMAPOptions) *float64 { return &o.A }, anyFloat),
	"b":                    floatKey(func(o *UMAPOptions) *float64 { return &o.B }, anyFloat),
	"repulsion_strength":   floatKey(func(o *UMAPOptions) *float64 { return &o.RepulsionStrength }, nonNegative),
	"learning_rate":        floatKey(func(o *UMAPOptions) *float64 { return &o.LearningRate }, nonNegative),
	"negative_sample_rate": floatKey(func(o *UMAPOptions) *float64 { return &o.NegativeSampleRate }, nonNegative),
	"n_epochs":             intKey(func(o *UMAPOptions) *int { return &o.NEpochs }, anyInt),
	"n_neighbors":          intKey(func(o *UMAPOptions) *int { return &o.NNeighbors }, positive),
	"seed":                 seedKey(func(o *UMAPOptions) *uint64 { return &o.Seed }),
}

// SetNumber sets a numeric option.
func (o *UMAPOptions) SetNumber(key string, value float64) error {
	k := CanonicalKey(key)

	if nk, ok := umapKeys[k]; ok {
		if err := checkFinite(key, value); err != nil {
			return err
		}

		if !nk.set(o, value) {
			return invalidValue(key, value)
		}

		return nil
	}

	if nk, ok := backendKeys[k]; ok {
		if err := checkFinite(key, value); err != nil {
			return err
		}

		if !nk.set(&o.Backend, value) {
			return invalidValue(key, value)
		}

		return nil
	}

	return unknownOption(key)
}

// SetString sets an enumerated option.
func (o *UMAPOptions) SetString(key, value string) error {
	switch CanonicalKey(key) {
	case "metric":
		m, err := distance.ParseMetric(value)
		if err != nil {
			return invalidValue(key, value)
		}
		o.Metric = m
	case "knn_method":
		m, err := ParseMethod(value)
		if err != nil {
			return invalidValue(key, value)
		}
		o.KNNMethod = m
	case "initialize_method":
		m, err := umap.ParseInitializeMethod(value)
		if err != nil {
			return invalidValue(key, value)
		}
		o.InitializeMethod = m
	default:
		return unknownOption(key)
	}

	return nil
}

// GetNumber returns the current value of a numeric option.
func (o *UMAPOptions) GetNumber(key string) (float64, error) {
	k := CanonicalKey(key)

	if nk, ok := umapKeys[k]; ok {
		return nk.get(o), nil
	}

	if nk, ok := backendKeys[k]; ok {
		return nk.get(&o.Backend), nil
	}

	return 0, unknownOption(key)
}

// GetString returns the current value of an enumerated option.
func (o *UMAPOptions) GetString(key string) (string, error) {
	switch CanonicalKey(key) {
	case "metric":
		return o.Metric.String(), nil
	case "knn_method":
		return o.KNNMethod.String(), nil
	case "initialize_method":
		return o.InitializeMethod.String(), nil
	default:
		return "", unknownOption(key)
	}
}

// layout converts the options into optimizer settings.
func (o *UMAPOptions) layout() umap.Options {
	return umap.Options{
		LocalConnectivity:  o.LocalConnectivity,
		Bandwidth:          o.Bandwidth,
		MixRatio:           o.MixRatio,
		Spread:             o.Spread,
		MinDist:            o.MinDist,
		A:                  o.A,
		B:                  o.B,
		RepulsionStrength:  o.RepulsionStrength,
		LearningRate:       o.LearningRate,
		NegativeSampleRate: o.NegativeSampleRate,
		NEpochs:            o.NEpochs,
		NNeighbors:         o.NNeighbors,
		Seed:               o.Seed,
		Initialize:         o.InitializeMethod,
	}
}
