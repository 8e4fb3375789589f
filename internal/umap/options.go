package umap

import "fmt"

// InitializeMethod selects how the initial layout is computed.
type InitializeMethod int

const (
	// InitializeSpectral uses the leading eigenvectors of the normalized graph
	// Laplacian and falls back to InitializeRandom when they cannot be
	// computed.
	InitializeSpectral InitializeMethod = iota
	// InitializeRandom draws coordinates uniformly from [-10, 10].
	InitializeRandom
	// InitializeNone keeps the coordinates already in the embedding buffer.
	InitializeNone
)

func (m InitializeMethod) String() string {
	switch m {
	case InitializeSpectral:
		return "spectral"
	case InitializeRandom:
		return "random"
	case InitializeNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseInitializeMethod parses the configuration name of a method.
func ParseInitializeMethod(s string) (InitializeMethod, error) {
	switch s {
	case "spectral":
		return InitializeSpectral, nil
	case "random":
		return InitializeRandom, nil
	case "none":
		return InitializeNone, nil
	default:
		return 0, fmt.Errorf("unsupported initialize method %q", s)
	}
}

// Options configures the fuzzy graph and the layout optimizer.
type Options struct {
	// LocalConnectivity is the number of nearest neighbors assumed to be
	// connected at full strength.
	LocalConnectivity float64

	// Bandwidth scales the target entropy of the per-point kernels.
	Bandwidth float64

	// MixRatio blends fuzzy union (1) and fuzzy intersection (0) when the
	// directed graph is symmetrized.
	MixRatio float64

	// Spread and MinDist shape the low-dimensional similarity curve.
	Spread  float64
	MinDist float64

	// A and B are the curve parameters. Either one ≤ 0 fits both from
	// Spread and MinDist.
	A float64
	B float64

	// RepulsionStrength weights the negative samples.
	RepulsionStrength float64

	// LearningRate is the initial step size.
	LearningRate float64

	// NegativeSampleRate is the number of negative samples per positive one.
	NegativeSampleRate float64

	// NEpochs is the total number of epochs. Zero or less selects 500 for
	// data sets of at most 10000 points and 200 otherwise.
	NEpochs int

	// NNeighbors is the number of neighbors used to build the fuzzy graph.
	NNeighbors int

	// Seed drives initialization and negative sampling.
	Seed uint64

	// Initialize selects the initial layout.
	Initialize InitializeMethod
}

// DefaultOptions returns the default optimizer settings.
func DefaultOptions() Options {
	return Options{
		LocalConnectivity:  1,
		Bandwidth:          1,
		MixRatio:           1,
		Spread:             1,
		MinDist:            0.1,
		RepulsionStrength:  1,
		LearningRate:       1,
		NegativeSampleRate: 5,
		NNeighbors:         15,
		Seed:               1234567890,
		Initialize:         InitializeSpectral,
	}
}

// EpochsFor returns the number of epochs used for n points when NEpochs is
// not set.
func EpochsFor(n int) int {
	if n <= 10000 {
		return 500
	}

	return 200
}
