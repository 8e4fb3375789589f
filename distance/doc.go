// Package distance provides vector distance kernels.
//
// # Supported Metrics
//
//   - MetricEuclidean: Euclidean distance (default)
//   - MetricCosine: cosine distance, served by Euclidean kernels on
//     L2-normalized rows
//
// # Kernels
//
// Neighbor backends rank candidates by squared Euclidean distance and report
// distances through a Kernel:
//
//   - KernelEuclidean: ‖a−b‖
//   - KernelHalfSquaredEuclidean: ‖a−b‖²/2, equal to 1−cos(a, b) on unit vectors
//
// # Usage
//
//	dist := distance.L2(a, b)
//	ok := distance.NormalizeL2InPlace(vec)
//	fn := distance.KernelFor(distance.MetricCosine).Func()
package distance
