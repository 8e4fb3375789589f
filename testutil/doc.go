// Package testutil provides testing utilities for umapgo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random row-major matrices, computing
// exact nearest neighbors, and verifying search recall.
//
// # Random Matrix Generation
//
//	rng := testutil.NewRNG(seed)
//	data := rng.UniformMatrix(100, 8)        // uniform [0, 1)
//	data = rng.ClusteredMatrix(300, 16, 3, 0.05)
//
// # Exact Search (Ground Truth)
//
//	truth := testutil.BruteForce(m, m.Row(i), k, i)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(truth, approx)
package testutil
