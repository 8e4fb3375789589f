// Package umapgo computes UMAP embeddings and answers k-nearest-neighbor
// queries through a small synchronous, in-process API.
//
// The API is built for hosts that cannot block for long: building an index or
// an embedding context is a single call, and the layout optimizer advances in
// caller-chosen epoch slices.
//
// # Quick Start
//
// Nearest neighbors:
//
//	opts := umapgo.NewKNNOptions()
//	_ = opts.SetString("method", "hnsw")
//	_ = opts.SetString("metric", "cosine")
//
//	knn, _ := umapgo.NewKNN(count, dim, data, opts)
//	defer knn.Close()
//
//	indices := make([]int32, 10)
//	distances := make([]float32, 10)
//	n, _ := knn.QueryByIndex(0, 10, indices, distances)
//
// Embedding:
//
//	opts := umapgo.NewUMAPOptions()
//	_ = opts.SetNumber("n_neighbors", 15)
//
//	embedding := make([]float32, count*2)
//	u, _ := umapgo.NewUMAP(count, dim, 2, data, embedding, opts)
//	defer u.Close()
//
//	total, _ := u.NEpochs()
//	for epoch := 0; epoch < total; epoch, _ = u.Epoch() {
//	    _ = u.Run(epoch + 10) // interleave with other work
//	}
//
// # Backends
//
//   - hnsw: approximate layered navigable graph (default)
//   - nndescent: approximate neighbor-descent graph
//   - vptree: exact vantage-point tree
//
// # Side Effects
//
// The input matrix is modified in place: with the cosine metric every row is
// L2-normalized, and the embedding path replaces non-finite values with 0.
// The embedding buffer is written by every Run call and must stay valid for
// the lifetime of its context.
//
// # Concurrency
//
// Contexts are not safe for concurrent use. Independent contexts share no
// mutable state and may be used from separate goroutines.
package umapgo
