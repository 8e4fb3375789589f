package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/umapgo"
	"github.com/hupe1980/umapgo/matio"
	"github.com/spf13/cobra"
)

type knnFlags struct {
	k           int
	index       int
	query       string
	indices     string
	distances   string
	optionsFile string
	set         []string
}

func (a *app) newKNNCmd() *cobra.Command {
	f := &knnFlags{}

	cmd := &cobra.Command{
		Use:   "knn <data.npy>",
		Short: "Find the k nearest neighbors of points or query vectors",
		Long: `Build a neighbor index over the rows of a 2-D .npy matrix and query it.

With --index the neighbors of a single row are printed. With --query every row
of the query file is searched. Otherwise the neighbors of every row are
computed, excluding the row itself. Results shorter than k are padded with -1
and an infinite distance.`,
		Example: `  umapctl knn points.npy --index 7 -k 5
  umapctl knn points.npy --query queries.npy -k 10 -o idx.npy --distances dist.npy --set method=hnsw`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("k") {
				a.v.Set("knn.k", f.k)
			}

			return a.runKNN(cmd, args[0], f)
		},
	}

	cmd.Flags().IntVarP(&f.k, "k", "k", 10, "number of neighbors")
	cmd.Flags().IntVar(&f.index, "index", -1, "query the neighbors of this row")
	cmd.Flags().StringVar(&f.query, "query", "", "file of query vectors")
	cmd.Flags().StringVarP(&f.indices, "output", "o", "", "write neighbor indices to this file")
	cmd.Flags().StringVar(&f.distances, "distances", "", "write neighbor distances to this file")
	cmd.Flags().StringVar(&f.optionsFile, "options", "", "YAML options file")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "option assignment key=value (repeatable)")

	return cmd
}

func (a *app) runKNN(cmd *cobra.Command, input string, f *knnFlags) error {
	logger, err := a.logger(cmd)
	if err != nil {
		return err
	}

	k := a.v.GetInt("knn.k")
	if k <= 0 {
		return errorf(CodeCLIInputInvalid, "k must be positive, got %d", k)
	}

	if f.index >= 0 && f.query != "" {
		return errorf(CodeCLIInputInvalid, "--index and --query are mutually exclusive")
	}

	opts := newOptionSet()
	if f.optionsFile != "" {
		if err := opts.loadOptionFile(f.optionsFile); err != nil {
			return err
		}
	}

	if err := opts.parseAssignments(f.set); err != nil {
		return err
	}

	knnOpts := umapgo.NewKNNOptions()
	if err := opts.apply(knnOpts); err != nil {
		return err
	}

	data, count, dim, err := matio.LoadFloat32(input)
	if err != nil {
		return wrapf(err, CodeCLIReadFailure, "loading %s", input)
	}

	knn, err := umapgo.NewKNN(count, dim, data, knnOpts,
		umapgo.WithLogger(logger), umapgo.WithContext(cmd.Context()))
	if err != nil {
		return wrapf(err, CodeCLIComputeFailure, "building neighbor index")
	}
	defer func() { _ = knn.Close() }()

	var (
		rows      int
		indices   []int32
		distances []float32
	)

	switch {
	case f.index >= 0:
		rows = 1
		indices, distances, err = collect(1, k, func(_ int, idx []int32, dist []float32) (int, error) {
			return knn.QueryByIndex(f.index, k, idx, dist)
		})
	case f.query != "":
		queries, qCount, qDim, lerr := matio.LoadFloat32(f.query)
		if lerr != nil {
			return wrapf(lerr, CodeCLIReadFailure, "loading %s", f.query)
		}

		rows = qCount
		indices, distances, err = collect(qCount, k, func(i int, idx []int32, dist []float32) (int, error) {
			return knn.QueryByVector(queries[i*qDim:(i+1)*qDim], k, idx, dist)
		})
	default:
		rows = count
		indices, distances, err = collect(count, k, func(i int, idx []int32, dist []float32) (int, error) {
			return knn.QueryByIndex(i, k, idx, dist)
		})
	}

	if err != nil {
		return wrapf(err, CodeCLIComputeFailure, "querying neighbors")
	}

	if f.indices == "" && f.distances == "" {
		return printNeighbors(cmd, rows, k, indices, distances)
	}

	if f.indices != "" {
		if err := matio.SaveInt32(f.indices, indices, rows, k); err != nil {
			return wrapf(err, CodeCLIWriteFailure, "writing %s", f.indices)
		}
	}

	if f.distances != "" {
		if err := matio.SaveFloat32(f.distances, distances, rows, k); err != nil {
			return wrapf(err, CodeCLIWriteFailure, "writing %s", f.distances)
		}
	}

	return nil
}

// collect runs query for each of rows rows into a rows×k result, padding
// short rows with -1 and +Inf.
func collect(rows, k int, query func(i int, idx []int32, dist []float32) (int, error)) ([]int32, []float32, error) {
	indices := make([]int32, rows*k)
	distances := make([]float32, rows*k)

	for i := range rows {
		idx := indices[i*k : (i+1)*k]
		dist := distances[i*k : (i+1)*k]

		n, err := query(i, idx, dist)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}

		for j := n; j < k; j++ {
			idx[j] = -1
			dist[j] = float32(math.Inf(1))
		}
	}

	return indices, distances, nil
}

func printNeighbors(cmd *cobra.Command, rows, k int, indices []int32, distances []float32) error {
	out := cmd.OutOrStdout()

	for i := range rows {
		var b strings.Builder
		for j := range k {
			if indices[i*k+j] < 0 {
				break
			}

			if j > 0 {
				b.WriteByte(' ')
			}

			fmt.Fprintf(&b, "%d:%.6g", indices[i*k+j], distances[i*k+j])
		}

		if _, err := fmt.Fprintln(out, b.String()); err != nil {
			return wrapf(err, CodeCLIWriteFailure, "writing results")
		}
	}

	return nil
}
