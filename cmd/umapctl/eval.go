package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/umapgo"
	"github.com/hupe1980/umapgo/matio"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type evalFlags struct {
	k           int
	sample      int
	optionsFile string
	set         []string
}

// evalMethods are the backends measured against the exact VP-tree.
var evalMethods = []umapgo.Method{umapgo.MethodHNSW, umapgo.MethodNNDescent}

type evalResult struct {
	method umapgo.Method
	knn    *umapgo.KNN
	build  time.Duration
	recall float64
}

func (a *app) newEvalCmd() *cobra.Command {
	f := &evalFlags{}

	cmd := &cobra.Command{
		Use:   "eval <data.npy>",
		Short: "Measure the recall of the approximate neighbor backends",
		Long: `Build the exact VP-tree and every approximate backend over the same data and
report, per backend, the build time and the fraction of exact neighbors found.`,
		Example: `  umapctl eval points.npy -k 15 --sample 500 --set metric=cosine`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEval(cmd, args[0], f)
		},
	}

	cmd.Flags().IntVarP(&f.k, "k", "k", 10, "number of neighbors")
	cmd.Flags().IntVar(&f.sample, "sample", 0, "number of rows to query (0 queries every row)")
	cmd.Flags().StringVar(&f.optionsFile, "options", "", "YAML options file")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "option assignment key=value (repeatable)")

	return cmd
}

func (a *app) runEval(cmd *cobra.Command, input string, f *evalFlags) error {
	logger, err := a.logger(cmd)
	if err != nil {
		return err
	}

	if f.k <= 0 {
		return errorf(CodeCLIInputInvalid, "k must be positive, got %d", f.k)
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

	data, count, dim, err := matio.LoadFloat32(input)
	if err != nil {
		return wrapf(err, CodeCLIReadFailure, "loading %s", input)
	}

	sample := count
	if f.sample > 0 && f.sample < count {
		sample = f.sample
	}

	methods := append([]umapgo.Method{umapgo.MethodVPTree}, evalMethods...)
	configs := make([]*umapgo.KNNOptions, len(methods))

	for i, method := range methods {
		knnOpts := umapgo.NewKNNOptions()
		if err := opts.apply(knnOpts); err != nil {
			return err
		}
		knnOpts.Method = method
		configs[i] = knnOpts
	}

	results := make([]*evalResult, len(methods))

	g, ctx := errgroup.WithContext(cmd.Context())
	for i, knnOpts := range configs {
		method := knnOpts.Method

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			start := time.Now()

			// Each index gets its own copy: cosine normalizes rows in place.
			knn, err := umapgo.NewKNN(count, dim, slices.Clone(data), knnOpts,
				umapgo.WithLogger(logger), umapgo.WithContext(ctx))
			if err != nil {
				return wrapf(err, CodeCLIComputeFailure, "building %s index", method)
			}

			results[i] = &evalResult{method: method, knn: knn, build: time.Since(start)}

			return nil
		})
	}

	defer func() {
		for _, r := range results {
			if r != nil {
				_ = r.knn.Close()
			}
		}
	}()

	if err := g.Wait(); err != nil {
		return err
	}

	exact := results[0]
	exact.recall = 1
	k := min(f.k, count-1)

	for _, r := range results[1:] {
		recall, err := measureRecall(exact.knn, r.knn, sample, k)
		if err != nil {
			return wrapf(err, CodeCLIComputeFailure, "evaluating %s", r.method)
		}
		r.recall = recall
	}

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "%-10s %12s %8s\n", "method", "build", "recall"); err != nil {
		return wrapf(err, CodeCLIWriteFailure, "writing results")
	}

	for _, r := range results {
		if _, err := fmt.Fprintf(out, "%-10s %12s %8.4f\n", r.method, r.build.Round(time.Microsecond), r.recall); err != nil {
			return wrapf(err, CodeCLIWriteFailure, "writing results")
		}
	}

	return nil
}

// measureRecall returns the fraction of the exact k nearest neighbors of the
// first sample rows that approx also returns.
func measureRecall(exact, approx *umapgo.KNN, sample, k int) (float64, error) {
	if k <= 0 || sample == 0 {
		return 1, nil
	}

	var found, total int

	for i := range sample {
		want, _, err := exact.Query(i, k)
		if err != nil {
			return 0, err
		}

		got, _, err := approx.Query(i, k)
		if err != nil {
			return 0, err
		}

		for _, idx := range want {
			if slices.Contains(got, idx) {
				found++
			}
		}

		total += len(want)
	}

	if total == 0 {
		return 1, nil
	}

	return float64(found) / float64(total), nil
}
