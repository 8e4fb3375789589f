package main

import (
	"time"

	"github.com/hupe1980/umapgo"
	"github.com/hupe1980/umapgo/matio"
	"github.com/hupe1980/umapgo/projection"
	"github.com/spf13/cobra"
)

type embedFlags struct {
	output       string
	outputDim    int
	optionsFile  string
	set          []string
	initEmbed    string
	knnIndices   string
	knnDistances string
	cache        bool
}

func (a *app) newEmbedCmd() *cobra.Command {
	f := &embedFlags{}

	cmd := &cobra.Command{
		Use:   "embed <input.npy>",
		Short: "Compute a UMAP embedding of a matrix",
		Long: `Compute a UMAP embedding of the rows of a 2-D .npy matrix.

Options are read from --options (a YAML mapping) and --set key=value flags,
using the same keys as the library option setters. Without --cache the
optimizer runs in slices of --slice epochs and logs its progress.`,
		Example: `  umapctl embed points.npy -o layout.npy --set metric=cosine --set n_neighbors=15
  umapctl embed points.npy.zst -o layout.npy --cache --knn-indices knn.npy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.v.BindPFlag("embed.slice", cmd.Flags().Lookup("slice")); err != nil {
				return wrapf(err, CodeCLISetupFailure, "binding slice flag")
			}

			return a.runEmbed(cmd, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "embedding.npy", "output file (.npy, .npy.zst or .npy.lz4)")
	cmd.Flags().IntVarP(&f.outputDim, "dim", "d", projection.DefaultOutputDim, "embedding dimensionality")
	cmd.Flags().StringVar(&f.optionsFile, "options", "", "YAML options file")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "option assignment key=value (repeatable)")
	cmd.Flags().Int("slice", 50, "epochs per optimizer slice")
	cmd.Flags().StringVar(&f.initEmbed, "init", "", "initial layout file, used with initialize_method=none")
	cmd.Flags().StringVar(&f.knnIndices, "knn-indices", "", "also write the neighbor indices to this file")
	cmd.Flags().StringVar(&f.knnDistances, "knn-distances", "", "also write the neighbor distances to this file")
	cmd.Flags().BoolVar(&f.cache, "cache", false, "look up and store the projection in the configured cache")

	return cmd
}

func (a *app) projectionArgs(optionsFile string, set []string, outputDim int) (projection.Args, error) {
	if outputDim <= 0 {
		return projection.Args{}, errorf(CodeCLIInputInvalid, "--dim must be positive, got %d", outputDim)
	}

	opts := newOptionSet()
	if optionsFile != "" {
		if err := opts.loadOptionFile(optionsFile); err != nil {
			return projection.Args{}, err
		}
	}

	if err := opts.parseAssignments(set); err != nil {
		return projection.Args{}, err
	}

	return projection.Args{Numbers: opts.Numbers, Strings: opts.Strings, OutputDim: outputDim}, nil
}

func (a *app) runEmbed(cmd *cobra.Command, input string, f *embedFlags) error {
	logger, err := a.logger(cmd)
	if err != nil {
		return err
	}

	args, err := a.projectionArgs(f.optionsFile, f.set, f.outputDim)
	if err != nil {
		return err
	}

	data, count, dim, err := matio.LoadFloat32(input)
	if err != nil {
		return wrapf(err, CodeCLIReadFailure, "loading %s", input)
	}

	logger = logger.WithCount(count).WithDimension(dim)

	if f.cache || f.knnIndices != "" || f.knnDistances != "" {
		if f.initEmbed != "" {
			return errorf(CodeCLIInputInvalid, "--init cannot be combined with --cache or neighbor outputs")
		}

		return a.embedProjection(cmd, logger, data, count, dim, args, f)
	}

	opts, err := args.Options()
	if err != nil {
		return wrapf(err, CodeConfigValidateInvalidValue, "embedding options")
	}

	embedding := make([]float32, count*f.outputDim)
	if f.initEmbed != "" {
		layout, rows, cols, err := matio.LoadFloat32(f.initEmbed)
		if err != nil {
			return wrapf(err, CodeCLIReadFailure, "loading %s", f.initEmbed)
		}

		if rows != count || cols != f.outputDim {
			return errorf(CodeCLIInputInvalid, "initial layout is %d×%d, want %d×%d", rows, cols, count, f.outputDim)
		}

		copy(embedding, layout)
	}

	u, err := umapgo.NewUMAP(count, dim, f.outputDim, data, embedding, opts,
		umapgo.WithLogger(logger), umapgo.WithContext(cmd.Context()))
	if err != nil {
		return wrapf(err, CodeCLIComputeFailure, "initializing embedding")
	}
	defer func() { _ = u.Close() }()

	if err := runSlices(cmd, logger, u, a.v.GetInt("embed.slice")); err != nil {
		return err
	}

	if err := matio.SaveFloat32(f.output, embedding, count, f.outputDim); err != nil {
		return wrapf(err, CodeCLIWriteFailure, "writing %s", f.output)
	}

	logger.InfoContext(cmd.Context(), "embedding written", "path", f.output)

	return nil
}

// runSlices drives the optimizer to completion in slices of the given number
// of epochs, stopping early when the command context is cancelled.
func runSlices(cmd *cobra.Command, logger *umapgo.Logger, u *umapgo.UMAP, slice int) error {
	if slice <= 0 {
		return errorf(CodeConfigValidateInvalidValue, "embed.slice must be positive, got %d", slice)
	}

	total, err := u.NEpochs()
	if err != nil {
		return wrapf(err, CodeCLIComputeFailure, "reading epoch count")
	}

	start := time.Now()

	for {
		epoch, err := u.Epoch()
		if err != nil {
			return wrapf(err, CodeCLIComputeFailure, "reading epoch")
		}

		if epoch >= total {
			break
		}

		if err := cmd.Context().Err(); err != nil {
			return wrapf(err, CodeCLIComputeFailure, "embedding interrupted at epoch %d", epoch)
		}

		if err := u.Run(min(epoch+slice, total)); err != nil {
			return wrapf(err, CodeCLIComputeFailure, "running optimizer")
		}

		epoch, _ = u.Epoch()
		logger.InfoContext(cmd.Context(), "optimizing", "epoch", epoch, "n_epochs", total)
	}

	logger.InfoContext(cmd.Context(), "optimization finished", "n_epochs", total, "duration", time.Since(start))

	return nil
}

func (a *app) embedProjection(cmd *cobra.Command, logger *umapgo.Logger, data []float32, count, dim int, args projection.Args, f *embedFlags) error {
	ctx := cmd.Context()
	optFns := []umapgo.Option{umapgo.WithLogger(logger), umapgo.WithContext(ctx)}

	var (
		r   *projection.Result
		err error
	)

	if f.cache {
		store, serr := openStore(ctx, a.v)
		if serr != nil {
			return serr
		}

		compression, cerr := parseCompression(a.v.GetString("cache.compression"))
		if cerr != nil {
			return cerr
		}

		cache := projection.NewCache(store, func(o *projection.CacheOptions) {
			o.Compression = compression
			o.Logger = logger
		})

		var hit bool

		r, hit, err = cache.Compute(ctx, data, count, dim, args, optFns...)
		if err != nil {
			return wrapf(err, CodeCLIStoreFailure, "computing cached projection")
		}

		logger.DebugContext(ctx, "projection cache", "hit", hit)
	} else {
		r, err = projection.Compute(data, count, dim, args, optFns...)
		if err != nil {
			return wrapf(err, CodeCLIComputeFailure, "computing projection")
		}
	}

	if err := matio.SaveFloat32(f.output, r.Embedding, r.Count, r.OutputDim); err != nil {
		return wrapf(err, CodeCLIWriteFailure, "writing %s", f.output)
	}

	if f.knnIndices != "" {
		if err := matio.SaveInt32(f.knnIndices, r.KNNIndices, r.Count, r.NNeighbors); err != nil {
			return wrapf(err, CodeCLIWriteFailure, "writing %s", f.knnIndices)
		}
	}

	if f.knnDistances != "" {
		if err := matio.SaveFloat32(f.knnDistances, r.KNNDistances, r.Count, r.NNeighbors); err != nil {
			return wrapf(err, CodeCLIWriteFailure, "writing %s", f.knnDistances)
		}
	}

	logger.InfoContext(ctx, "projection written", "path", f.output)

	return nil
}
