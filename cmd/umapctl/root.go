package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/hupe1980/umapgo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by all subcommands.
type app struct {
	v *viper.Viper
}

// NewRootCmd creates the root umapctl command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "umapctl",
		Short:         "UMAP embeddings and nearest-neighbor queries",
		Long:          "umapctl computes UMAP embeddings of .npy matrices and answers k-nearest-neighbor queries with exact and approximate backends.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initViper(cmd)
		},
	}

	// Global flags, bound to viper keys in initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "log format (text, json)")

	root.AddCommand(
		a.newEmbedCmd(),
		a.newKNNCmd(),
		a.newEvalCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up defaults, env bindings, flag bindings and an optional
// config file so the standard precedence (flag > env > file > defaults) is
// handled uniformly.
func (a *app) initViper(cmd *cobra.Command) error {
	v := a.v

	setDefaults(v)

	v.SetEnvPrefix("UMAPGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return wrapf(err, CodeConfigLoadReadFailure, "reading config file")
		}
	} else {
		v.SetConfigName("umapctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/umapgo")
		// A missing config file is fine; defaults and env vars still apply.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return wrapf(err, CodeConfigLoadReadFailure, "reading config")
			}
		}
	}

	for key, flag := range map[string]string{"log.level": "log-level", "log.format": "log-format"} {
		if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
			return wrapf(err, CodeCLISetupFailure, "binding %s flag", flag)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("embed.slice", 50)
	v.SetDefault("knn.k", 10)
	v.SetDefault("cache.backend", "local")
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.prefix", "projections")
	v.SetDefault("cache.compression", "zstd")
	v.SetDefault("cache.minio.secure", true)
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".umapgo-cache"
	}

	return dir + string(os.PathSeparator) + "umapgo"
}

// logger builds the logger configured by log.level and log.format. Records
// go to the command's error stream.
func (a *app) logger(cmd *cobra.Command) (*umapgo.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log.level"))); err != nil {
		return nil, wrapf(err, CodeConfigValidateInvalidValue, "log.level")
	}

	opts := &slog.HandlerOptions{Level: level}

	switch format := a.v.GetString("log.format"); format {
	case "text":
		return umapgo.NewLogger(slog.NewTextHandler(cmd.ErrOrStderr(), opts)), nil
	case "json":
		return umapgo.NewLogger(slog.NewJSONHandler(cmd.ErrOrStderr(), opts)), nil
	default:
		return nil, errorf(CodeConfigValidateInvalidValue, "log.format %q is neither text nor json", format)
	}
}
