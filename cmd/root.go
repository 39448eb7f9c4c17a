package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "ROTOSOLVE"

var (
	logLevel   string
	configFile string
	dataDir    string
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rotosolve",
	Short: "Gradient-free coordinate optimizer for sinusoidal objectives",
	Long: `Rotosolve minimizes objectives that are a single sinusoid of period 2π
along every coordinate, solving each coordinate exactly from three
evaluations. Jobs run locally or on an HTTP server with checkpoints,
sweep traces and progress streaming.

Every flag can also be set in the file given by --config or through a
ROTOSOLVE_<FLAG> environment variable (dashes become underscores).
Command line flags take precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyConfig(cmd.Flags()); err != nil {
			return err
		}

		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stdout, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Base directory for checkpoints and traces")
}

// applyConfig sets every flag the user did not pass explicitly from the
// config file or the environment
func applyConfig(flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var result *multierror.Error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "config" || !v.IsSet(f.Name) {
			return
		}
		if err := f.Value.Set(v.GetString(f.Name)); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid value for %s: %w", f.Name, err))
		}
	})
	return result.ErrorOrNil()
}

// commandContext returns the command's context, or a background context when
// the command was not started through Execute
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
