package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/agentic-research/hapsynth/api"
	"github.com/agentic-research/hapsynth/internal/config"
	"github.com/agentic-research/hapsynth/internal/ctxlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes.
const (
	exitFailure = 1
	exitUsage   = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

var (
	appPath    string
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "hapsynth",
	Short:         "Synthesize HarmonyOS host project descriptors from a Taro build",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger := ctxlog.New(logLevel, logFormat, cmd.ErrOrStderr())
		cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&appPath, "app", "a", ".", "Path to the Taro project")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <app>/hapsynth.{yaml,json,toml})")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}

// addConfigFlags registers the flags that override config file keys.
func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("project", "", "Native host project path")
	f.String("output", "", "Output root for emitted scripts")
	f.String("variant", "", "Descriptor variant: stage or ability")
	f.String("app-id", "", "App id used as main element")
	f.Int("design-width", 0, "Design width (0 keeps the configured value)")
	f.String("env", "", "Multi-platform file suffix")
}

// loadConfig resolves the build configuration for cmd.
func loadConfig(cmd *cobra.Command) (*api.BuildConfig, error) {
	v := newViper()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v, appPath)
	if err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := config.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	return v
}

// usageError marks configuration mistakes with the usage exit code.
func usageError(err error) error {
	if errors.Is(err, config.ErrProjectPathEmpty) ||
		errors.Is(err, config.ErrNoPages) ||
		errors.Is(err, config.ErrUnknownVariant) {
		return &ExitError{Code: exitUsage, Err: err}
	}
	return err
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitFailure)
	}
}
