package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentic-research/hapsynth/api"
	"github.com/agentic-research/hapsynth/internal/ctxlog"
	"github.com/agentic-research/hapsynth/internal/discovery"
	"github.com/agentic-research/hapsynth/internal/pipeline"
	"github.com/agentic-research/hapsynth/internal/watch"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var (
	watchMode     bool
	watchInterval time.Duration
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Discover pages and synthesize the native host descriptors",
	Long: `Resolves every configured page, loads static assets, then updates the
build profile, module descriptor, resource tables and dependency manifest
of the native host project. With --watch it rebuilds on source changes.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	addConfigFlags(buildCmd)
	buildCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Rebuild when sources change")
	buildCmd.Flags().DurationVar(&watchInterval, "interval", watch.DefaultInterval, "Coalescing window for watch rebuilds")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := ctxlog.FromContext(ctx)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.IsWatch = watchMode
	out := cmd.OutOrStdout()
	cfg.OnBuildFinish = func(r api.BuildResult) {
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "Build failed: %v\n", r.Err)
		case len(r.Warnings) > 0:
			fmt.Fprintf(out, "Build finished with %d warning(s).\n", len(r.Warnings))
		default:
			fmt.Fprintln(out, "Build finished.")
		}
	}

	fsys := osfs.New("/")
	pc, err := pipeline.New(cfg, fsys)
	if err != nil {
		return err
	}
	exts := cfg.FrameworkExts
	if len(exts) == 0 {
		exts = discovery.DefaultFrameworkExts
	}
	host := pipeline.NewFSHost(fsys, cfg.OutputRoot, exts, cfg.Env)

	build := func(ctx context.Context) error {
		start := time.Now()
		if err := pc.BuildStart(ctx, host); err != nil {
			return err
		}
		stats, err := pc.ScanAssets(ctx, host)
		if err != nil {
			return err
		}
		if _, err := pc.CloseBundle(ctx); err != nil {
			return err
		}
		logger.Info("Build complete.",
			"pages", len(pc.Routes()),
			"assets_inlined", stats.Inlined,
			"assets_emitted", stats.Emitted,
			"duration", time.Since(start),
		)
		return nil
	}

	if err := build(ctx); err != nil {
		return err
	}
	if !watchMode {
		return nil
	}

	w, err := watch.New([]string{cfg.SourceDir()}, watchInterval)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("Watching for changes.", "dir", cfg.SourceDir())
	return w.Run(ctx, func(ctx context.Context, _ []string) error {
		return build(ctx)
	})
}
