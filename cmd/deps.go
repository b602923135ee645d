package cmd

import (
	"fmt"
	"maps"
	"strings"

	"github.com/agentic-research/hapsynth/internal/deps"
	"github.com/agentic-research/hapsynth/internal/descriptor"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var (
	extraDeps    []string
	extraDevDeps []string
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Merge native dependencies into the hap's package manifest",
	Long: `Merges the dependencies from the config file's native section, plus any
given with --dep / --dev-dep (name@version), into oh-package.json5. A
project without a manifest is left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		dependencies := maps.Clone(cfg.Native.Dependencies)
		devDependencies := maps.Clone(cfg.Native.DevDependencies)
		if dependencies, err = addSpecs(dependencies, extraDeps); err != nil {
			return err
		}
		if devDependencies, err = addSpecs(devDependencies, extraDevDeps); err != nil {
			return err
		}

		store := descriptor.NewStore(osfs.New("/"))
		written, err := deps.Merge(cmd.Context(), store, cfg.OutputRoot, cfg.UseJSON5, dependencies, devDependencies)
		if err != nil {
			return err
		}
		path := deps.ManifestPath(cfg.OutputRoot, cfg.UseJSON5)
		switch {
		case written:
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", path)
		case !store.Exists(path):
			fmt.Fprintf(cmd.OutOrStdout(), "No manifest at %s, nothing to do\n", path)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%s is up to date\n", path)
		}
		return nil
	},
}

// addSpecs parses name@version specs; scoped names keep their leading @.
func addSpecs(into map[string]string, specs []string) (map[string]string, error) {
	if into == nil {
		into = map[string]string{}
	}
	for _, spec := range specs {
		i := strings.LastIndex(spec, "@")
		if i <= 0 || i == len(spec)-1 {
			return nil, &ExitError{Code: exitUsage, Err: fmt.Errorf("invalid dependency %q, want name@version", spec)}
		}
		into[spec[:i]] = spec[i+1:]
	}
	return into, nil
}

func init() {
	addConfigFlags(depsCmd)
	depsCmd.Flags().StringArrayVar(&extraDeps, "dep", nil, "Extra dependency as name@version (repeatable)")
	depsCmd.Flags().StringArrayVar(&extraDevDeps, "dev-dep", nil, "Extra dev dependency as name@version (repeatable)")
	rootCmd.AddCommand(depsCmd)
}
