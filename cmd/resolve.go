package cmd

import (
	"github.com/agentic-research/hapsynth/internal/descriptor"
	"github.com/agentic-research/hapsynth/internal/resource"
	"github.com/agentic-research/hapsynth/internal/synth"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <token>",
	Short: "Print the value a resource token points to",
	Example: `  hapsynth resolve '$profile:main_pages'
  hapsynth resolve '$string:ability_label'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := resource.ParseToken(args[0]); err != nil {
			return &ExitError{Code: exitUsage, Err: err}
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store := descriptor.NewStore(osfs.New("/"))
		patcher := resource.NewPatcher(store, synth.ModuleDir(cfg))
		v, err := patcher.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(descriptor.Encode(v))
		return err
	},
}

func init() {
	addConfigFlags(resolveCmd)
	rootCmd.AddCommand(resolveCmd)
}
