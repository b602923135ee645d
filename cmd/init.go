package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/agentic-research/hapsynth/internal/config"
	"github.com/spf13/cobra"
)

var (
	initProject string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter hapsynth.yaml into the app directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configPath
		if path == "" {
			path = filepath.Join(appPath, config.FileName+".yaml")
		}
		if err := config.WriteDefault(path, config.Starter(initProject), initForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initProject, "project", "", "Native host project path")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
	_ = initCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(initCmd)
}
