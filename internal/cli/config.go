package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/halidom/internal/config"
)

var (
	flagProject bool
	flagForce   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage halidom configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	Long: "Create the user configuration file, or with --project a " +
		config.ProjectFile + " in the repository directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagProject {
			path, err := config.SaveProject(flagDirectory, config.Default(), flagForce)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project config created at %s\n", path)
			return nil
		}

		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !flagForce {
			fmt.Fprintf(cmd.ErrOrStderr(), "Config file already exists at %s\n", path)
			return nil
		}
		if err := config.Save(config.Default()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the user configuration file",
	Long:  "Set a value in the user configuration file. Keys: " + strings.Join(config.Keys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		cfg := config.Default()
		if _, err := os.Stat(path); err == nil {
			if cfg, err = config.LoadFile(); err != nil {
				return err
			}
		}

		if err := config.SetField(&cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagDirectory, nil)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.PersistentFlags().StringVarP(&flagDirectory, "directory", "d", ".", "Repository directory")
	configInitCmd.Flags().BoolVar(&flagProject, "project", false, "Write "+config.ProjectFile+" instead of the user config")
	configInitCmd.Flags().BoolVar(&flagForce, "force", false, "Overwrite an existing file")
}
