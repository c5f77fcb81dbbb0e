package main

import (
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"contractgen/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Long: `Manage the configuration file.

The file lives at ~/.contract-gen.yaml unless CONTRACT_GEN_CONFIG names
another path. It holds output defaults and named connections that database
commands accept as "@name".`,
	}
	cmd.AddCommand(
		newConfigInitCmd(a),
		newConfigShowCmd(a),
		newConfigValidateCmd(a),
		newConfigPathCmd(a),
		newConfigEnvCmd(a),
	)
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file with default values",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			path, err := config.Init(force)
			switch {
			case errors.Is(err, fs.ErrExist):
				return &cliError{msg: err.Error(), hint: "Use --force to overwrite, or edit the existing file"}
			case err != nil:
				return &cliError{msg: "Failed to create config file: " + err.Error()}
			}
			a.out.Success("Created config file: %s", path)
			a.out.Println("Edit this file to customize your defaults and connections.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return &cliError{msg: "Failed to load config: " + err.Error()}
			}
			data, err := cfg.Marshal()
			if err != nil {
				return &cliError{msg: "Failed to load config: " + err.Error()}
			}
			a.out.Printf("Config file: %s\n", config.Path())
			if !config.Exists() {
				a.out.Println("(using built-in defaults, file does not exist)")
			}
			a.out.Println()
			a.out.Printf("%s", data)
			return nil
		},
	}
}

func newConfigValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			path := config.Path()
			if !config.Exists() {
				return &cliError{msg: "Config file does not exist: " + path, hint: "Run 'contract-gen config init' first"}
			}
			cfg, err := config.Load()
			if err != nil {
				return &cliError{msg: "Failed to validate config: " + err.Error()}
			}
			if problems := config.Validate(cfg); len(problems) > 0 {
				return &cliError{msg: "Config validation failed:", details: problems}
			}
			a.out.Success("Config file is valid")
			return nil
		},
	}
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			a.out.Println(config.Path())
		},
	}
}

func newConfigEnvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables that override the configuration",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			a.out.Printf("%s", config.EnvUsage())
		},
	}
}
