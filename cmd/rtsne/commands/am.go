package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/rtsne/am"
	"github.com/teranos/rtsne/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage rtsne configuration",
	Long: `am - Manage rtsne configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (RTSNE_* prefix, e.g. RTSNE_EMBEDDING_THETA)
3. Project config (./am.toml, searched up directories)
4. User config (~/.rtsne/am.toml)
5. System config (/etc/rtsne/am.toml)
6. Default values

Examples:
  rtsne am show                        # Show current configuration
  rtsne am show --format json          # Show configuration in JSON format
  rtsne am get embedding.perplexity    # Get specific config value
  rtsne am set embedding.theta 0.3     # Write a value to the active config file
  rtsne am init                        # Write the defaults to ~/.rtsne/am.toml
  rtsne am validate                    # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., embedding.theta, server.port)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the active config file (the project am.toml
if one exists, otherwise ~/.rtsne/am.toml). The previous file is backed up.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to the user config file",
	RunE:  runAmInit,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where each setting is loaded from",
	RunE:  runAmWhere,
}

var (
	configFormat string
	initForce    bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amInitCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Fprintf(out, "# rtsne configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Fprintf(out, "# rtsne configuration\n%s", string(data))

	default:
		return errors.WithHint(
			errors.NewInvalidRequestError("unsupported format: %s", configFormat),
			"supported formats: toml, json, yaml")
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !am.IsSet(key) {
		return errors.WithHint(
			errors.NewNotFoundError("configuration key %q", key),
			"run 'rtsne am where' to list every key")
	}
	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	if !am.IsSet(key) {
		return errors.WithHint(
			errors.NewNotFoundError("configuration key %q", key),
			"run 'rtsne am where' to list every key")
	}

	path := am.ActiveConfigFile()
	if path == "" {
		path = filepath.Join(am.UserConfigDir(), am.ConfigFileName)
	}
	if err := am.SetValue(path, key, parseValue(raw)); err != nil {
		return err
	}
	pterm.Success.Printf("%s = %s (%s)\n", key, raw, path)
	return nil
}

// parseValue keeps TOML types for numbers and booleans typed on the command line.
func parseValue(raw string) interface{} {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(am.UserConfigDir(), am.ConfigFileName)
	if _, err := os.Stat(path); err == nil && !initForce {
		return errors.WithHint(
			errors.Newf("%s already exists", path),
			"use --force to overwrite it (a backup is kept)")
	}
	if err := am.Save(am.Defaults(), path); err != nil {
		return err
	}
	pterm.Success.Printf("Wrote default configuration to %s\n", path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(cmd.OutOrStdout(), "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintln(cmd.OutOrStdout(), "  2. [SYSTEM]   /etc/rtsne/am.toml")
	fmt.Fprintln(cmd.OutOrStdout(), "  3. [USER]     ~/.rtsne/am.toml")
	fmt.Fprintln(cmd.OutOrStdout(), "  4. [PROJECT]  ./am.toml (searches up directories)")
	fmt.Fprintln(cmd.OutOrStdout(), "  5. [ENV]      RTSNE_* environment variables")
	fmt.Fprintln(cmd.OutOrStdout())

	data := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range am.GetSettings() {
		value := fmt.Sprintf("%v", s.Value)
		if len(value) > 50 {
			value = value[:47] + "..."
		}
		data = append(data, []string{s.Key, value, string(s.Source), s.SourcePath})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
}
