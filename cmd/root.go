package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alpkeskin/gotoon"
	"github.com/joho/godotenv"
	"github.com/pders01/research-collector/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "collector",
	Short: "Scheduled research collection with token-budgeted LLM calls",
	Long: `collector runs research cycles over a catalog of topics:
  - a cheap scan decides whether a query has anything new
  - a full research pass records structured findings
  - a rolling summary keeps the latest view per topic
  - monthly archives condense old daily records into a historical context

Every call is admitted against a tokens-per-minute budget.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/collector/config.toml)")
}

func initConfig() {
	loadEnvFiles(".env", filepath.Join(config.Dir(), ".env"))

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.Dir())
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		fmt.Fprintln(os.Stderr, "Warning: failed to read config:", err)
	}
}

// loadEnvFiles exports variables from the dotenv files that exist. Variables
// already set in the environment win.
func loadEnvFiles(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", p, err)
		}
	}
}

// commandContext returns the command's context, or Background when the
// command was invoked directly
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func printToon(w io.Writer, v any) error {
	output, err := gotoon.Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode Toon: %w", err)
	}
	fmt.Fprintln(w, output)
	return nil
}
