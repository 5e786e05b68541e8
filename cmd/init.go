package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pders01/research-collector/internal/catalog"
	"github.com/pders01/research-collector/internal/config"
	"github.com/spf13/cobra"
)

var initDir string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration and topic catalog",
	Long: `Write a default config.toml and a starter topics.yaml.

Existing files are left alone. Edit topics.yaml to change what research
cycles look for; the generated config points research.catalog at it.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initDir, "dir", "", "Config directory (default is $XDG_CONFIG_HOME/collector)")
}

type providerSection struct {
	Backend        string `toml:"backend"`
	ScanModel      string `toml:"scan_model"`
	ResearchModel  string `toml:"research_model"`
	SynthesisModel string `toml:"synthesis_model"`
}

type throttleSection struct {
	TokensPerMinute int     `toml:"tokens_per_minute"`
	SafetyMargin    float64 `toml:"safety_margin"`
}

type researchSection struct {
	CycleSize int    `toml:"cycle_size"`
	Timeout   string `toml:"timeout"`
	Catalog   string `toml:"catalog"`
}

type archiveSection struct {
	RetentionDays int `toml:"retention_days"`
	HistoryMonths int `toml:"history_months"`
}

type storageSection struct {
	Root string `toml:"root"`
}

type scheduleSection struct {
	ResearchInterval string `toml:"research_interval"`
	ArchiveInterval  string `toml:"archive_interval"`
}

// configFile is the subset of settings init writes out
type configFile struct {
	Provider providerSection `toml:"provider"`
	Throttle throttleSection `toml:"throttle"`
	Research researchSection `toml:"research"`
	Archive  archiveSection  `toml:"archive"`
	Storage  storageSection  `toml:"storage"`
	Schedule scheduleSection `toml:"schedule"`
}

func defaultConfigFile(catalogPath string) configFile {
	thr := config.GetThrottleOptions()
	return configFile{
		Provider: providerSection{
			Backend:        config.GetProviderConfig().Backend,
			ScanModel:      config.GetScanModel(),
			ResearchModel:  config.GetResearchModel(),
			SynthesisModel: config.GetSynthesisModel(),
		},
		Throttle: throttleSection{TokensPerMinute: thr.TokensPerMinute, SafetyMargin: thr.SafetyMargin},
		Research: researchSection{
			CycleSize: config.GetCycleSize(),
			Timeout:   config.GetResearchTimeout().String(),
			Catalog:   catalogPath,
		},
		Archive: archiveSection{RetentionDays: config.GetRetentionDays(), HistoryMonths: config.GetHistoryMonths()},
		Storage: storageSection{Root: config.GetStorageRoot()},
		Schedule: scheduleSection{
			ResearchInterval: config.GetResearchInterval().String(),
			ArchiveInterval:  config.GetArchiveInterval().String(),
		},
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := initDir
	if dir == "" {
		dir = config.Dir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	w := cmd.OutOrStdout()
	catalogPath := filepath.Join(dir, "topics.yaml")
	configPath := filepath.Join(dir, "config.toml")

	if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
		if err := os.WriteFile(catalogPath, catalog.DefaultYAML(), 0644); err != nil {
			return fmt.Errorf("failed to create topic catalog: %w", err)
		}
		fmt.Fprintf(w, "✓ Created topic catalog: %s\n", catalogPath)
	} else {
		fmt.Fprintf(w, "Topic catalog already exists: %s\n", catalogPath)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		var buf bytes.Buffer
		buf.WriteString("# Generated by collector init. The API key is read from ANTHROPIC_API_KEY.\n\n")
		if err := toml.NewEncoder(&buf).Encode(defaultConfigFile(catalogPath)); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		if err := os.WriteFile(configPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		fmt.Fprintf(w, "✓ Created default config: %s\n", configPath)
	} else {
		fmt.Fprintf(w, "Config already exists: %s\n", configPath)
	}

	fmt.Fprintln(w, "\n✓ Collector initialized successfully!")
	fmt.Fprintln(w, "  You can now use: collector run")
	return nil
}
