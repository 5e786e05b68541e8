// Package config exposes typed access to the viper configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/pders01/research-collector/internal/models"
	"github.com/pders01/research-collector/internal/provider"
	"github.com/pders01/research-collector/internal/throttle"
	"github.com/spf13/viper"
)

// AppName names the config and data directories
const AppName = "collector"

// EnvPrefix is prepended to every environment override, e.g. COLLECTOR_RESEARCH_CYCLE_SIZE
const EnvPrefix = "COLLECTOR"

// Dir returns the default config directory
func Dir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultFile returns the default config file path
func DefaultFile() string {
	return filepath.Join(Dir(), "config.toml")
}

// DefaultCatalogFile returns the topics file written by init
func DefaultCatalogFile() string {
	return filepath.Join(Dir(), "topics.yaml")
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider.backend", "anthropic")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.scan_model", "claude-haiku-4-5-20251001")
	v.SetDefault("provider.research_model", "claude-sonnet-4-20250514")
	v.SetDefault("provider.synthesis_model", "claude-sonnet-4-20250514")
	v.SetDefault("provider.scan_max_tokens", 300)
	v.SetDefault("provider.research_max_tokens", 2000)
	v.SetDefault("provider.synthesis_max_tokens", 3000)
	v.SetDefault("provider.history_max_tokens", 4000)
	v.SetDefault("provider.timeout", "120s")

	v.SetDefault("throttle.tokens_per_minute", 30000)
	v.SetDefault("throttle.safety_margin", 0.85)
	v.SetDefault("throttle.window", "60s")
	v.SetDefault("throttle.cooldown", "65s")

	v.SetDefault("research.cycle_size", 2)
	v.SetDefault("research.timeout", "14m")
	v.SetDefault("research.watchlist_limit", 20)
	v.SetDefault("research.catalog", "")

	v.SetDefault("archive.retention_days", 30)
	v.SetDefault("archive.history_months", 12)
	v.SetDefault("archive.dedupe_threshold", 0.8)

	v.SetDefault("storage.root", filepath.Join(xdg.DataHome, AppName))

	v.SetDefault("summary.check_version", true)

	p := models.DefaultPricing()
	v.SetDefault("pricing.scan.input_per_mtok", p.Scan.InputPerMTok)
	v.SetDefault("pricing.scan.output_per_mtok", p.Scan.OutputPerMTok)
	v.SetDefault("pricing.research.input_per_mtok", p.Research.InputPerMTok)
	v.SetDefault("pricing.research.output_per_mtok", p.Research.OutputPerMTok)

	v.SetDefault("schedule.research_interval", "12h")
	v.SetDefault("schedule.archive_interval", "720h")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// GetProviderConfig returns the backend selection. The API key falls back to
// ANTHROPIC_API_KEY.
func GetProviderConfig() provider.Config {
	key := viper.GetString("provider.api_key")
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	return provider.Config{
		Backend: viper.GetString("provider.backend"),
		APIKey:  key,
		BaseURL: viper.GetString("provider.base_url"),
	}
}

// GetProviderTimeout returns the per-request HTTP timeout
func GetProviderTimeout() time.Duration {
	return viper.GetDuration("provider.timeout")
}

func GetScanModel() string      { return viper.GetString("provider.scan_model") }
func GetResearchModel() string  { return viper.GetString("provider.research_model") }
func GetSynthesisModel() string { return viper.GetString("provider.synthesis_model") }

func GetScanMaxTokens() int      { return viper.GetInt("provider.scan_max_tokens") }
func GetResearchMaxTokens() int  { return viper.GetInt("provider.research_max_tokens") }
func GetSynthesisMaxTokens() int { return viper.GetInt("provider.synthesis_max_tokens") }
func GetHistoryMaxTokens() int   { return viper.GetInt("provider.history_max_tokens") }

// GetThrottleOptions returns the token budget settings
func GetThrottleOptions() throttle.Options {
	return throttle.Options{
		TokensPerMinute: viper.GetInt("throttle.tokens_per_minute"),
		SafetyMargin:    viper.GetFloat64("throttle.safety_margin"),
		Window:          viper.GetDuration("throttle.window"),
		Cooldown:        viper.GetDuration("throttle.cooldown"),
	}
}

// GetCycleSize returns the number of random fill queries per cycle
func GetCycleSize() int {
	return viper.GetInt("research.cycle_size")
}

// GetResearchTimeout returns the wall-clock budget of one research invocation
func GetResearchTimeout() time.Duration {
	return viper.GetDuration("research.timeout")
}

// GetWatchlistLimit returns the cap of the rolling watchlist
func GetWatchlistLimit() int {
	return viper.GetInt("research.watchlist_limit")
}

// GetCatalogPath returns the topics file, empty for the built-in catalog
func GetCatalogPath() string {
	return viper.GetString("research.catalog")
}

// GetRetentionDays returns how old a month must be before it is condensed
func GetRetentionDays() int {
	return viper.GetInt("archive.retention_days")
}

// GetHistoryMonths returns how many archives feed the historical context
func GetHistoryMonths() int {
	return viper.GetInt("archive.history_months")
}

// GetDedupeThreshold returns the headline similarity above which findings merge
func GetDedupeThreshold() float64 {
	return viper.GetFloat64("archive.dedupe_threshold")
}

// GetStorageRoot returns the object store root directory
func GetStorageRoot() string {
	return viper.GetString("storage.root")
}

// GetCheckVersion reports whether summary writes are version-checked
func GetCheckVersion() bool {
	return viper.GetBool("summary.check_version")
}

// GetPricing returns the per-tier token prices
func GetPricing() models.Pricing {
	return models.Pricing{
		Scan: models.Rate{
			InputPerMTok:  viper.GetFloat64("pricing.scan.input_per_mtok"),
			OutputPerMTok: viper.GetFloat64("pricing.scan.output_per_mtok"),
		},
		Research: models.Rate{
			InputPerMTok:  viper.GetFloat64("pricing.research.input_per_mtok"),
			OutputPerMTok: viper.GetFloat64("pricing.research.output_per_mtok"),
		},
	}
}

// GetResearchInterval returns the daemon's research trigger period
func GetResearchInterval() time.Duration {
	return viper.GetDuration("schedule.research_interval")
}

// GetArchiveInterval returns the daemon's archive trigger period
func GetArchiveInterval() time.Duration {
	return viper.GetDuration("schedule.archive_interval")
}

// GetServerAddr returns the listen address of the HTTP trigger
func GetServerAddr() string {
	return viper.GetString("server.addr")
}

// GetShutdownTimeout bounds how long serve waits for a running invocation on exit
func GetShutdownTimeout() time.Duration {
	return viper.GetDuration("server.shutdown_timeout")
}

func GetLogLevel() string  { return viper.GetString("log.level") }
func GetLogFormat() string { return viper.GetString("log.format") }
