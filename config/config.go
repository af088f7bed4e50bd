package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research assistant.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	LLM        LLMConfig        `mapstructure:"llm"`
	BrightData BrightDataConfig `mapstructure:"brightdata"`
	Research   ResearchConfig   `mapstructure:"research"`
	Server     ServerConfig     `mapstructure:"server"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig configures the language-model provider.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// BrightDataConfig configures the scraping provider gateway.
type BrightDataConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Zone            string        `mapstructure:"zone"`
	DatasetID       string        `mapstructure:"dataset_id"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	PollMaxAttempts int           `mapstructure:"poll_max_attempts"`
	PollDelay       time.Duration `mapstructure:"poll_delay"`
}

// ResearchConfig tunes the discussion discovery and comment retrieval jobs.
type ResearchConfig struct {
	DiscoveryDateRange string `mapstructure:"discovery_date_range"`
	DiscoverySort      string `mapstructure:"discovery_sort"`
	DiscoveryLimit     int    `mapstructure:"discovery_limit"`
	CommentDaysBack    int    `mapstructure:"comment_days_back"`
	CommentLimit       int    `mapstructure:"comment_limit"`
	LoadAllReplies     bool   `mapstructure:"load_all_replies"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// Load reads configuration from an optional config file and the environment.
// Environment variables use the PROSPECTOR_ prefix with dots replaced by
// underscores (e.g. PROSPECTOR_LLM_API_KEY). The two provider secrets also fall
// back to the conventional OPENAI_API_KEY / BRIGHTDATA_API_KEY variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", 10*time.Minute)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("brightdata.base_url", "https://api.brightdata.com")
	v.SetDefault("brightdata.zone", "ai_agent")
	v.SetDefault("brightdata.dataset_id", "gd_lvz8ah06191smkebj4")
	v.SetDefault("brightdata.request_timeout", 30*time.Second)
	v.SetDefault("brightdata.poll_max_attempts", 60)
	v.SetDefault("brightdata.poll_delay", 5*time.Second)
	v.SetDefault("research.discovery_date_range", "All time")
	v.SetDefault("research.discovery_sort", "Hot")
	v.SetDefault("research.discovery_limit", 90)
	v.SetDefault("research.comment_days_back", 10)
	v.SetDefault("research.comment_limit", 0)
	v.SetDefault("research.load_all_replies", false)
	v.SetDefault("server.address", ":8080")

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "PROSPECTOR_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("brightdata.api_key", "PROSPECTOR_BRIGHTDATA_API_KEY", "BRIGHTDATA_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate fails fast when a required secret is missing so a misconfigured
// process dies with one clear diagnostic instead of every downstream call
// failing individually.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is not set (export PROSPECTOR_LLM_API_KEY or OPENAI_API_KEY)")
	}
	if c.BrightData.APIKey == "" {
		return errors.New("brightdata.api_key is not set (export PROSPECTOR_BRIGHTDATA_API_KEY or BRIGHTDATA_API_KEY)")
	}
	return nil
}
