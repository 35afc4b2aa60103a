package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ToolProviderConfig describes one tool provider subprocess.
type ToolProviderConfig struct {
	Name    string            `toml:"name"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	// Tools lists the tool names this provider is expected to serve.
	Tools []string `toml:"tools"`
	// NonCacheable lists tools whose results must never be cached.
	NonCacheable []string `toml:"non_cacheable"`
}

type BotConfig struct {
	Name         string `toml:"name"`
	ErrorMessage string `toml:"error_message"`
}

type LimitsConfig struct {
	MaxRequestsPerUserPerHour int `toml:"max_requests_per_user_per_hour"`
	CacheTTLMinutes           int `toml:"cache_ttl_minutes"`
	ToolCallTimeoutMS         int `toml:"tool_call_timeout_ms"`
	NotifyAfterMS             int `toml:"notify_after_ms"`
	HistoryWindow             int `toml:"history_window"`
	HistoryLimit              int `toml:"history_limit"`
}

type PlannerConfig struct {
	Provider    string  `toml:"provider"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// PromptsConfig overrides the built-in planner prompts. Empty fields keep
// the defaults.
type PromptsConfig struct {
	Planner  string `toml:"planner"`
	Response string `toml:"response"`
	General  string `toml:"general"`
}

type DiscordConfig struct {
	Token string `toml:"token"`
	AppID string `toml:"app_id"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

type Config struct {
	DataDirectory string               `toml:"data_directory"`
	MetricsAddr   string               `toml:"metrics_addr"`
	Bot           BotConfig            `toml:"bot"`
	Limits        LimitsConfig         `toml:"limits"`
	Planner       PlannerConfig        `toml:"planner"`
	Prompts       PromptsConfig        `toml:"prompts"`
	Discord       DiscordConfig        `toml:"discord"`
	Storage       StorageConfig        `toml:"storage"`
	Providers     []ToolProviderConfig `toml:"providers"`
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// StoragePath returns the sqlite database path.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return ExpandPath(c.Storage.Path)
	}
	return DefaultStoragePath(c.DataDir())
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Limits.CacheTTLMinutes) * time.Minute
}

func (c *Config) ToolCallTimeout() time.Duration {
	return time.Duration(c.Limits.ToolCallTimeoutMS) * time.Millisecond
}

func (c *Config) NotifyAfter() time.Duration {
	return time.Duration(c.Limits.NotifyAfterMS) * time.Millisecond
}

// ProviderNames returns the configured provider names in order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for _, p := range c.Providers {
		names = append(names, p.Name)
	}
	return names
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SPRITEBOT_DATA_DIR"); v != "" {
		c.DataDirectory = v
	}
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("APP_ID"); v != "" {
		c.Discord.AppID = v
	}
	if v := os.Getenv("BOT_NAME"); v != "" {
		c.Bot.Name = v
	}
	if v := os.Getenv("ERROR_MESSAGE"); v != "" {
		c.Bot.ErrorMessage = v
	}
	if v := os.Getenv("GROK_API_KEY"); v != "" {
		c.Planner.APIKey = v
	}
	if v := os.Getenv("GROK_MODEL"); v != "" {
		c.Planner.Model = v
	}
	if v := os.Getenv("GROK_BASE_URL"); v != "" {
		c.Planner.BaseURL = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("GROK_TEMPERATURE"), 64); err == nil {
		c.Planner.Temperature = v
	}
	if v, err := strconv.Atoi(os.Getenv("GROK_MAX_TOKENS")); err == nil {
		c.Planner.MaxTokens = v
	}
	if v, err := strconv.Atoi(os.Getenv("CACHE_TTL_MINUTES")); err == nil {
		c.Limits.CacheTTLMinutes = v
	}
	if v, err := strconv.Atoi(os.Getenv("MAX_REQUESTS_PER_USER_PER_HOUR")); err == nil {
		c.Limits.MaxRequestsPerUserPerHour = v
	}
	if v := os.Getenv("SPRITEBOT_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
}

// expandProviderEnv substitutes ${VAR} references in provider env values
// from the process environment. Unset variables expand to "".
func (c *Config) expandProviderEnv() {
	for i := range c.Providers {
		for k, v := range c.Providers[i].Env {
			c.Providers[i].Env[k] = os.ExpandEnv(v)
		}
	}
}

// Validate checks the configuration for mistakes that would only surface
// at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.Limits.MaxRequestsPerUserPerHour <= 0 {
		errs = append(errs, errors.New("limits.max_requests_per_user_per_hour must be positive"))
	}
	if c.Limits.CacheTTLMinutes <= 0 {
		errs = append(errs, errors.New("limits.cache_ttl_minutes must be positive"))
	}
	if c.Limits.ToolCallTimeoutMS <= 0 {
		errs = append(errs, errors.New("limits.tool_call_timeout_ms must be positive"))
	}
	if c.Limits.HistoryWindow <= 0 {
		errs = append(errs, errors.New("limits.history_window must be positive"))
	}

	switch c.Planner.Provider {
	case "xai", "openai", "anthropic", "openrouter", "ollama":
	default:
		errs = append(errs, fmt.Errorf("planner.provider %q is not one of xai, openai, anthropic, openrouter, ollama", c.Planner.Provider))
	}

	names := make(map[string]bool)
	owners := make(map[string]string)
	for i, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: name is required", i))
			continue
		}
		if names[p.Name] {
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name))
		}
		names[p.Name] = true

		if p.Command == "" {
			errs = append(errs, fmt.Errorf("provider %s: command is required", p.Name))
		}
		if len(p.Tools) == 0 {
			errs = append(errs, fmt.Errorf("provider %s: tools must not be empty", p.Name))
		}
		for _, tool := range p.Tools {
			if owner, taken := owners[tool]; taken {
				errs = append(errs, fmt.Errorf("tool %s declared by both %s and %s", tool, owner, p.Name))
				continue
			}
			owners[tool] = p.Name
		}
	}

	return errors.Join(errs...)
}

// Load reads the config file at path (or the default location when path is
// empty), applies environment overrides and validates the result. A missing
// file is created from the default template.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SPRITEBOT_CONFIG")
	}
	if path == "" {
		path = GetConfigFilePath()
	}
	path = ExpandPath(path)

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.expandProviderEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	return cfg, nil
}
