package config

import (
	"path/filepath"
	"strconv"
)

const (
	DefaultBotName      = "Assistant"
	DefaultErrorMessage = "I'm having trouble right now. Please try again in a moment! 🙏"
	DefaultPlannerModel = "grok-4-fast"
	DefaultXAIBaseURL   = "https://api.x.ai/v1"
)

func DefaultConfig() *Config {
	return &Config{
		DataDirectory: GetDefaultDataDir(),
		Bot: BotConfig{
			Name:         DefaultBotName,
			ErrorMessage: DefaultErrorMessage,
		},
		Limits: LimitsConfig{
			MaxRequestsPerUserPerHour: 20,
			CacheTTLMinutes:           30,
			ToolCallTimeoutMS:         360000,
			NotifyAfterMS:             30000,
			HistoryWindow:             10,
			HistoryLimit:              100,
		},
		Planner: PlannerConfig{
			Provider:    "xai",
			BaseURL:     DefaultXAIBaseURL,
			Model:       DefaultPlannerModel,
			Temperature: 1,
			MaxTokens:   8192,
		},
		Providers: DefaultProviders(),
	}
}

// DefaultProviders returns the stock tool providers: the PixelLab sprite
// server, the Python utility tools and the xAI image generator.
func DefaultProviders() []ToolProviderConfig {
	return []ToolProviderConfig{
		{
			Name:    "pixellab",
			Command: "node",
			Args:    []string{"mcp-servers/pixellab/dist/server.js"},
			Env:     map[string]string{"PIXELLAB_API_KEY": "${PIXELLAB_API_KEY}"},
			Tools: []string{
				"generate_sprite",
				"rotate_sprite",
				"animate_sprite",
				"generate_image_pixflux",
			},
			NonCacheable: []string{
				"generate_sprite",
				"rotate_sprite",
				"animate_sprite",
				"generate_image_pixflux",
			},
		},
		{
			Name:    "tools-python",
			Command: "python3",
			Args:    []string{"mcp-servers/tools-python/server.py"},
			Env:     map[string]string{"GREYNOISE_API_KEY": "${GREYNOISE_API_KEY}"},
			Tools: []string{
				"get_weather",
				"get_coolest_cities",
				"get_current_time",
				"greynoise_ip_address",
			},
			NonCacheable: []string{"get_current_time"},
		},
		{
			Name:         "xai-image",
			Command:      "node",
			Args:         []string{"mcp-servers/xai-image/dist/server.js"},
			Env:          map[string]string{"XAI_API_KEY": "${GROK_API_KEY}"},
			Tools:        []string{"generate_image"},
			NonCacheable: []string{"generate_image"},
		},
	}
}

func GenerateConfigTemplate() string {
	return `# Spritebot Configuration
# Location: ~/.config/spritebot/config.toml
# This file uses TOML format: https://toml.io
#
# Most values can also be set through the environment:
# DISCORD_TOKEN, GROK_API_KEY, GROK_MODEL, GROK_BASE_URL, BOT_NAME, ...

# Directory holding the conversation database and debug log
data_directory = ` + strconv.Quote(filepath.ToSlash(GetDefaultDataDir())) + `

# Prometheus listen address, empty to disable
metrics_addr = ""

[bot]
name = "Assistant"
error_message = "I'm having trouble right now. Please try again in a moment! 🙏"

[limits]
max_requests_per_user_per_hour = 20
cache_ttl_minutes = 30
tool_call_timeout_ms = 360000
# Send a "still working" notice when a tool call runs longer than this
notify_after_ms = 30000
# Messages of history given to the planner
history_window = 10
# Messages kept per channel
history_limit = 100

[planner]
# One of: xai, openai, anthropic, openrouter, ollama
provider = "xai"
base_url = "https://api.x.ai/v1"
model = "grok-4-fast"
api_key = ""
temperature = 1.0
max_tokens = 8192

[prompts]
# Override the built-in prompts. {TOOL_DESCRIPTIONS} and {BOT_NAME}
# are substituted.
planner = ""
response = ""
general = ""

[discord]
token = ""
app_id = ""

# Tool providers. Leave out every [[providers]] table to use the built-in
# pixellab, tools-python and xai-image servers. ${VAR} in env values is
# expanded from the environment.
#
# [[providers]]
# name = "tools-python"
# command = "python3"
# args = ["mcp-servers/tools-python/server.py"]
# env = { GREYNOISE_API_KEY = "${GREYNOISE_API_KEY}" }
# tools = ["get_weather", "get_coolest_cities", "get_current_time", "greynoise_ip_address"]
# non_cacheable = ["get_current_time"]
`
}
