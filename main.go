// Spritebot is a Discord assistant that plans tool calls with an LLM and
// runs them on external tool servers spoken to over stdio.
//
// Start the bot:
//
//	spritebot serve --config ~/.config/spritebot/config.toml
//
// List the tools the configured servers expose:
//
//	spritebot tools
//
// Check a config file without starting anything:
//
//	spritebot validate-config
//
// Secrets are normally supplied through the environment: DISCORD_TOKEN,
// GROK_API_KEY, PIXELLAB_API_KEY and GREYNOISE_API_KEY. Set
// SPRITEBOT_DEBUG=1 for debug logging to stderr and debug.log.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spritebot",
		Short:         "Discord assistant with planned tool calls",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to TOML config file (default ~/.config/spritebot/config.toml)")
	root.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	root.AddCommand(
		buildServeCmd(),
		buildToolsCmd(),
		buildValidateConfigCmd(),
		buildHistoryCmd(),
		buildClearHistoryCmd(),
	)
	return root
}
