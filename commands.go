package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"spritebot/config"
	"spritebot/mcp"
	"spritebot/storage"
)

// commonFlags reads the persistent flags and applies --debug before any
// logger is built.
func commonFlags(cmd *cobra.Command) (configPath string) {
	configPath, _ = cmd.Flags().GetString("config")
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		_ = os.Setenv("SPRITEBOT_DEBUG", "1")
	}
	return configPath
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and answer mentions",
		Long: `Start the bot.

The server will:
1. Load configuration and environment overrides
2. Launch every configured tool server and collect its tools
3. Open the conversation database
4. Connect to Discord and answer messages that mention the bot

SIGINT and SIGTERM trigger a graceful shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), commonFlags(cmd))
		},
	}
}

func buildToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Launch the tool servers and list their tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(commonFlags(cmd))
			if err != nil {
				return err
			}
			logger, closeLog := config.InitLogging(cfg.DataDir())
			defer closeLog()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			registry := mcp.NewRegistry(logger)
			if err := registry.Initialize(ctx, cfg.Providers); err != nil {
				return err
			}
			defer registry.Shutdown(context.Background())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOOL\tPROVIDER\tCACHED\tDESCRIPTION")
			for _, d := range registry.Descriptors() {
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", d.Name, d.Provider, d.Cacheable, firstLine(d.Description))
			}
			return w.Flush()
		},
	}
}

func buildValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Check the config file and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(commonFlags(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Config OK")
			fmt.Fprintf(out, "  planner:   %s (%s)\n", cfg.Planner.Provider, cfg.Planner.Model)
			fmt.Fprintf(out, "  storage:   %s\n", cfg.StoragePath())
			fmt.Fprintf(out, "  providers: %s\n", strings.Join(cfg.ProviderNames(), ", "))
			for _, rt := range mcp.NewRuntimeChecker().Preflight(cfg.Providers) {
				if rt.OK() {
					fmt.Fprintf(out, "  runtime:   %s %s (%s)\n", rt.Command, rt.Version, rt.Path)
				} else {
					fmt.Fprintf(out, "  warning:   %s\n", rt.Error)
				}
			}
			if cfg.Discord.Token == "" {
				fmt.Fprintln(out, "  warning:   no Discord token; serve will fail")
			}
			return nil
		},
	}
}

func buildHistoryCmd() *cobra.Command {
	var (
		channel string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a channel's history as the planner sees it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if channel == "" {
				return errors.New("--channel is required")
			}
			cfg, err := config.Load(commonFlags(cmd))
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.Limits.HistoryWindow
			}
			store, err := storage.NewConversationStore(cfg.StoragePath(), cfg.Limits.HistoryLimit)
			if err != nil {
				return err
			}
			defer store.Close()

			text, err := store.FormattedHistory(cmd.Context(), channel, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Discord channel ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of messages (default: limits.history_window)")
	return cmd
}

func buildClearHistoryCmd() *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "clear-history",
		Short: "Delete the stored conversation of a channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if channel == "" {
				return errors.New("--channel is required")
			}
			cfg, err := config.Load(commonFlags(cmd))
			if err != nil {
				return err
			}
			store, err := storage.NewConversationStore(cfg.StoragePath(), cfg.Limits.HistoryLimit)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Count(cmd.Context(), channel)
			if err != nil {
				return err
			}
			if err := store.ClearHistory(cmd.Context(), channel); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d messages from channel %s\n", n, channel)
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Discord channel ID")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
