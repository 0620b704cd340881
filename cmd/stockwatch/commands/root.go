package commands

import (
	"context"
	"fmt"
	"os"

	"stock-watch/internal/config"
	"stock-watch/internal/obs"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "stockwatch",
	Short: "stockwatch polls storefront product pages and notifies on stock changes.",
	Long: `stockwatch polls storefront product pages and notifies on stock changes.

Without a subcommand it runs the polling loops and the status server.
Configuration comes from the environment, an optional .env file and an
optional JSON5 file named by CONFIG_FILE.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if _, err := obs.Init(cfg.LogFormat, cfg.LogLevel); err != nil {
			return err
		}
		return nil
	},
	RunE: runServe,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
