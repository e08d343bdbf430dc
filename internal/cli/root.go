// Package cli provides the command-line interface for the fund engine.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fundvest/internal/config"
	"fundvest/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies shared across commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "fundvest",
		Short: "Fundvest - mutual fund transaction engine",
		Long: `Fundvest is a mutual fund transaction engine.

It processes buy and sell orders against named funds, maintains a per-user
portfolio ledger, and executes systematic investment plans (SIPs) on a daily
schedule. The engine is exposed over an HTTP API started with 'fundvest serve'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			app.Config = cfg

			logCfg := logging.DefaultLogConfig()
			logCfg.Level = cfg.Log.Level
			app.Logger = logging.NewLoggerWithConfig(logCfg)

			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/fundvest)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Fundvest v%s\n", Version)
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			fmt.Printf("Server address:    %s\n", cfg.Server.Addr)
			fmt.Printf("Database path:     %s\n", cfg.Database.Path)
			fmt.Printf("Settlement delay:  %s\n", cfg.Engine.SettlementDelay)
			fmt.Printf("Stale after:       %s\n", cfg.Engine.StaleAfter)
			fmt.Printf("SIP schedule:      %s\n", cfg.SIP.Schedule)
			fmt.Printf("NAV fallback:      %.2f\n", cfg.NAV.Fallback)
			fmt.Printf("Known funds:       %d\n", len(cfg.NAV.Funds))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.DefaultConfigDir())
		},
	})

	return cmd
}
