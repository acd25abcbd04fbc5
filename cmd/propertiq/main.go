package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neomorfeo/propertiq/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(viper.GetViper()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries the settings resolved once the command line is parsed.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	c := &cli{v: v}
	config.Bind(v)

	root := &cobra.Command{
		Use:   "propertiq",
		Short: "Property management API and tools",
		Long: `propertiq manages teams, buildings, lots and their contacts, and runs
maintenance interventions through a role-gated workflow.

Settings come from defaults, an optional YAML file (--config) and
PROPERTIQ_* environment variables such as PROPERTIQ_HTTP_PORT.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.v, c.cfgFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			slog.SetDefault(cfg.Logger(cmd.ErrOrStderr()))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().String("database", "propertiq.db", "SQLite database path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("database.path", root.PersistentFlags().Lookup("database"))
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.seedCmd())
	root.AddCommand(c.statsCmd())
	return root
}
