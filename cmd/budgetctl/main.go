// Command budgetctl inspects and edits the budget from the shell.
package main

import (
	"context"
	"fmt"
	"os"

	"financeboard/internal/cli"
	"financeboard/internal/config"
	"financeboard/internal/log"

	"github.com/spf13/cobra"
)

type app struct {
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "budgetctl",
		Short: "Manage the finance dashboard budget",
		Long: `budgetctl reads and edits the budget settings, prints monthly summaries and
triggers refreshes against the same storage the dashboard uses.

Configuration comes from the environment (and .env), plus the YAML file given
with --config or CONFIG_FILE.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(a.settingsCmd())
	root.AddCommand(a.summaryCmd())
	root.AddCommand(a.refreshCmd())
	root.AddCommand(a.migrateCmd())
	return root
}

func (a *app) init(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	if a.cfgFile != "" {
		if err := os.Setenv("CONFIG_FILE", a.cfgFile); err != nil {
			return err
		}
	}
	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	} else {
		// Keep command output readable unless asked otherwise.
		cfg.LogLevel = "warn"
	}
	a.cfg = cfg
	a.logger = cli.SetupLogger(cfg).WithComponent(log.ComponentCLI)
	return nil
}

func (a *app) runtime(ctx context.Context) (*cli.Runtime, error) {
	rt, err := cli.NewRuntime(ctx, a.cfg, a.logger, cli.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialize runtime: %w", err)
	}
	return rt, nil
}

func main() {
	ctx, cancel := cli.SignalContext(log.Discard())
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
