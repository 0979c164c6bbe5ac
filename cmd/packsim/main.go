// Command packsim runs the reference host with the packwork extension
// attached.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeusync/packwork/internal/core/world"
	"github.com/zeusync/packwork/internal/extension"
	"github.com/zeusync/packwork/internal/injector"
)

var (
	configPath string
	logLevel   string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "packsim",
		Short:         "Run a colony scenario with packed reuse enabled",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "extension config file (.yaml or .json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newRunCmd())
	root.AddCommand(newDefsCmd())
	root.AddCommand(newCheckCmd())
	return root
}

// setup loads the config and the scenario and builds an unstarted runtime.
func setup(scenarioPath string) (*extension.Runtime, *world.Scenario, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	sc, err := loadScenario(scenarioPath)
	if err != nil {
		return nil, nil, err
	}
	return injector.InitializeRuntime(cfg), sc, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "packsim:", err)
		os.Exit(1)
	}
}
