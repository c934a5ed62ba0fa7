// Command greeter runs a plain-console login greeter on top of the
// greeter runtime. It is mainly a development and packaging smoke
// vehicle: it connects to the display manager over the inherited
// descriptors, walks the authentication conversation on stdin, and
// starts the chosen session.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumindm/greeter/internal/config"
	"github.com/lumindm/greeter/internal/logger"
	"github.com/lumindm/greeter/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:           "lumin-greeter",
		Short:         "Console greeter for the Lumin display manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	run := &cobra.Command{
		Use:   "run",
		Short: "Connect to the display manager and handle one login",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
				return err
			}
			return runGreeter(cfg)
		},
	}
	run.Flags().StringVarP(&configPath, "config", "c", "/etc/lumin/greeter.yaml", "configuration file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lumin-greeter %s (built %s, protocol %s)\n",
				version.Version, version.BuildTime, version.Protocol)
		},
	}

	root.AddCommand(run, versionCmd)

	if err := root.Execute(); err != nil {
		slog.Error("greeter failed", "error", err)
		os.Exit(1)
	}
}
