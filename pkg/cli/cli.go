// Package cli provides the command-line interface for functest.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/functest-core/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.yaml (default: ./config.yaml if present)",
		EnvVars: []string{"FUNCTEST_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write the runner log to this file",
		EnvVars: []string{"FUNCTEST_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"FUNCTEST_VERBOSE"},
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "functest",
		Usage:   "Appium server supervisor and element finder for mobile functional tests",
		Version: Version,
		Description: `functest launches a local Appium server for a test run and resolves
UI elements against a running Appium session.

Examples:
  functest server start
  functest -c config.yaml server start --platform ios --device-type simulator
  functest find --session 5f2c --text Login`,
		Flags:  GlobalFlags,
		Before: setupLogging,
		After: func(c *cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			serverCommand,
			findCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(c *cli.Context) error {
	if path := c.String("log-file"); path != "" {
		if err := logger.Init(path); err != nil {
			return err
		}
	}
	logger.SetVerbose(c.Bool("verbose"))
	return nil
}
