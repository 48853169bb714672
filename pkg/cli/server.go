package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/functest-core/pkg/process"
	"github.com/devicelab-dev/functest-core/pkg/server"
)

var serverCommand = &cli.Command{
	Name:  "server",
	Usage: "Manage the local Appium server",
	Subcommands: []*cli.Command{
		serverStartCommand,
		serverResolveCommand,
	},
}

var serverStartCommand = &cli.Command{
	Name:  "start",
	Usage: "Start Appium and keep it running until interrupted",
	Description: `Prepares the log file, resolves the appium version on macOS,
launches the server and waits for it to accept sessions.

Examples:
  functest server start
  functest server start --platform android --device-type emulator --debug --device-name Api28
  functest server start --platform ios --appium-version 1.6.5 --port 4723`,
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "port",
			Usage: "Server port (0 selects a free port)",
		},
	}, settingsFlags...),
	Action: runServerStart,
}

var serverResolveCommand = &cli.Command{
	Name:      "resolve",
	Usage:     "Resolve (and install if needed) an appium version through avm",
	ArgsUsage: "<version>",
	Action:    runServerResolve,
}

func runServerStart(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	cfg := server.NewConfig(settings)
	cfg.Port = c.Int("port")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := server.NewSupervisor(process.NewExec(), settings.HostOS)
	if err := sup.Start(ctx, cfg); err != nil {
		return err
	}
	defer sup.Stop()

	fmt.Fprintf(c.App.Writer, "Appium server running at %s\n", sup.URL())
	fmt.Fprintf(c.App.Writer, "  Log: %s\n", cfg.LogFile)
	fmt.Fprintln(c.App.Writer, "Press Ctrl+C to stop.")

	<-ctx.Done()
	return nil
}

func runServerResolve(c *cli.Context) error {
	version := c.Args().First()
	if version == "" {
		return fmt.Errorf("appium version is required")
	}

	resolver := server.NewResolver(server.NewAVM(process.NewExec()))
	path, err := resolver.Resolve(c.Context, version)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}
