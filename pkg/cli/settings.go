package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/functest-core/pkg/config"
)

// settingsFlags override values from config.yaml.
var settingsFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "platform",
		Aliases: []string{"p"},
		Usage:   "Platform under test (android, ios)",
		EnvVars: []string{"FUNCTEST_PLATFORM"},
	},
	&cli.StringFlag{
		Name:  "automation-name",
		Usage: "Appium automation backend (default: UiAutomator2 or XCUITest)",
	},
	&cli.StringFlag{
		Name:  "device-type",
		Usage: "Device type (emulator, simulator, android, ios, other)",
	},
	&cli.StringFlag{
		Name:  "device-name",
		Usage: "AVD name used when appium starts the emulator",
	},
	&cli.StringFlag{
		Name:  "appium-version",
		Usage: "Appium version resolved through avm (macOS)",
	},
	&cli.StringFlag{
		Name:  "appium-log",
		Usage: "Appium server log file",
	},
	&cli.StringFlag{
		Name:  "appium-log-level",
		Usage: "Appium --log-level value",
	},
	&cli.StringFlag{
		Name:  "emulator-options",
		Usage: "Extra emulator launch options passed through appium",
	},
	&cli.BoolFlag{
		Name:  "debug",
		Usage: "Let appium start the emulator",
	},
}

// loadSettings reads the run settings, applies command line overrides and
// validates the result for a server launch.
func loadSettings(c *cli.Context) (*config.Config, error) {
	cfg, err := readSettings(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readSettings reads the run settings and applies the overrides that are set.
func readSettings(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, err
	}

	if c.IsSet("platform") {
		prev := cfg.Platform
		cfg.Platform = config.PlatformType(c.String("platform"))
		// Keep an explicitly configured backend
		if cfg.AutomationName == config.DefaultAutomationName(prev) {
			cfg.AutomationName = config.DefaultAutomationName(cfg.Platform)
		}
	}
	if c.IsSet("automation-name") {
		cfg.AutomationName = c.String("automation-name")
	}
	if c.IsSet("device-type") {
		cfg.DeviceType = config.DeviceType(c.String("device-type"))
	}
	if c.IsSet("device-name") {
		cfg.DeviceName = c.String("device-name")
	}
	if c.IsSet("appium-version") {
		cfg.AppiumVersion = c.String("appium-version")
	}
	if c.IsSet("appium-log") {
		cfg.AppiumLogFile = c.String("appium-log")
	}
	if c.IsSet("appium-log-level") {
		cfg.AppiumLogLevel = c.String("appium-log-level")
	}
	if c.IsSet("emulator-options") {
		cfg.EmulatorOptions = c.String("emulator-options")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}

	// Re-run defaults so overridden paths are expanded
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}
