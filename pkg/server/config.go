package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/functest-core/pkg/config"
)

// DefaultBasePath is the URL prefix Appium serves sessions under.
const DefaultBasePath = "/wd/hub"

// Appium server flags
const (
	flagLog            = "--log"
	flagAddress        = "--address"
	flagPort           = "--port"
	flagBasePath       = "--base-path"
	flagAutomationName = "--automation-name"
	flagCommandTimeout = "--command-timeout"
	flagNoReset        = "--no-reset"
	flagAVD            = "--avd"
	flagAVDArgs        = "--avd-args"
	flagShowIOSLog     = "--show-ios-log"
	flagLogLevel       = "--log-level"
)

// Config is the launch configuration of one Appium server process.
// It is built fresh for every start.
type Config struct {
	LogFile        string
	Address        string
	Port           int // 0 selects a free port at launch
	BasePath       string
	AutomationName string
	CommandTimeout int // seconds

	Platform   config.PlatformType
	DeviceType config.DeviceType

	NoReset    bool
	AVD        string
	AVDArgs    string
	ShowIOSLog bool
	LogLevel   string

	// StartupTimeout bounds the readiness wait when > 0.
	StartupTimeout time.Duration

	// Version is the appium version requested from the version manager.
	// Only honoured on macOS; elsewhere the global installation is used.
	Version string

	// Executable is the resolved appium entry point. Empty means "appium" from PATH.
	Executable string
}

// NewConfig builds the launch configuration from run settings.
func NewConfig(settings *config.Config) Config {
	cfg := Config{
		LogFile:        settings.AppiumLogFile,
		Address:        "127.0.0.1",
		BasePath:       DefaultBasePath,
		AutomationName: settings.AutomationName,
		CommandTimeout: settings.DeviceBootTimeout,
		Platform:       settings.Platform,
		DeviceType:     settings.DeviceType,
		LogLevel:       settings.AppiumLogLevel,
		Version:        settings.AppiumVersion,
	}

	// Required for a safe simulator restart
	if settings.DeviceType == config.DeviceSimulator {
		cfg.NoReset = true
	}

	// In debug mode the emulator is started by appium
	if settings.DeviceType == config.DeviceEmulator && settings.Debug {
		cfg.AVD = settings.DeviceName
		cfg.AVDArgs = settings.EmulatorOptions
	}

	if settings.Platform == config.PlatformIOS {
		cfg.StartupTimeout = settings.BootTimeout()
		cfg.ShowIOSLog = true
	}

	return cfg
}

// Args renders the server command line arguments.
func (c Config) Args() []string {
	args := []string{
		flagLog, c.LogFile,
		flagAddress, c.Address,
		flagPort, strconv.Itoa(c.Port),
	}
	if c.BasePath != "" {
		args = append(args, flagBasePath, c.BasePath)
	}
	args = append(args,
		flagAutomationName, c.AutomationName,
		flagCommandTimeout, strconv.Itoa(c.CommandTimeout),
	)

	if c.NoReset {
		args = append(args, flagNoReset)
	}
	if c.AVD != "" {
		args = append(args, flagAVD, c.AVD)
		if c.AVDArgs != "" {
			args = append(args, flagAVDArgs, c.AVDArgs)
		}
	}
	if c.ShowIOSLog {
		args = append(args, flagShowIOSLog)
	}
	if c.LogLevel != "" {
		args = append(args, flagLogLevel, c.LogLevel)
	}
	return args
}

// Command returns the executable and arguments that launch the server.
// A resolved .js entry point is run through node.
func (c Config) Command() (string, []string) {
	args := c.Args()
	switch {
	case c.Executable == "":
		return "appium", args
	case strings.HasSuffix(c.Executable, ".js"):
		return "node", append([]string{c.Executable}, args...)
	default:
		return c.Executable, args
	}
}

// URL returns the base URL sessions are created under.
func (c Config) URL() string {
	return fmt.Sprintf("http://%s:%d%s", c.Address, c.Port, c.BasePath)
}
