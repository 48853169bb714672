// Package config handles run settings for functest-core.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/functest-core/pkg/core"
)

// OSType identifies the host operating system running the tests.
type OSType string

// Host operating systems
const (
	OSWindows OSType = "windows"
	OSMacOS   OSType = "darwin"
	OSLinux   OSType = "linux"
)

// PlatformType identifies the mobile platform under test.
type PlatformType string

// Mobile platforms
const (
	PlatformAndroid PlatformType = "android"
	PlatformIOS     PlatformType = "ios"
)

// DeviceType identifies the kind of device under test.
type DeviceType string

// Device types
const (
	DeviceEmulator  DeviceType = "emulator"
	DeviceSimulator DeviceType = "simulator"
	DeviceAndroid   DeviceType = "android" // physical Android device
	DeviceIOS       DeviceType = "ios"     // physical iOS device
	DeviceOther     DeviceType = "other"
)

// Defaults
const (
	DefaultDeviceBootTimeout = 180 // seconds
	DefaultFindTimeout       = 30  // seconds
	DefaultLogFileName       = "appium.log"
)

// Config represents the run settings (config.yaml).
type Config struct {
	// Host settings
	HostOS OSType `yaml:"-"` // Always runtime.GOOS

	// Device settings
	Platform        PlatformType `yaml:"platform"`        // android, ios
	DeviceType      DeviceType   `yaml:"deviceType"`      // emulator, simulator, android, ios, other
	DeviceName      string       `yaml:"deviceName"`      // AVD name for emulators
	EmulatorOptions string       `yaml:"emulatorOptions"` // Extra emulator launch options
	Debug           bool         `yaml:"debug"`           // Emulator is started by appium instead of the runner

	// Timeouts (seconds)
	DeviceBootTimeout int `yaml:"deviceBootTimeout"`
	DefaultTimeout    int `yaml:"defaultTimeout"`

	// Appium server settings
	AutomationName string `yaml:"automationName"`
	AppiumVersion  string `yaml:"appiumVersion"`  // Version requested from the version manager (macOS)
	AppiumLogFile  string `yaml:"appiumLogFile"`  // Server log path, ~ is expanded
	AppiumLogLevel string `yaml:"appiumLogLevel"` // Optional --log-level passthrough
}

// Load loads configuration from a file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields and expands paths.
func (c *Config) ApplyDefaults() error {
	c.HostOS = OSType(runtime.GOOS)
	if c.DeviceBootTimeout <= 0 {
		c.DeviceBootTimeout = DefaultDeviceBootTimeout
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultFindTimeout
	}
	if c.AutomationName == "" {
		c.AutomationName = DefaultAutomationName(c.Platform)
	}
	if c.AppiumLogFile == "" {
		c.AppiumLogFile = filepath.Join(GetLogDir(), DefaultLogFileName)
	}

	expanded, err := homedir.Expand(c.AppiumLogFile)
	if err != nil {
		return core.ErrInvalidConfig.WithMessage("invalid appiumLogFile").WithCause(err)
	}
	c.AppiumLogFile = expanded
	return nil
}

// Validate checks that the settings describe a launchable configuration.
func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformAndroid, PlatformIOS:
	default:
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown platform %q", c.Platform))
	}
	switch c.DeviceType {
	case DeviceEmulator, DeviceSimulator, DeviceAndroid, DeviceIOS, DeviceOther:
	default:
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown device type %q", c.DeviceType))
	}
	if c.DeviceType == DeviceEmulator && c.Debug && c.DeviceName == "" {
		return core.ErrInvalidConfig.WithMessage("deviceName is required for emulators in debug mode")
	}
	if c.HostOS == OSMacOS && c.AppiumVersion == "" {
		return core.ErrInvalidConfig.WithMessage("appiumVersion is required on macOS")
	}
	return nil
}

// DefaultAutomationName returns the appium automation backend for a platform.
func DefaultAutomationName(p PlatformType) string {
	if p == PlatformIOS {
		return "XCUITest"
	}
	return "UiAutomator2"
}

// FindTimeout returns DefaultTimeout as a duration.
func (c *Config) FindTimeout() time.Duration {
	return time.Duration(c.DefaultTimeout) * time.Second
}

// BootTimeout returns DeviceBootTimeout as a duration.
func (c *Config) BootTimeout() time.Duration {
	return time.Duration(c.DeviceBootTimeout) * time.Second
}
