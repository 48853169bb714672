package server

import (
	"context"
	"strings"

	"github.com/devicelab-dev/functest-core/pkg/process"
)

// avmBinary is the appium version manager command.
const avmBinary = "avm"

// Resolution is the typed result of a version manager command.
type Resolution struct {
	Installed bool
	Path      string // set by Resolve when Installed
	Err       string // install failure reported by the tool
}

// VersionManager resolves and installs appium versions.
type VersionManager interface {
	Resolve(ctx context.Context, version string) (Resolution, error)
	Install(ctx context.Context, version string) (Resolution, error)
}

// AVM drives the appium version manager through a process.Control.
type AVM struct {
	control process.Control
}

// NewAVM creates the version manager adapter.
func NewAVM(control process.Control) *AVM {
	return &AVM{control: control}
}

// Resolve runs "avm bin <version>".
func (a *AVM) Resolve(ctx context.Context, version string) (Resolution, error) {
	out, err := a.control.Run(ctx, avmBinary, "bin", version)
	if out == "" && err != nil {
		return Resolution{}, err
	}
	return parseResolveOutput(out), nil
}

// Install runs "avm <version>".
func (a *AVM) Install(ctx context.Context, version string) (Resolution, error) {
	out, err := a.control.Run(ctx, avmBinary, version)
	if out == "" && err != nil {
		return Resolution{}, err
	}
	return parseInstallOutput(out, version), nil
}

// parseResolveOutput reads "avm bin" output. The last line mentioning avm is
// the binary path; surrounding lines are progress noise.
func parseResolveOutput(out string) Resolution {
	if strings.Contains(out, "not installed") {
		return Resolution{}
	}

	path := ""
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, avmBinary) {
			path = line
		}
	}
	if path == "" {
		path = strings.TrimSpace(out)
	}
	if path == "" {
		return Resolution{}
	}
	return Resolution{Installed: true, Path: path}
}

// parseInstallOutput reads "avm <version>" output.
func parseInstallOutput(out, version string) Resolution {
	if strings.Contains(out, "appium "+version+" install failed") {
		return Resolution{Err: strings.TrimSpace(out)}
	}
	if strings.Contains(out, "installed"+version) {
		return Resolution{Installed: true}
	}
	return Resolution{}
}
