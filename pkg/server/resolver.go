package server

import (
	"context"
	"fmt"
	"os"

	"github.com/Masterminds/semver"
	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/functest-core/pkg/core"
	"github.com/devicelab-dev/functest-core/pkg/logger"
)

// Resolver maps a requested appium version to an executable on disk,
// installing it once when missing.
type Resolver struct {
	vm        VersionManager
	log       *logrus.Entry
	stat      func(string) (os.FileInfo, error)
	onInstall func()
}

// NewResolver creates a resolver backed by the given version manager.
func NewResolver(vm VersionManager) *Resolver {
	return &Resolver{
		vm:   vm,
		log:  logger.Component("resolver"),
		stat: os.Stat,
	}
}

// SetLogger replaces the resolver logger.
func (r *Resolver) SetLogger(entry *logrus.Entry) {
	r.log = entry
}

// OnInstall registers a callback invoked before an install is attempted.
func (r *Resolver) OnInstall(fn func()) {
	r.onInstall = fn
}

// Resolve returns the appium executable path for version.
// Returned errors abort the server start; the caller logs them.
func (r *Resolver) Resolve(ctx context.Context, version string) (string, error) {
	if _, err := semver.NewVersion(version); err != nil {
		return "", core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid appium version %q", version)).WithCause(err)
	}

	res, err := r.vm.Resolve(ctx, version)
	if err != nil {
		return "", core.ErrServerLaunch.WithMessage("failed to resolve appium "+version).WithCause(err)
	}

	if !res.Installed {
		r.log.Infof("Appium %s not found. Installing it ...", version)
		if r.onInstall != nil {
			r.onInstall()
		}

		inst, err := r.vm.Install(ctx, version)
		if err != nil {
			return "", core.ErrAppiumInstall.WithCause(err)
		}
		if inst.Err != "" {
			return "", core.ErrAppiumInstall.WithMessage("Failed to install appium. Error: " + inst.Err)
		}
		if inst.Installed {
			r.log.Infof("Appium %s installed.", version)
		}

		if res, err = r.vm.Resolve(ctx, version); err != nil {
			return "", core.ErrServerLaunch.WithMessage("failed to resolve appium "+version).WithCause(err)
		}
	}

	if _, err := r.stat(res.Path); res.Path == "" || err != nil {
		return "", core.ErrAppiumMissing.WithMessage("Appium does not exist at: " + res.Path).
			WithDetails(map[string]interface{}{"version": version})
	}

	r.log.Infof("Appium Executable: %s", res.Path)
	return res.Path, nil
}
