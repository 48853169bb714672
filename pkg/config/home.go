package config

import (
	"os"
	"path/filepath"
	"sync"
)

// HomeEnv overrides the functest home directory.
const HomeEnv = "FUNCTEST_HOME"

var home struct {
	once sync.Once
	dir  string
}

// GetHome returns the functest home directory: $FUNCTEST_HOME, else <home>
// when the binary is installed as <home>/bin/functest, else the working
// directory. The result is cached for the life of the process.
func GetHome() string {
	home.once.Do(func() {
		home.dir = lookupHome()
	})
	return home.dir
}

// GetLogDir returns the directory that holds the default appium log.
func GetLogDir() string {
	return filepath.Join(GetHome(), "logs")
}

func lookupHome() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	if exe, err := os.Executable(); err == nil {
		if dir, ok := installRoot(exe); ok {
			return dir
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// installRoot returns the parent of the bin directory holding exe.
func installRoot(exe string) (string, bool) {
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	bin := filepath.Dir(exe)
	if filepath.Base(bin) != "bin" {
		return "", false
	}
	return filepath.Dir(bin), true
}

func resetHome() {
	home.once = sync.Once{}
	home.dir = ""
}
