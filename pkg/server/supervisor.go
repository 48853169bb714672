// Package server launches, version-reconciles and stops the local Appium server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/functest-core/pkg/config"
	"github.com/devicelab-dev/functest-core/pkg/core"
	"github.com/devicelab-dev/functest-core/pkg/driver/appium"
	"github.com/devicelab-dev/functest-core/pkg/logger"
	"github.com/devicelab-dev/functest-core/pkg/process"
)

const (
	// staleServerImage is killed on Windows before launch; a leftover node
	// process keeps the previous log file locked.
	staleServerImage = "node.exe"

	defaultPollInterval = 500 * time.Millisecond
	statusTimeout       = 5 * time.Second
)

// Supervisor owns the single Appium server process of a test run.
type Supervisor struct {
	mu sync.Mutex

	control  process.Control
	resolver *Resolver
	hostOS   config.OSType
	log      *logrus.Entry

	pollInterval time.Duration
	checkStatus  func(url string) error
	freePort     func() (int, error)

	state          core.ServerState
	proc           process.Process
	cfg            Config
	runID          string
	logFileCreated bool
}

// NewSupervisor creates a supervisor for the given host OS.
func NewSupervisor(control process.Control, hostOS config.OSType) *Supervisor {
	return &Supervisor{
		control:      control,
		resolver:     NewResolver(NewAVM(control)),
		hostOS:       hostOS,
		log:          logger.Component("server"),
		pollInterval: defaultPollInterval,
		checkStatus:  pingStatus,
		freePort:     freePort,
	}
}

// SetLogger replaces the supervisor and resolver logger.
func (s *Supervisor) SetLogger(entry *logrus.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = entry
	s.resolver.SetLogger(entry)
}

// State returns the current lifecycle state. A server process that exited on
// its own is reported as ServerFailed.
func (s *Supervisor) State() core.ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap()
	return s.state
}

// LogFileCreated reports whether the last start created a fresh log file.
func (s *Supervisor) LogFileCreated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logFileCreated
}

// Config returns the configuration of the running server.
func (s *Supervisor) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap()
	return s.cfg
}

// URL returns the server base URL, or "" when not running.
func (s *Supervisor) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap()
	if s.state != core.ServerRunning {
		return ""
	}
	return s.cfg.URL()
}

// Start prepares, launches and waits for the Appium server.
// Calling Start while a server is running is a caller error.
func (s *Supervisor) Start(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reap()
	if s.state == core.ServerRunning {
		return core.ErrServerAlreadyRunning
	}

	s.runID = uuid.NewString()
	log := s.log.WithField("run", s.runID)
	log.Info("Init Appium server...")

	s.setState(log, core.ServerPreparing)
	if s.hostOS == config.OSWindows {
		if err := s.control.KillByName(ctx, staleServerImage); err != nil {
			log.Debugf("Failed to kill %s: %v", staleServerImage, err)
		}
	}

	if err := prepareLogFile(cfg.LogFile); err != nil {
		s.logFileCreated = false
		logger.Fatalf(log, "%v", core.ErrLogFile.WithCause(err))
	} else {
		s.logFileCreated = true
		log.Debug("Appium log file created.")
	}

	// The version manager is only available on macOS
	if s.hostOS == config.OSMacOS && cfg.Version != "" {
		s.setState(log, core.ServerVersionCheck)
		s.resolver.OnInstall(func() { s.setState(log, core.ServerInstalling) })
		path, err := s.resolver.Resolve(ctx, cfg.Version)
		if err != nil {
			return s.fail(log, err, nil)
		}
		cfg.Executable = path
	}

	s.setState(log, core.ServerLaunching)
	if cfg.Port == 0 {
		port, err := s.freePort()
		if err != nil {
			return s.fail(log, core.ErrServerLaunch.WithMessage("failed to allocate a port").WithCause(err), nil)
		}
		cfg.Port = port
	}

	name, args := cfg.Command()
	spec := process.Spec{Path: name, Args: args, Output: logger.GetWriter()}
	log.Debugf("Starting %s", spec)

	proc, err := s.control.Start(spec)
	if err != nil {
		return s.fail(log, core.ErrServerLaunch.WithCause(err), nil)
	}

	if err := s.waitReady(ctx, cfg, proc); err != nil {
		return s.fail(log, err, proc)
	}

	s.proc = proc
	s.cfg = cfg
	s.setState(log, core.ServerRunning)
	log.Infof("Appium server started at %s (pid %d).", cfg.URL(), proc.PID())
	return nil
}

// Stop stops the running server. It never fails; stop errors are logged.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log
	if s.runID != "" {
		log = log.WithField("run", s.runID)
	}

	s.reap()
	if s.proc == nil || s.state != core.ServerRunning {
		log.Info("Appium server already stopped.")
		return
	}

	s.setState(log, core.ServerStopping)
	if err := s.proc.Stop(); err != nil {
		logger.Fatalf(log, "Failed to stop Appium server.")
		log.Debugf("%v", core.ErrServerStop.WithCause(err))
	} else {
		log.Info("Appium server stopped.")
	}

	s.proc = nil
	s.setState(log, core.ServerStopped)
}

func (s *Supervisor) setState(log *logrus.Entry, state core.ServerState) {
	log.Debugf("Server state %s -> %s", s.state, state)
	s.state = state
}

// reap moves a running supervisor to ServerFailed once its process has exited.
func (s *Supervisor) reap() {
	if s.proc == nil {
		return
	}
	select {
	case <-s.proc.Done():
	default:
		return
	}
	log := s.log.WithField("run", s.runID)
	log.Errorf("Appium server exited unexpectedly: %v", s.proc.Err())
	s.proc = nil
	s.setState(log, core.ServerFailed)
}

// fail aborts a start: kills a spawned process and marks the supervisor failed.
func (s *Supervisor) fail(log *logrus.Entry, err error, proc process.Process) error {
	if !s.state.CanFail() {
		log.Warnf("Start aborted in state %s", s.state)
	}
	if proc != nil {
		if stopErr := proc.Stop(); stopErr != nil {
			log.Warnf("Failed to kill appium after failed start: %v", stopErr)
		}
	}
	s.proc = nil
	s.setState(log, core.ServerFailed)
	logger.Fatalf(log, "%v", err)
	return err
}

// waitReady polls the status endpoint until the server answers, the process
// exits or ctx ends. StartupTimeout further bounds the wait when set.
func (s *Supervisor) waitReady(ctx context.Context, cfg Config, proc process.Process) error {
	if cfg.StartupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.StartupTimeout)
		defer cancel()
	}

	url := cfg.URL()
	op := func() error {
		select {
		case <-proc.Done():
			return backoff.Permanent(fmt.Errorf("appium exited: %v", proc.Err()))
		default:
		}
		return s.checkStatus(url)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(s.pollInterval), ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%v: %w", err, ctxErr)
		}
		return core.ErrServerNotReady.WithCause(err)
	}
	return nil
}

func pingStatus(url string) error {
	client := appium.NewClient(url)
	client.SetHTTPTimeout(statusTimeout)
	return client.Status()
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// prepareLogFile replaces path with a fresh empty file.
func prepareLogFile(path string) error {
	if path == "" {
		return errors.New("no log file configured")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}
