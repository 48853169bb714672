package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devicelab-dev/functest-core/pkg/config"
	"github.com/devicelab-dev/functest-core/pkg/core"
)

func newTestSupervisor(control *fakeControl, hostOS config.OSType) (*Supervisor, *test.Hook) {
	s := NewSupervisor(control, hostOS)
	log, hook := newTestLogger()
	s.SetLogger(log)
	s.pollInterval = time.Millisecond
	s.checkStatus = func(string) error { return nil }
	s.freePort = func() (int, error) { return 4723, nil }
	return s, hook
}

func testConfig(t *testing.T) Config {
	return Config{
		LogFile:        filepath.Join(t.TempDir(), "logs", "appium.log"),
		Address:        "127.0.0.1",
		BasePath:       DefaultBasePath,
		AutomationName: "UiAutomator2",
		CommandTimeout: 180,
	}
}

func TestSupervisor_StopWithoutStart(t *testing.T) {
	s, hook := newTestSupervisor(newFakeControl(), config.OSLinux)

	s.Stop()

	if !hasMessage(hook, logrus.InfoLevel, "Appium server already stopped.") {
		t.Error("missing informational already-stopped message")
	}
	if countLevel(hook, logrus.ErrorLevel)+countLevel(hook, logrus.FatalLevel) != 0 {
		t.Error("stop without start logged an error")
	}
	if s.State() != core.ServerStopped {
		t.Errorf("state = %s", s.State())
	}
}

func TestSupervisor_StartAndStop(t *testing.T) {
	control := newFakeControl()
	s, _ := newTestSupervisor(control, config.OSLinux)
	cfg := testConfig(t)

	if err := s.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.State() != core.ServerRunning {
		t.Fatalf("state = %s, want running", s.State())
	}
	if s.URL() != "http://127.0.0.1:4723/wd/hub" {
		t.Errorf("URL() = %q", s.URL())
	}
	if !s.LogFileCreated() {
		t.Error("log file not created")
	}
	if len(control.starts) != 1 || control.starts[0].Path != "appium" {
		t.Fatalf("starts = %+v", control.starts)
	}
	if flagValue(control.starts[0].Args, "--port") != "4723" {
		t.Errorf("port not passed: %v", control.starts[0].Args)
	}
	if len(control.runs) != 0 || len(control.kills) != 0 {
		t.Errorf("unexpected commands on linux: runs=%v kills=%v", control.runs, control.kills)
	}

	s.Stop()
	if s.State() != core.ServerStopped {
		t.Errorf("state = %s after stop", s.State())
	}
	if control.procs[0].stops != 1 {
		t.Errorf("process stopped %d times", control.procs[0].stops)
	}
	if s.URL() != "" {
		t.Errorf("URL() = %q after stop", s.URL())
	}
}

func TestSupervisor_StartWhileRunning(t *testing.T) {
	control := newFakeControl()
	s, _ := newTestSupervisor(control, config.OSLinux)

	if err := s.Start(context.Background(), testConfig(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	err := s.Start(context.Background(), testConfig(t))
	if !errors.Is(err, core.ErrServerAlreadyRunning) {
		t.Fatalf("err = %v, want ErrServerAlreadyRunning", err)
	}
	if len(control.starts) != 1 {
		t.Errorf("process started %d times", len(control.starts))
	}
	if control.procs[0].stops != 0 {
		t.Error("running process was touched")
	}
}

func TestSupervisor_ReplacesLogFile(t *testing.T) {
	s, _ := newTestSupervisor(newFakeControl(), config.OSLinux)
	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.LogFile, []byte("old run"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := s.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("log file not recreated: %q", data)
	}
}

func TestSupervisor_LogFileFailureIsFlagged(t *testing.T) {
	control := newFakeControl()
	s, hook := newTestSupervisor(control, config.OSLinux)
	cfg := testConfig(t)

	// A regular file where the log directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg.LogFile = filepath.Join(blocker, "appium.log")

	if err := s.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.LogFileCreated() {
		t.Error("LogFileCreated() = true")
	}
	if !hasMessage(hook, logrus.FatalLevel, core.ErrLogFile.Message) {
		t.Error("missing fatal log for log file failure")
	}
	if len(control.starts) != 1 {
		t.Error("start did not continue after log file failure")
	}
}

func TestSupervisor_WindowsKillsStaleNode(t *testing.T) {
	control := newFakeControl()
	s, _ := newTestSupervisor(control, config.OSWindows)

	if err := s.Start(context.Background(), testConfig(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(control.kills) != 1 || control.kills[0] != "node.exe" {
		t.Errorf("kills = %v", control.kills)
	}
}

func TestSupervisor_MacOSUsesResolvedExecutable(t *testing.T) {
	bin := appiumBinary(t)
	control := newFakeControl()
	control.on("avm bin 1.6.5", bin+"\n")
	s, _ := newTestSupervisor(control, config.OSMacOS)

	cfg := testConfig(t)
	cfg.Version = "1.6.5"
	if err := s.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	spec := control.starts[0]
	if spec.Path != "node" || spec.Args[0] != bin {
		t.Errorf("spec = %s", spec)
	}
	if s.Config().Executable != bin {
		t.Errorf("Executable = %q", s.Config().Executable)
	}
}

func TestSupervisor_VersionIgnoredOutsideMacOS(t *testing.T) {
	control := newFakeControl()
	s, _ := newTestSupervisor(control, config.OSLinux)

	cfg := testConfig(t)
	cfg.Version = "1.6.5"
	if err := s.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(control.runs) != 0 {
		t.Errorf("version manager used on linux: %v", control.runs)
	}
}

func TestSupervisor_InstallFailureAbortsStart(t *testing.T) {
	control := newFakeControl()
	control.on("avm bin 1.6.5", "appium 1.6.5 not installed")
	control.on("avm 1.6.5", "appium 1.6.5 install failed")
	s, hook := newTestSupervisor(control, config.OSMacOS)

	cfg := testConfig(t)
	cfg.Version = "1.6.5"
	err := s.Start(context.Background(), cfg)
	if !errors.Is(err, core.ErrAppiumInstall) {
		t.Fatalf("err = %v, want ErrAppiumInstall", err)
	}
	if len(control.starts) != 0 {
		t.Error("process started after failed install")
	}
	if s.State() != core.ServerFailed {
		t.Errorf("state = %s, want failed", s.State())
	}
	if countLevel(hook, logrus.FatalLevel) != 1 {
		t.Errorf("fatal entries = %d, want 1", countLevel(hook, logrus.FatalLevel))
	}
}

func TestSupervisor_ProcessStartError(t *testing.T) {
	control := newFakeControl()
	control.startErr = errors.New("exec: \"appium\": executable file not found in $PATH")
	s, _ := newTestSupervisor(control, config.OSLinux)

	err := s.Start(context.Background(), testConfig(t))
	if !errors.Is(err, core.ErrServerLaunch) {
		t.Fatalf("err = %v, want ErrServerLaunch", err)
	}
	if s.State() != core.ServerFailed {
		t.Errorf("state = %s", s.State())
	}
}

func TestSupervisor_ProcessExitsBeforeReady(t *testing.T) {
	control := newFakeControl()
	control.exitNow = true
	s, _ := newTestSupervisor(control, config.OSLinux)
	s.checkStatus = func(string) error { return errors.New("connection refused") }

	err := s.Start(context.Background(), testConfig(t))
	if !errors.Is(err, core.ErrServerNotReady) {
		t.Fatalf("err = %v, want ErrServerNotReady", err)
	}
	if s.State() != core.ServerFailed {
		t.Errorf("state = %s", s.State())
	}
}

func TestSupervisor_ReadinessBoundedByContext(t *testing.T) {
	control := newFakeControl()
	s, _ := newTestSupervisor(control, config.OSLinux)
	s.checkStatus = func(string) error { return errors.New("connection refused") }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Start(ctx, testConfig(t))
	if !errors.Is(err, core.ErrServerNotReady) {
		t.Fatalf("err = %v, want ErrServerNotReady", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline cause", err)
	}
	if control.procs[0].stops != 1 {
		t.Error("spawned process not killed after failed start")
	}
}

func TestSupervisor_ReadinessWaitsForStatus(t *testing.T) {
	s, _ := newTestSupervisor(newFakeControl(), config.OSLinux)
	calls := 0
	s.checkStatus = func(string) error {
		calls++
		if calls < 3 {
			return errors.New("not ready")
		}
		return nil
	}

	if err := s.Start(context.Background(), testConfig(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("status checks = %d, want 3", calls)
	}
}

func TestSupervisor_StopFailureIsLoggedNotReturned(t *testing.T) {
	control := newFakeControl()
	control.stopErr = errors.New("access denied")
	s, hook := newTestSupervisor(control, config.OSLinux)

	if err := s.Start(context.Background(), testConfig(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()

	if !hasMessage(hook, logrus.FatalLevel, "Failed to stop Appium server.") {
		t.Error("missing fatal stop message")
	}
	if !hasMessage(hook, logrus.DebugLevel, core.ErrServerStop.Message+": access denied") {
		t.Error("missing stop cause")
	}
	if s.State() != core.ServerStopped {
		t.Errorf("state = %s", s.State())
	}
}

func TestSupervisor_RestartAfterFailure(t *testing.T) {
	control := newFakeControl()
	control.startErr = errors.New("boom")
	s, _ := newTestSupervisor(control, config.OSLinux)

	if err := s.Start(context.Background(), testConfig(t)); err == nil {
		t.Fatal("expected failure")
	}
	control.startErr = nil
	if err := s.Start(context.Background(), testConfig(t)); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if s.State() != core.ServerRunning {
		t.Errorf("state = %s", s.State())
	}
}

func TestSupervisor_ProcessExitAfterStartFailsServer(t *testing.T) {
	control := newFakeControl()
	s, hook := newTestSupervisor(control, config.OSLinux)

	if err := s.Start(context.Background(), testConfig(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	control.procs[0].exit(errors.New("killed"))

	if got := s.State(); got != core.ServerFailed {
		t.Fatalf("state = %s, want %s", got, core.ServerFailed)
	}
	if url := s.URL(); url != "" {
		t.Errorf("URL() = %q after exit", url)
	}
	if !hasMessage(hook, logrus.ErrorLevel, "killed") {
		t.Error("missing exit log")
	}

	if err := s.Start(context.Background(), testConfig(t)); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if len(control.starts) != 2 {
		t.Errorf("starts = %d, want 2", len(control.starts))
	}
	if s.State() != core.ServerRunning {
		t.Errorf("state = %s", s.State())
	}
}

func TestSupervisor_StopAfterProcessExit(t *testing.T) {
	control := newFakeControl()
	s, hook := newTestSupervisor(control, config.OSLinux)

	if err := s.Start(context.Background(), testConfig(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	control.procs[0].exit(nil)
	s.Stop()

	if control.procs[0].stops != 0 {
		t.Errorf("stops = %d, want 0", control.procs[0].stops)
	}
	if !hasMessage(hook, logrus.InfoLevel, "Appium server already stopped.") {
		t.Error("missing already-stopped message")
	}
}
