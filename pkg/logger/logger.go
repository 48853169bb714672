// Package logger provides the process-wide leveled logger for functest-core.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	globalLogger = newDiscardLogger()
	logFile      *os.File
	mu           sync.Mutex
)

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
	return l
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	globalLogger.SetOutput(f)

	return nil
}

// SetVerbose mirrors log output to stderr in addition to the log file.
func SetVerbose(verbose bool) {
	mu.Lock()
	defer mu.Unlock()

	var out io.Writer = io.Discard
	if logFile != nil {
		out = logFile
	}
	if verbose {
		out = io.MultiWriter(out, os.Stderr)
	}
	globalLogger.SetOutput(out)
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger.SetOutput(io.Discard)
}

// Standard returns the underlying logrus logger.
func Standard() *logrus.Logger {
	return globalLogger
}

// Component returns an entry tagged with the given component name.
func Component(name string) *logrus.Entry {
	return globalLogger.WithField("component", name)
}

// Fatalf logs at fatal severity on the given entry without exiting.
func Fatalf(entry *logrus.Entry, format string, v ...interface{}) {
	entry.Logf(logrus.FatalLevel, format, v...)
}

// GetWriter returns the underlying writer for use by child processes.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
