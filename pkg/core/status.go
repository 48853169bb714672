package core

// ServerState represents the lifecycle state of the automation server
type ServerState int

const (
	ServerStopped      ServerState = iota // No process
	ServerPreparing                       // Log file and stale process cleanup
	ServerVersionCheck                    // Resolving the appium binary via version manager
	ServerInstalling                      // Installing the requested appium version
	ServerLaunching                       // Process spawned, waiting for readiness
	ServerRunning                         // Accepting sessions
	ServerStopping                        // Stop requested
	ServerFailed                          // Start aborted by a fatal error
)

// String returns the string representation of ServerState
func (s ServerState) String() string {
	switch s {
	case ServerStopped:
		return "stopped"
	case ServerPreparing:
		return "preparing"
	case ServerVersionCheck:
		return "version-check"
	case ServerInstalling:
		return "installing"
	case ServerLaunching:
		return "launching"
	case ServerRunning:
		return "running"
	case ServerStopping:
		return "stopping"
	case ServerFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsStarting returns true for the transient states of a start sequence
func (s ServerState) IsStarting() bool {
	switch s {
	case ServerPreparing, ServerVersionCheck, ServerInstalling, ServerLaunching:
		return true
	default:
		return false
	}
}

// CanFail returns true if a fatal error may move this state to ServerFailed
func (s ServerState) CanFail() bool {
	return s.IsStarting()
}

// ErrorCategory classifies the type of error for logging and propagation
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryLaunch                          // Server prep, version resolution, process start (fatal)
	ErrCategoryStop                            // Teardown, best-effort
	ErrCategoryResolution                      // Element not found, locator invalid (soft)
	ErrCategoryConfig                          // Invalid configuration
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryLaunch:
		return "launch"
	case ErrCategoryStop:
		return "stop"
	case ErrCategoryResolution:
		return "resolution"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
