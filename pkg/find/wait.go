package find

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/functest-core/pkg/logger"
)

// ImplicitWaiter is the part of a session that controls lookup polling.
type ImplicitWaiter interface {
	SetImplicitWait(timeout time.Duration) error
}

// WaitPolicy owns the implicit wait of one session. A narrowed wait is held
// exclusively until released, so concurrent flows on the same session
// serialise instead of overwriting each other's timeout.
type WaitPolicy struct {
	session ImplicitWaiter
	def     time.Duration
	log     *logrus.Entry

	hold sync.Mutex // held from Narrow until release

	mu      sync.Mutex
	current time.Duration
}

// NewWaitPolicy creates a policy whose default is def. The session is assumed
// to be at def already; call Apply to push it explicitly.
func NewWaitPolicy(session ImplicitWaiter, def time.Duration) *WaitPolicy {
	return &WaitPolicy{
		session: session,
		def:     def,
		current: def,
		log:     logger.Component("wait"),
	}
}

// SetLogger replaces the policy logger.
func (w *WaitPolicy) SetLogger(entry *logrus.Entry) {
	w.log = entry
}

// Default returns the default timeout.
func (w *WaitPolicy) Default() time.Duration {
	return w.def
}

// Current returns the timeout last applied to the session.
func (w *WaitPolicy) Current() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Apply pushes the default timeout to the session.
func (w *WaitPolicy) Apply() error {
	w.hold.Lock()
	defer w.hold.Unlock()
	return w.set(w.def)
}

// Narrow applies timeout for one lookup and returns the function that
// restores the default. The release function must be called exactly once on
// every path; further calls are no-ops. A non-positive timeout means default.
func (w *WaitPolicy) Narrow(timeout time.Duration) (release func(), err error) {
	if timeout <= 0 {
		timeout = w.def
	}

	w.hold.Lock()
	if timeout != w.Current() {
		if err := w.set(timeout); err != nil {
			w.restore()
			w.hold.Unlock()
			return func() {}, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			w.restore()
			w.hold.Unlock()
		})
	}, nil
}

func (w *WaitPolicy) restore() {
	if w.Current() == w.def {
		return
	}
	if err := w.set(w.def); err != nil {
		w.log.Warnf("Failed to restore implicit wait to %s: %v", w.def, err)
	}
}

func (w *WaitPolicy) set(timeout time.Duration) error {
	if err := w.session.SetImplicitWait(timeout); err != nil {
		return err
	}
	w.mu.Lock()
	w.current = timeout
	w.mu.Unlock()
	return nil
}
