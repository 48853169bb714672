// Package find resolves UI elements against a remote automation session.
//
// Every lookup is a single attempt: the session's implicit wait is narrowed
// to the requested timeout, one query is issued, and the default wait is
// restored before returning. Misses never escape as errors; they are logged
// and reported as a nil element or an empty slice.
package find

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/functest-core/pkg/logger"
)

// Option tunes a single lookup.
type Option func(*options)

type options struct {
	timeout   time.Duration
	logOnMiss bool
}

// WithTimeout bounds the lookup by d instead of the default wait.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Quiet suppresses the error log on a miss. Use it for lookups where absence is expected.
func Quiet() Option {
	return func(o *options) { o.logOnMiss = false }
}

// Finder resolves locators against a session.
type Finder struct {
	session Session
	wait    *WaitPolicy
	log     *logrus.Entry
}

// NewFinder creates a finder whose default wait is defaultTimeout.
func NewFinder(session Session, defaultTimeout time.Duration) *Finder {
	return &Finder{
		session: session,
		wait:    NewWaitPolicy(session, defaultTimeout),
		log:     logger.Component("find"),
	}
}

// SetLogger replaces the logger used by the finder and its wait policy.
func (f *Finder) SetLogger(entry *logrus.Entry) {
	f.log = entry
	f.wait.SetLogger(entry)
}

// Wait returns the finder's wait policy.
func (f *Finder) Wait() *WaitPolicy {
	return f.wait
}

// FindByText finds a controlType element whose text equals or contains value.
// An empty controlType matches any element.
func (f *Finder) FindByText(controlType, value string, exact bool, opts ...Option) *Element {
	return f.FindElementByLocator(ByText(controlType, value, exact), opts...)
}

// FindByTextIn finds a descendant of scope whose text equals value.
func (f *Finder) FindByTextIn(scope *Element, value string, opts ...Option) *Element {
	if scope == nil {
		f.miss(f.options(opts), "Failed to find element by text %q: no scope element", value)
		return nil
	}
	return f.FindElementByLocator(ByText(AnyControl, value, true).Within(scope), opts...)
}

// FindByType finds an element by exact control type.
func (f *Finder) FindByType(value string, opts ...Option) *Element {
	return f.FindElementByLocator(ByType(value), opts...)
}

// Parent finds the parent of element.
func (f *Finder) Parent(element *Element, opts ...Option) *Element {
	o := f.options(opts)
	if element == nil {
		f.miss(o, "Failed to find parent: no element")
		return nil
	}
	expr, err := element.XPath()
	if err != nil {
		f.miss(o, "Failed to find parent of %s: %v", element, err)
		return nil
	}
	parent, err := ComposeParent(expr)
	if err != nil {
		f.miss(o, "Failed to find parent of %s: %v", element, err)
		return nil
	}
	f.log.Debugf("Looking for parent with following xpath: %s", parent)
	return f.FindElementByLocator(ByXPath(parent), opts...)
}

// FindElementByLocator resolves a single element. Returns nil on a miss.
func (f *Finder) FindElementByLocator(loc Locator, opts ...Option) *Element {
	o := f.options(opts)

	q, err := loc.Query()
	if err != nil {
		f.miss(o, "Failed to build locator %s: %v", loc, err)
		return nil
	}

	release, err := f.wait.Narrow(o.timeout)
	if err != nil {
		f.miss(o, "Failed to set wait for locator %s: %v", q, err)
		return nil
	}
	defer release()

	f.log.Debugf("Looking for element by %s", q)
	id, err := f.session.FindElement(q.Using, q.Value)
	if err != nil {
		f.miss(o, "Failed to find element by locator: %s in %s.", q, o.timeout)
		return nil
	}

	f.log.Debugf("Found element %s by %s", id, q)
	return newElement(f.session, id, q)
}

// FindElementsByLocator resolves all matching elements. Returns an empty
// slice on a miss.
func (f *Finder) FindElementsByLocator(loc Locator, opts ...Option) []*Element {
	o := f.options(opts)

	q, err := loc.Query()
	if err != nil {
		f.miss(o, "Failed to build locator %s: %v", loc, err)
		return []*Element{}
	}

	release, err := f.wait.Narrow(o.timeout)
	if err != nil {
		f.miss(o, "Failed to set wait for locator %s: %v", q, err)
		return []*Element{}
	}
	defer release()

	ids, err := f.session.FindElements(q.Using, q.Value)
	if err != nil {
		f.miss(o, "Failed to find elements by locator: %s in %s.", q, o.timeout)
		return []*Element{}
	}

	elements := make([]*Element, 0, len(ids))
	for _, id := range ids {
		elements = append(elements, newElement(f.session, id, q))
	}
	return elements
}

func (f *Finder) options(opts []Option) options {
	o := options{timeout: f.wait.Default(), logOnMiss: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = f.wait.Default()
	}
	return o
}

func (f *Finder) miss(o options, format string, args ...interface{}) {
	if o.logOnMiss {
		f.log.Errorf(format, args...)
		return
	}
	f.log.Debugf(format, args...)
}
