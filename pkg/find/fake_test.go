package find

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var errNoSuchElement = errors.New("no such element: An element could not be located")

// fakeSession is an in-memory Session keyed by query value.
type fakeSession struct {
	mu sync.Mutex

	elements map[string][]string // query value -> element IDs
	tags     map[string]string
	rects    map[string][4]int

	implicit  time.Duration
	waitCalls []time.Duration
	queries   []Query
	tagCalls  int
	waitErr   error
	findErr   error
}

func newFakeSession(def time.Duration) *fakeSession {
	return &fakeSession{
		elements: map[string][]string{},
		tags:     map[string]string{},
		rects:    map[string][4]int{},
		implicit: def,
	}
}

func (s *fakeSession) add(value string, ids ...string) {
	s.elements[value] = append(s.elements[value], ids...)
}

func (s *fakeSession) FindElement(strategy, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, Query{Using: strategy, Value: value})
	if s.findErr != nil {
		return "", s.findErr
	}
	ids := s.elements[value]
	if len(ids) == 0 {
		return "", errNoSuchElement
	}
	return ids[0], nil
}

func (s *fakeSession) FindElements(strategy, value string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, Query{Using: strategy, Value: value})
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.elements[value], nil
}

func (s *fakeSession) SetImplicitWait(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitCalls = append(s.waitCalls, timeout)
	if s.waitErr != nil {
		return s.waitErr
	}
	s.implicit = timeout
	return nil
}

func (s *fakeSession) GetElementTagName(elementID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tagCalls++
	return s.tags[elementID], nil
}

func (s *fakeSession) GetElementRect(elementID string) (x, y, w, h int, err error) {
	r, ok := s.rects[elementID]
	if !ok {
		return 0, 0, 0, 0, errors.New("stale element reference")
	}
	return r[0], r[1], r[2], r[3], nil
}

func (s *fakeSession) lastQuery() Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return Query{}
	}
	return s.queries[len(s.queries)-1]
}

func (s *fakeSession) currentWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.implicit
}

// newTestFinder returns a finder logging into a test hook.
func newTestFinder(session *fakeSession, def time.Duration) (*Finder, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	f := NewFinder(session, def)
	f.SetLogger(logrus.NewEntry(log))
	return f, hook
}

func countLevel(hook *test.Hook, level logrus.Level) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
