package server

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devicelab-dev/functest-core/pkg/process"
)

// fakeControl scripts process.Control responses.
type fakeControl struct {
	mu sync.Mutex

	outputs map[string][]string // command line -> queued outputs
	runs    []string
	kills   []string
	starts  []process.Spec

	startErr error
	procs    []*fakeProcess
	exitNow  bool
	stopErr  error
}

func newFakeControl() *fakeControl {
	return &fakeControl{outputs: map[string][]string{}}
}

// on queues output for a command line such as "avm bin 1.6.5".
func (c *fakeControl) on(cmdline string, outputs ...string) {
	c.outputs[cmdline] = append(c.outputs[cmdline], outputs...)
}

func (c *fakeControl) Run(ctx context.Context, name string, args ...string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmdline := strings.Join(append([]string{name}, args...), " ")
	c.runs = append(c.runs, cmdline)
	queued := c.outputs[cmdline]
	if len(queued) == 0 {
		return "", errors.New("unexpected command: " + cmdline)
	}
	c.outputs[cmdline] = queued[1:]
	return queued[0], nil
}

func (c *fakeControl) KillByName(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kills = append(c.kills, name)
	return nil
}

func (c *fakeControl) Start(spec process.Spec) (process.Process, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts = append(c.starts, spec)
	if c.startErr != nil {
		return nil, c.startErr
	}
	p := &fakeProcess{pid: 1000 + len(c.starts), done: make(chan struct{}), stopErr: c.stopErr}
	if c.exitNow {
		p.exit(errors.New("exit status 1"))
	}
	c.procs = append(c.procs, p)
	return p, nil
}

func (c *fakeControl) count(cmdline string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.runs {
		if r == cmdline {
			n++
		}
	}
	return n
}

type fakeProcess struct {
	pid     int
	done    chan struct{}
	once    sync.Once
	err     error
	stopErr error
	stops   int
}

func (p *fakeProcess) PID() int              { return p.pid }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Err() error            { return p.err }

func (p *fakeProcess) Stop() error {
	p.stops++
	if p.stopErr != nil {
		return p.stopErr
	}
	p.exit(nil)
	return nil
}

func (p *fakeProcess) exit(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

func newTestLogger() (*logrus.Entry, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(log), hook
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

func hasMessage(hook *test.Hook, level logrus.Level, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			return true
		}
	}
	return false
}
