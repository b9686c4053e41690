// Package dispatch is the process entry point: it owns the Scheduler, the
// signal handler, the heartbeat, configuration, and the production logger,
// per spec.md §4.8 and SPEC_FULL.md §4.9–§4.11.
package dispatch

import (
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/concurrence/concurrence/tasklet"
)

// Exit codes, per spec.md §4.8.
const (
	OK      = 0
	ERROR   = 1
	SIGINT  = 127
	TIMEOUT = 128
)

// state is the dispatcher's lifecycle, per spec.md §4.8: Init → Running →
// Quitting → Exited.
type state int

const (
	stateInit state = iota
	stateRunning
	stateQuitting
	stateExited
)

// Dispatcher owns the scheduler and the process-level wiring around it.
type Dispatcher struct {
	mu     sync.Mutex
	state  state
	cfg    Config
	sched  *tasklet.Scheduler
	logger tasklet.Logger
	sigCh  chan os.Signal
}

var (
	global   *Dispatcher
	globalMu sync.Mutex
)

// New constructs a Dispatcher from cfg, wiring its logger and GC tuning.
func New(cfg Config) (*Dispatcher, error) {
	logger := NewLogger(nil)
	tuneGC(cfg, logger)

	sched, err := tasklet.NewScheduler(cfg.Heartbeat)
	if err != nil {
		return nil, err
	}
	sched.SetLogger(logger)

	d := &Dispatcher{
		cfg:    cfg,
		sched:  sched,
		logger: logger,
		state:  stateInit,
	}

	globalMu.Lock()
	global = d
	globalMu.Unlock()

	return d, nil
}

// Scheduler returns the dispatcher's scheduler, for constructing tasks.
func (d *Dispatcher) Scheduler() *tasklet.Scheduler { return d.sched }

// SetLogger replaces the dispatcher's logger (and the scheduler's).
func (d *Dispatcher) SetLogger(l tasklet.Logger) {
	d.mu.Lock()
	d.logger = l
	d.mu.Unlock()
	d.sched.SetLogger(l)
}

// Logger returns the dispatcher's current logger.
func (d *Dispatcher) Logger() tasklet.Logger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logger
}

// Quit requests a graceful shutdown with the given exit code, per spec.md
// §4.8's quit(code).
func (d *Dispatcher) Quit(code int) {
	d.mu.Lock()
	d.state = stateQuitting
	d.mu.Unlock()
	d.sched.Quit(code)
}

// Dispatch is the process entry point, per spec.md §4.8:
//  1. install a SIGINT handler that requests a quit with code SIGINT;
//  2. start the heartbeat (via the scheduler's reactor, already wired in New);
//  3. if f is non-nil, schedule it as the root task;
//  4. run the scheduler's driver loop until nothing remains runnable or
//     pending;
//  5. tear down the signal handler and return the exit code.
func Dispatch(f func(s *tasklet.Scheduler) (any, error)) int {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		NewLogger(nil).Error("dispatch: failed to load config", "error", err)
		return ERROR
	}

	d, err := New(cfg)
	if err != nil {
		NewLogger(nil).Error("dispatch: failed to construct scheduler", "error", err)
		return ERROR
	}

	if cfg.PprofAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.PprofAddr, nil); err != nil {
				d.Logger().Warn("dispatch: pprof server stopped", "error", err)
			}
		}()
	}

	d.sigCh = make(chan os.Signal, 1)
	signal.Notify(d.sigCh, syscall.SIGINT)
	defer signal.Stop(d.sigCh)
	defer close(d.sigCh)

	go func() {
		if _, ok := <-d.sigCh; ok {
			d.Logger().Info("dispatch: received interrupt, quitting")
			d.Quit(SIGINT)
		}
	}()

	d.mu.Lock()
	d.state = stateRunning
	d.mu.Unlock()

	if f != nil {
		tasklet.New(d.sched, func() (any, error) {
			return f(d.sched)
		}, tasklet.WithName("root"))
	}

	code := d.sched.Run()

	d.mu.Lock()
	d.state = stateExited
	d.mu.Unlock()

	return code
}

// Current returns the most recently constructed Dispatcher, or nil if none
// has been constructed in this process yet. Reactor callbacks and timers
// that need to reach the dispatcher (rather than threading it through every
// call site) use this.
func Current() *Dispatcher {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}
