package popover

import (
	"sync"
	"time"
)

// State is the mount state of the preview panel.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. It is the only clock the preview uses.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemScheduler is backed by time.AfterFunc.
var SystemScheduler Scheduler = systemScheduler{}

// Lifecycle drives closed -> opening -> open -> closing -> closed.
//
// The transition durations only decide how long the intermediate states
// last; the structural state (mounted or not) is always read from the
// machine, never inferred from elapsed wall-clock time. A Close during
// opening goes straight to closing and an Open during closing goes back
// to opening.
type Lifecycle struct {
	mu        sync.Mutex
	sched     Scheduler
	openFor   time.Duration
	closeFor  time.Duration
	state     State
	timer     Timer
	gen       uint64
	listeners []func(State)
}

// NewLifecycle returns a closed lifecycle. A nil scheduler uses
// SystemScheduler; zero durations make the transition immediate.
func NewLifecycle(sched Scheduler, openFor, closeFor time.Duration) *Lifecycle {
	if sched == nil {
		sched = SystemScheduler
	}
	return &Lifecycle{
		sched:    sched,
		openFor:  openFor,
		closeFor: closeFor,
	}
}

// OnChange registers fn for every state change. It runs outside the lock.
func (l *Lifecycle) OnChange(fn func(State)) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Mounted reports whether the panel should exist in the view at all.
func (l *Lifecycle) Mounted() bool {
	return l.State() != StateClosed
}

func (l *Lifecycle) Open() {
	l.transition(StateOpening, StateOpen, l.openFor, StateOpening, StateOpen)
}

func (l *Lifecycle) Close() {
	l.transition(StateClosing, StateClosed, l.closeFor, StateClosing, StateClosed)
}

// transition enters mid, then settles into final after d. Calls are no-ops
// while already in either skip state.
func (l *Lifecycle) transition(mid, final State, d time.Duration, skip ...State) {
	l.mu.Lock()
	for _, s := range skip {
		if l.state == s {
			l.mu.Unlock()
			return
		}
	}

	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.gen++
	gen := l.gen

	changes := []State{mid}
	l.state = mid
	if d <= 0 {
		l.state = final
		changes = append(changes, final)
	} else {
		l.timer = l.sched.AfterFunc(d, func() { l.settle(gen, final) })
	}
	listeners := l.snapshot()
	l.mu.Unlock()

	notify(listeners, changes...)
}

func (l *Lifecycle) settle(gen uint64, final State) {
	l.mu.Lock()
	if gen != l.gen {
		// superseded by a later Open/Close
		l.mu.Unlock()
		return
	}
	l.timer = nil
	l.state = final
	listeners := l.snapshot()
	l.mu.Unlock()

	notify(listeners, final)
}

func (l *Lifecycle) snapshot() []func(State) {
	out := make([]func(State), len(l.listeners))
	copy(out, l.listeners)
	return out
}

func notify(listeners []func(State), states ...State) {
	for _, s := range states {
		for _, fn := range listeners {
			fn(s)
		}
	}
}
