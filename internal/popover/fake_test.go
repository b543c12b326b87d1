package popover

import (
	"sort"
	"sync"
	"time"
)

// fakeScheduler fires callbacks only when Advance moves its clock past them.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *fakeScheduler
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, at: s.now + d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && t.at <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fn()
	}
}

func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeViewport records live scroll/resize subscriptions.
type fakeViewport struct {
	mu     sync.Mutex
	size   Size
	nextID int
	scroll map[int]func()
	resize map[int]func()
}

func newFakeViewport(w, h float64) *fakeViewport {
	return &fakeViewport{
		size:   Size{Width: w, Height: h},
		scroll: make(map[int]func()),
		resize: make(map[int]func()),
	}
}

func (v *fakeViewport) Size() Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

func (v *fakeViewport) OnScroll(fn func()) func() { return v.add(v.scroll, fn) }
func (v *fakeViewport) OnResize(fn func()) func() { return v.add(v.resize, fn) }

func (v *fakeViewport) add(set map[int]func(), fn func()) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextID
	v.nextID++
	set[id] = fn
	return func() {
		v.mu.Lock()
		delete(set, id)
		v.mu.Unlock()
	}
}

func (v *fakeViewport) Listeners() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.scroll) + len(v.resize)
}

func (v *fakeViewport) Scroll() { v.fire(v.scroll) }

func (v *fakeViewport) Resize(w, h float64) {
	v.mu.Lock()
	v.size = Size{Width: w, Height: h}
	v.mu.Unlock()
	v.fire(v.resize)
}

func (v *fakeViewport) fire(set map[int]func()) {
	v.mu.Lock()
	fns := make([]func(), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	v.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// movableAnchor is an element whose rectangle changes as the page scrolls.
type movableAnchor struct {
	mu   sync.Mutex
	rect Rect
}

func (a *movableAnchor) Rect() Rect {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rect
}

func (a *movableAnchor) MoveTo(top float64) {
	a.mu.Lock()
	a.rect.Top = top
	a.mu.Unlock()
}
