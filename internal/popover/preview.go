package popover

import (
	"sync"
	"time"

	"tripcal/internal/model"
)

// DefaultLeaveGrace is how long the panel survives the pointer leaving its
// anchor, long enough to travel onto the panel itself.
const DefaultLeaveGrace = 150 * time.Millisecond

// Anchor is the on-screen element a preview is attached to.
type Anchor interface {
	Rect() Rect
}

// Viewport reports its size and lets the preview follow scroll and resize.
// Each subscription returns the func that removes it.
type Viewport interface {
	Size() Size
	OnScroll(fn func()) (cancel func())
	OnResize(fn func()) (cancel func())
}

// HoverAnchor ties the hovered trip to the element under the pointer.
type HoverAnchor struct {
	Trip   model.Trip
	Anchor Anchor
}

type Options struct {
	Size Size

	// Padding is the gap to the anchor and the viewport edges. Zero or
	// negative selects DefaultPadding.
	Padding float64

	// OpenDelay / CloseDelay are the lifecycle transition durations.
	OpenDelay  time.Duration
	CloseDelay time.Duration

	// LeaveGrace is how long AnchorLeave waits before closing; zero or
	// negative closes immediately.
	LeaveGrace time.Duration

	// Scheduler defaults to SystemScheduler.
	Scheduler Scheduler
}

// Preview owns the single active HoverAnchor and the viewport listeners
// that keep the panel positioned while it is shown.
//
// Show preempts any previous anchor. Close releases every listener it
// acquired, whichever path closes it: explicit Close, PopoverLeave, the
// anchor-leave grace timer, or a later Show.
type Preview struct {
	mu       sync.Mutex
	viewport Viewport
	opts     Options
	life     *Lifecycle

	active   *HoverAnchor
	gen      uint64
	position Position
	release  []func()

	grace    Timer
	graceGen uint64

	nextID  int
	onClose map[int]func()
	onMove  map[int]func(Position)
}

func NewPreview(viewport Viewport, opts Options) *Preview {
	if opts.Padding <= 0 {
		opts.Padding = DefaultPadding
	}
	if opts.Scheduler == nil {
		opts.Scheduler = SystemScheduler
	}
	return &Preview{
		viewport: viewport,
		opts:     opts,
		life:     NewLifecycle(opts.Scheduler, opts.OpenDelay, opts.CloseDelay),
		onClose:  make(map[int]func()),
		onMove:   make(map[int]func(Position)),
	}
}

// Lifecycle exposes the mount state machine, e.g. to drive CSS classes.
func (p *Preview) Lifecycle() *Lifecycle {
	return p.life
}

func (p *Preview) State() State {
	return p.life.State()
}

// OnClose registers fn to run whenever an active preview closes.
func (p *Preview) OnClose(fn func()) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.onClose[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.onClose, id)
		p.mu.Unlock()
	}
}

// OnMove registers fn to run with every recomputed position.
func (p *Preview) OnMove(fn func(Position)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.onMove[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.onMove, id)
		p.mu.Unlock()
	}
}

// Active returns the current hover anchor, if any.
func (p *Preview) Active() (HoverAnchor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return HoverAnchor{}, false
	}
	return *p.active, true
}

func (p *Preview) Position() Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Subscriptions is the number of viewport listeners currently held.
func (p *Preview) Subscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.release)
}

// Show makes trip at anchor the active preview.
func (p *Preview) Show(trip model.Trip, anchor Anchor) {
	p.mu.Lock()
	p.stopGraceLocked()
	old := p.release
	p.release = nil
	p.active = &HoverAnchor{Trip: trip, Anchor: anchor}
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	runAll(old)

	// Subscribe outside the lock: a viewport may fire synchronously.
	acquired := []func(){
		p.viewport.OnScroll(p.Reposition),
		p.viewport.OnResize(p.Reposition),
	}

	p.mu.Lock()
	if gen != p.gen {
		// closed or preempted while subscribing
		p.mu.Unlock()
		runAll(acquired)
		return
	}
	p.release = acquired
	p.mu.Unlock()

	p.Reposition()
	p.life.Open()
}

// Reposition recomputes the panel position from the anchor's current
// on-screen rectangle.
func (p *Preview) Reposition() {
	p.mu.Lock()
	if p.active == nil {
		p.mu.Unlock()
		return
	}
	anchor := p.active.Anchor
	gen := p.gen
	p.mu.Unlock()

	pos := ComputePosition(anchor.Rect(), p.opts.Size, p.viewport.Size(), p.opts.Padding)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.position = pos
	listeners := make([]func(Position), 0, len(p.onMove))
	for _, fn := range p.onMove {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(pos)
	}
}

// Close hides the preview and releases its viewport listeners. Closing an
// inactive preview does nothing.
func (p *Preview) Close() {
	p.mu.Lock()
	p.closeLocked()
}

// closeLocked is entered with p.mu held and releases it.
func (p *Preview) closeLocked() {
	if p.active == nil {
		p.mu.Unlock()
		return
	}
	p.stopGraceLocked()
	released := p.release
	p.release = nil
	p.active = nil
	p.gen++
	listeners := make([]func(), 0, len(p.onClose))
	for _, fn := range p.onClose {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	runAll(released)
	p.life.Close()
	runAll(listeners)
}

// AnchorLeave is the pointer leaving the anchor. The preview stays up for
// the grace period so the pointer can reach the panel.
func (p *Preview) AnchorLeave() {
	p.mu.Lock()
	if p.active == nil {
		p.mu.Unlock()
		return
	}
	if p.opts.LeaveGrace <= 0 {
		p.mu.Unlock()
		p.Close()
		return
	}
	p.stopGraceLocked()
	p.graceGen++
	graceGen := p.graceGen
	gen := p.gen
	p.grace = p.opts.Scheduler.AfterFunc(p.opts.LeaveGrace, func() {
		p.mu.Lock()
		if graceGen != p.graceGen || gen != p.gen {
			p.mu.Unlock()
			return
		}
		p.grace = nil
		// check and close under one lock so a concurrent Show wins
		p.closeLocked()
	})
	p.mu.Unlock()
}

// PopoverEnter keeps the preview open while the pointer is over it.
func (p *Preview) PopoverEnter() {
	p.mu.Lock()
	p.stopGraceLocked()
	p.mu.Unlock()
}

// PopoverLeave closes the preview.
func (p *Preview) PopoverLeave() {
	p.Close()
}

func (p *Preview) stopGraceLocked() {
	if p.grace != nil {
		p.grace.Stop()
		p.grace = nil
	}
	p.graceGen++
}

func runAll(fns []func()) {
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}
