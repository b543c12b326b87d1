package popover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripcal/internal/model"
)

func newTestPreview(t *testing.T) (*Preview, *fakeViewport, *fakeScheduler) {
	t.Helper()
	vp := newFakeViewport(1000, 800)
	sched := &fakeScheduler{}
	p := NewPreview(vp, Options{
		Size:       Size{Width: 300, Height: 200},
		Padding:    DefaultPadding,
		OpenDelay:  100 * time.Millisecond,
		CloseDelay: 100 * time.Millisecond,
		LeaveGrace: DefaultLeaveGrace,
		Scheduler:  sched,
	})
	return p, vp, sched
}

func TestPreviewShowSubscribesAndPositions(t *testing.T) {
	p, vp, _ := newTestPreview(t)
	anchor := &movableAnchor{rect: Rect{Left: 400, Top: 100, Width: 40, Height: 40}}

	p.Show(model.Trip{ID: "t1"}, anchor)

	active, ok := p.Active()
	require.True(t, ok)
	assert.Equal(t, "t1", active.Trip.ID)
	assert.Equal(t, 2, vp.Listeners())
	assert.Equal(t, 2, p.Subscriptions())
	assert.Equal(t, 148.0, p.Position().Top)
	assert.Equal(t, StateOpening, p.State())
}

func TestPreviewRepositionsOnScrollAndResize(t *testing.T) {
	p, vp, _ := newTestPreview(t)
	anchor := &movableAnchor{rect: Rect{Left: 400, Top: 100, Width: 40, Height: 40}}

	var moves []Position
	p.OnMove(func(pos Position) { moves = append(moves, pos) })
	p.Show(model.Trip{ID: "t1"}, anchor)

	anchor.MoveTo(60)
	vp.Scroll()
	assert.Equal(t, 108.0, p.Position().Top)

	vp.Resize(1000, 150)
	assert.Equal(t, PlacementAbove, p.Position().Placement)
	assert.Len(t, moves, 3)
}

func TestPreviewCloseReleasesListeners(t *testing.T) {
	p, vp, sched := newTestPreview(t)
	anchor := &movableAnchor{rect: Rect{Left: 400, Top: 100, Width: 40, Height: 40}}

	closed := 0
	p.OnClose(func() { closed++ })
	p.Show(model.Trip{ID: "t1"}, anchor)
	sched.Advance(100 * time.Millisecond)
	require.Equal(t, StateOpen, p.State())

	p.Close()
	assert.Zero(t, vp.Listeners())
	assert.Zero(t, p.Subscriptions())
	assert.Equal(t, 1, closed)
	assert.Equal(t, StateClosing, p.State())

	sched.Advance(100 * time.Millisecond)
	assert.Equal(t, StateClosed, p.State())

	// scrolling after close must not move anything
	before := p.Position()
	anchor.MoveTo(500)
	vp.Scroll()
	assert.Equal(t, before, p.Position())

	p.Close()
	assert.Equal(t, 1, closed, "closing twice notifies once")
}

func TestPreviewNewHoverPreemptsPrevious(t *testing.T) {
	p, vp, _ := newTestPreview(t)
	first := &movableAnchor{rect: Rect{Left: 100, Top: 100, Width: 40, Height: 40}}
	second := &movableAnchor{rect: Rect{Left: 500, Top: 100, Width: 40, Height: 40}}

	closed := 0
	p.OnClose(func() { closed++ })
	p.Show(model.Trip{ID: "t1"}, first)
	p.Show(model.Trip{ID: "t2"}, second)

	active, ok := p.Active()
	require.True(t, ok)
	assert.Equal(t, "t2", active.Trip.ID)
	assert.Equal(t, 2, vp.Listeners(), "old subscriptions are released on preemption")
	assert.Equal(t, 0, closed)
	assert.Equal(t, 370.0, p.Position().Left)
}

func TestPreviewAnchorLeaveClosesAfterGrace(t *testing.T) {
	p, vp, sched := newTestPreview(t)
	anchor := &movableAnchor{rect: Rect{Left: 400, Top: 100, Width: 40, Height: 40}}

	p.Show(model.Trip{ID: "t1"}, anchor)
	p.AnchorLeave()

	_, ok := p.Active()
	assert.True(t, ok, "anchor leave alone does not close")

	sched.Advance(DefaultLeaveGrace)
	_, ok = p.Active()
	assert.False(t, ok)
	assert.Zero(t, vp.Listeners())
}

func TestPreviewStaysOpenWhilePointerOnPanel(t *testing.T) {
	p, vp, sched := newTestPreview(t)
	anchor := &movableAnchor{rect: Rect{Left: 400, Top: 100, Width: 40, Height: 40}}

	p.Show(model.Trip{ID: "t1"}, anchor)
	p.AnchorLeave()
	p.PopoverEnter()
	sched.Advance(time.Second)

	_, ok := p.Active()
	assert.True(t, ok)
	assert.Equal(t, 2, vp.Listeners())

	p.PopoverLeave()
	_, ok = p.Active()
	assert.False(t, ok)
	assert.Zero(t, vp.Listeners())
}

func TestPreviewRehoverCancelsGrace(t *testing.T) {
	p, _, sched := newTestPreview(t)
	anchor := &movableAnchor{rect: Rect{Left: 400, Top: 100, Width: 40, Height: 40}}

	p.Show(model.Trip{ID: "t1"}, anchor)
	p.AnchorLeave()
	p.Show(model.Trip{ID: "t1"}, anchor)
	sched.Advance(time.Second)

	_, ok := p.Active()
	assert.True(t, ok)
}

func TestPreviewZeroGraceClosesOnAnchorLeave(t *testing.T) {
	vp := newFakeViewport(1000, 800)
	p := NewPreview(vp, Options{Size: Size{Width: 300, Height: 200}, Scheduler: &fakeScheduler{}})

	p.Show(model.Trip{ID: "t1"}, &movableAnchor{})
	p.AnchorLeave()

	_, ok := p.Active()
	assert.False(t, ok)
	assert.Zero(t, vp.Listeners())
}

func TestPreviewOnCloseCancel(t *testing.T) {
	p, _, _ := newTestPreview(t)

	closed := 0
	cancel := p.OnClose(func() { closed++ })
	cancel()
	p.Show(model.Trip{ID: "t1"}, &movableAnchor{})
	p.Close()

	assert.Zero(t, closed)
}

func TestPreviewZeroPaddingUsesDefault(t *testing.T) {
	vp := newFakeViewport(1000, 800)
	p := NewPreview(vp, Options{Size: Size{Width: 300, Height: 200}, Scheduler: &fakeScheduler{}})

	p.Show(model.Trip{ID: "t1"}, &movableAnchor{rect: Rect{Left: 400, Top: 100, Width: 40, Height: 40}})

	assert.Equal(t, 100.0+40+DefaultPadding, p.Position().Top)
}

// lateScheduler hands out timers whose Stop never prevents the callback,
// like a time.AfterFunc that has already fired.
type lateScheduler struct {
	fns []func()
}

func (s *lateScheduler) AfterFunc(_ time.Duration, f func()) Timer {
	s.fns = append(s.fns, f)
	return lateTimer{}
}

type lateTimer struct{}

func (lateTimer) Stop() bool { return false }

func TestPreviewGraceFiringAfterNewShowKeepsNewAnchor(t *testing.T) {
	vp := newFakeViewport(1000, 800)
	sched := &lateScheduler{}
	p := NewPreview(vp, Options{
		Size:       Size{Width: 300, Height: 200},
		LeaveGrace: DefaultLeaveGrace,
		Scheduler:  sched,
	})

	p.Show(model.Trip{ID: "t1"}, &movableAnchor{})
	p.AnchorLeave()
	require.Len(t, sched.fns, 1)
	p.Show(model.Trip{ID: "t2"}, &movableAnchor{})

	sched.fns[0]()

	active, ok := p.Active()
	require.True(t, ok)
	assert.Equal(t, "t2", active.Trip.ID)
	assert.Equal(t, 2, vp.Listeners())
}
