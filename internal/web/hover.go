package web

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"tripcal/internal/calendar"
	"tripcal/internal/capture"
	"tripcal/internal/model"
	"tripcal/internal/popover"
)

// pageLayout is the fixed geometry of templates/calendar.html. The template
// styles itself from these values, so an avatar's on-screen rectangle can
// be computed without a browser.
type pageLayout struct {
	Margin        float64
	HeaderHeight  float64
	HeadRowHeight float64
	CellHeight    float64
	CellPadding   float64
	DayHeight     float64
	AvatarSize    float64
	AvatarGap     float64
}

var layout = pageLayout{
	Margin:        24,
	HeaderHeight:  64,
	HeadRowHeight: 32,
	CellHeight:    96,
	CellPadding:   4,
	DayHeight:     20,
	AvatarSize:    28,
	AvatarGap:     2,
}

func (l pageLayout) cellWidth(viewportWidth float64) float64 {
	return (viewportWidth - 2*l.Margin) / 7
}

// avatarsPerRow is how many avatars fit side by side in one cell; at least one.
func (l pageLayout) avatarsPerRow(viewportWidth float64) int {
	inner := l.cellWidth(viewportWidth) - 2*l.CellPadding
	n := int(math.Floor((inner + l.AvatarGap) / (l.AvatarSize + l.AvatarGap)))
	return max(n, 1)
}

// avatarRect is where the slot-th avatar of grid cell index sits on an
// unscrolled page of the given width.
func (l pageLayout) avatarRect(index, slot int, viewportWidth float64) popover.Rect {
	row, col := index/7, index%7
	cellLeft := l.Margin + float64(col)*l.cellWidth(viewportWidth)
	cellTop := l.Margin + l.HeaderHeight + l.HeadRowHeight + float64(row)*l.CellHeight

	perRow := l.avatarsPerRow(viewportWidth)
	step := l.AvatarSize + l.AvatarGap
	return popover.Rect{
		Left:   cellLeft + l.CellPadding + float64(slot%perRow)*step,
		Top:    cellTop + l.CellPadding + l.DayHeight + float64(slot/perRow)*step,
		Width:  l.AvatarSize,
		Height: l.AvatarSize,
	}
}

// pageViewport is the fixed viewport of one page render. Nothing scrolls
// or resizes during a render; subscriptions are counted so a test can see
// them released.
type pageViewport struct {
	size popover.Size
	subs int
}

func (v *pageViewport) Size() popover.Size { return v.size }

func (v *pageViewport) OnScroll(func()) func() { return v.subscribe() }

func (v *pageViewport) OnResize(func()) func() { return v.subscribe() }

func (v *pageViewport) subscribe() func() {
	v.subs++
	return func() { v.subs-- }
}

// frameScheduler queues lifecycle transitions until settle runs them, so a
// render shows the state the panel comes to rest in. It is used by a single
// request goroutine.
type frameScheduler struct {
	pending []*frameTimer
}

type frameTimer struct {
	f       func()
	stopped bool
}

func (s *frameScheduler) AfterFunc(_ time.Duration, f func()) popover.Timer {
	t := &frameTimer{f: f}
	s.pending = append(s.pending, t)
	return t
}

func (t *frameTimer) Stop() bool {
	pending := !t.stopped
	t.stopped = true
	return pending
}

func (s *frameScheduler) settle() {
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		for _, t := range batch {
			if !t.stopped {
				t.stopped = true
				t.f()
			}
		}
	}
}

// hoverRequest is a /calendar render with one trip's preview open.
type hoverRequest struct {
	tripID   string
	viewport popover.Size
	panel    popover.Size
	page     *pageViewport
	preview  *popover.Preview
	sched    *frameScheduler
	states   []string
}

// hoverData is the rendered preview panel.
type hoverData struct {
	Trip        model.Trip
	Position    popover.Position
	Size        popover.Size
	State       string
	Transitions []string
}

// parseHover reads hover, vw and vh. It returns nil when no trip is hovered.
// A missing viewport size is the snapshot's.
func (s *Server) parseHover(r *http.Request) (*hoverRequest, error) {
	q := r.URL.Query()
	tripID := q.Get("hover")
	if tripID == "" {
		return nil, nil
	}

	dim := func(name string, def int) (float64, error) {
		raw := q.Get(name)
		if raw == "" {
			return float64(def), nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return 0, errBadRequest(name+" must be a positive integer", err)
		}
		return float64(n), nil
	}
	vw, err := dim("vw", capture.DefaultWidth)
	if err != nil {
		return nil, err
	}
	vh, err := dim("vh", capture.DefaultHeight)
	if err != nil {
		return nil, err
	}

	h := &hoverRequest{
		tripID:   tripID,
		viewport: popover.Size{Width: vw, Height: vh},
		panel:    popover.Size{Width: s.cfg.Popover.Width, Height: s.cfg.Popover.Height},
		sched:    &frameScheduler{},
	}
	h.page = &pageViewport{size: h.viewport}
	h.preview = popover.NewPreview(h.page, popover.Options{
		Size:       h.panel,
		Padding:    s.cfg.Popover.Padding,
		OpenDelay:  s.cfg.Popover.OpenDelay(),
		CloseDelay: s.cfg.Popover.CloseDelay(),
		LeaveGrace: s.cfg.Popover.LeaveGrace(),
		Scheduler:  h.sched,
	})
	h.preview.Lifecycle().OnChange(func(st popover.State) {
		h.states = append(h.states, st.String())
	})
	return h, nil
}

// render hovers the trip's avatar in view and returns the settled panel.
func (h *hoverRequest) render(ctrl *calendar.Controller, view calendar.MonthView) (*hoverData, error) {
	for i, cell := range view.Cells {
		for slot, trip := range cell.StartTrips {
			if trip.ID != h.tripID {
				continue
			}
			ctrl.HoverTrip(trip, fixedRect(layout.avatarRect(i, slot, h.viewport.Width)))
			h.sched.settle()
			return &hoverData{
				Trip:        trip,
				Position:    h.preview.Position(),
				Size:        h.panel,
				State:       h.preview.State().String(),
				Transitions: h.states,
			}, nil
		}
	}
	return nil, errNotFound("trip does not start on this calendar page")
}

type fixedRect popover.Rect

func (r fixedRect) Rect() popover.Rect { return popover.Rect(r) }

// stateNames are the panel classes the page script switches between.
type stateNames struct {
	Closed, Opening, Open, Closing string
}

var panelStates = stateNames{
	Closed:  popover.StateClosed.String(),
	Opening: popover.StateOpening.String(),
	Open:    popover.StateOpen.String(),
	Closing: popover.StateClosing.String(),
}
