package calendar

import (
	"fmt"
	"sync"
	"time"

	"tripcal/internal/model"
	"tripcal/internal/popover"
)

// Listener receives the controller's events. The controller has no opinion
// about what happens after dispatch.
type Listener interface {
	OnDateClick(day model.CalendarDay, trips []model.Trip)
	OnTripHover(trip model.Trip, anchor popover.Anchor)
	OnTripLeave()
}

// ListenerFuncs adapts plain funcs to Listener. Nil funcs are skipped.
type ListenerFuncs struct {
	DateClick func(day model.CalendarDay, trips []model.Trip)
	TripHover func(trip model.Trip, anchor popover.Anchor)
	TripLeave func()
}

func (f ListenerFuncs) OnDateClick(day model.CalendarDay, trips []model.Trip) {
	if f.DateClick != nil {
		f.DateClick(day, trips)
	}
}

func (f ListenerFuncs) OnTripHover(trip model.Trip, anchor popover.Anchor) {
	if f.TripHover != nil {
		f.TripHover(trip, anchor)
	}
}

func (f ListenerFuncs) OnTripLeave() {
	if f.TripLeave != nil {
		f.TripLeave()
	}
}

// Nav is a month navigation transition.
type Nav string

const (
	NavNone     Nav = ""
	NavPrevious Nav = "prev"
	NavNext     Nav = "next"
	NavToday    Nav = "today"
)

func ParseNav(s string) (Nav, error) {
	switch Nav(s) {
	case NavNone, NavPrevious, NavNext, NavToday:
		return Nav(s), nil
	default:
		return NavNone, fmt.Errorf("unknown navigation %q", s)
	}
}

// MonthView is everything needed to draw one month.
type MonthView struct {
	Month      string                  `json:"month"`
	Title      string                  `json:"title"`
	Previous   string                  `json:"previous"`
	Next       string                  `json:"next"`
	Cells      []Cell                  `json:"cells"`
	StartIndex map[string][]model.Trip `json:"start_index"`
}

type Option func(*Controller)

// WithClock sets the source of "now" for today detection and the today
// transition.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLocation sets the zone the grid is built in.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) { c.loc = loc }
}

// WithMonth starts the cursor on t's month instead of the current month.
func WithMonth(t time.Time) Option {
	return func(c *Controller) { c.start = t }
}

// WithPreview lets the controller drive a hover preview panel.
func WithPreview(p *popover.Preview) Option {
	return func(c *Controller) { c.preview = p }
}

type subscription struct {
	id int
	l  Listener
}

// Controller holds the month cursor and dispatches date-click and trip
// hover events. The cursor is its only state besides the hovered trip and
// the start-date index of the last rendered view.
type Controller struct {
	mu      sync.Mutex
	now     func() time.Time
	loc     *time.Location
	start   time.Time
	cursor  time.Time
	preview *popover.Preview

	index   map[string][]model.Trip
	hovered *model.Trip

	nextID         int
	subs           []subscription
	releasePreview func()
}

func NewController(opts ...Option) *Controller {
	c := &Controller{
		now:   time.Now,
		loc:   time.Local,
		index: map[string][]model.Trip{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.start.IsZero() {
		c.start = c.now()
	}
	c.cursor = MonthStart(c.start.In(c.loc))
	if c.preview != nil {
		c.releasePreview = c.preview.OnClose(c.tripLeft)
	}
	return c
}

// Subscribe registers l and returns the func that removes it.
func (c *Controller) Subscribe(l Listener) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscription{id: id, l: l})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Cursor returns the first of the displayed month.
func (c *Controller) Cursor() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *Controller) Previous() { c.move(func(cur time.Time) time.Time { return cur.AddDate(0, -1, 0) }) }

func (c *Controller) Next() { c.move(func(cur time.Time) time.Time { return cur.AddDate(0, 1, 0) }) }

// Today moves the cursor to the current month, read from the clock now.
func (c *Controller) Today() {
	c.move(func(time.Time) time.Time { return MonthStart(c.now().In(c.loc)) })
}

// Apply runs one navigation transition; NavNone leaves the cursor alone.
func (c *Controller) Apply(nav Nav) {
	switch nav {
	case NavPrevious:
		c.Previous()
	case NavNext:
		c.Next()
	case NavToday:
		c.Today()
	}
}

// move changes the cursor and closes any open hover preview.
func (c *Controller) move(next func(time.Time) time.Time) {
	c.mu.Lock()
	c.cursor = next(c.cursor)
	c.mu.Unlock()

	c.dismissHover()
}

// View renders the current month from trips and the legacy events map.
// Trips are used as given; selecting the visible window is the caller's
// job (see VisibleRange).
func (c *Controller) View(trips []model.Trip, events map[string]bool) MonthView {
	c.mu.Lock()
	cursor := c.cursor
	c.mu.Unlock()

	grid := GenerateGrid(cursor, c.now())
	index := IndexByStartDate(trips)

	c.mu.Lock()
	c.index = index
	c.mu.Unlock()

	return MonthView{
		Month:      cursor.Format(MonthLayout),
		Title:      cursor.Format("January 2006"),
		Previous:   cursor.AddDate(0, -1, 0).Format(MonthLayout),
		Next:       cursor.AddDate(0, 1, 0).Format(MonthLayout),
		Cells:      BuildCells(grid, trips, events),
		StartIndex: index,
	}
}

// ClickDate dispatches OnDateClick with the trips starting on day, taken
// from the last rendered view. trips is nil when none start that day.
func (c *Controller) ClickDate(day model.CalendarDay) {
	c.mu.Lock()
	trips := c.index[day.Key]
	subs := c.listenersLocked()
	c.mu.Unlock()

	for _, l := range subs {
		l.OnDateClick(day, trips)
	}
}

// HoverTrip makes trip the hovered trip, replacing any previous one.
func (c *Controller) HoverTrip(trip model.Trip, anchor popover.Anchor) {
	// Show cancels the previous anchor's leave grace; it must run before
	// the new hover is published or that grace could still clear it.
	if c.preview != nil {
		c.preview.Show(trip, anchor)
	}

	c.mu.Lock()
	c.hovered = &trip
	subs := c.listenersLocked()
	c.mu.Unlock()

	for _, l := range subs {
		l.OnTripHover(trip, anchor)
	}
}

// Hovered returns the trip currently hovered, if any.
func (c *Controller) Hovered() (model.Trip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hovered == nil {
		return model.Trip{}, false
	}
	return *c.hovered, true
}

// LeaveAnchor is the pointer leaving a trip avatar or badge. With a
// preview the hover survives the move onto the panel; without one the
// hover ends immediately.
func (c *Controller) LeaveAnchor() {
	if c.preview != nil {
		c.preview.AnchorLeave()
		return
	}
	c.tripLeft()
}

func (c *Controller) EnterPopover() {
	if c.preview != nil {
		c.preview.PopoverEnter()
	}
}

// LeavePopover ends the hover.
func (c *Controller) LeavePopover() {
	if c.preview != nil {
		c.preview.PopoverLeave()
		return
	}
	c.tripLeft()
}

// Close ends any hover and detaches from the preview.
func (c *Controller) Close() {
	c.dismissHover()
	c.mu.Lock()
	release := c.releasePreview
	c.releasePreview = nil
	c.mu.Unlock()
	if release != nil {
		release()
	}
}

func (c *Controller) dismissHover() {
	if c.preview != nil {
		// the preview's close hook calls tripLeft
		c.preview.Close()
		return
	}
	c.tripLeft()
}

func (c *Controller) tripLeft() {
	c.mu.Lock()
	had := c.hovered != nil
	c.hovered = nil
	subs := c.listenersLocked()
	c.mu.Unlock()

	if !had {
		return
	}
	for _, l := range subs {
		l.OnTripLeave()
	}
}

func (c *Controller) listenersLocked() []Listener {
	out := make([]Listener, 0, len(c.subs))
	for _, s := range c.subs {
		out = append(out, s.l)
	}
	return out
}
