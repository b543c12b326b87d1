package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"tripcal/internal/calendar"
	"tripcal/internal/config"
	appLog "tripcal/internal/log"
	"tripcal/internal/model"
	"tripcal/internal/popover"
	"tripcal/internal/store"
)

// viewCacheTTL bounds how long a rendered month is reused. The key also
// carries the store revision, so a refresh invalidates immediately.
const viewCacheTTL = 30 * time.Second

//go:embed templates/*.html
var embeddedTemplates embed.FS

//go:embed static
var embeddedStatic embed.FS

// Server serves the month calendar as JSON and HTML.
type Server struct {
	cfg         *config.Config
	debug       bool
	loc         *time.Location
	store       *store.TripStore
	previewPath string
	now         func() time.Time

	mux  *http.ServeMux
	tmpl *template.Template

	viewMu    sync.RWMutex
	viewCache map[viewKey]viewCacheEntry
}

type viewKey struct {
	month    string
	today    string
	revision uint64
}

type viewCacheEntry struct {
	view      calendar.MonthView
	updatedAt time.Time
}

// NewServer constructs a Server reading trips from st. previewPath is the
// snapshot served at /preview.png.
func NewServer(cfg *config.Config, st *store.TripStore, previewPath string, debug bool) *Server {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}

	s := &Server{
		cfg:         cfg,
		debug:       debug,
		loc:         loc,
		store:       st,
		previewPath: previewPath,
		now:         time.Now,
		mux:         http.NewServeMux(),
		tmpl:        template.Must(template.New("").Funcs(templateFuncs(cfg)).ParseFS(embeddedTemplates, "templates/*.html")),
		viewCache:   make(map[viewKey]viewCacheEntry),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "debug", s.debug)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// an empty username or password disables auth
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tripcal", charset="UTF-8"`)
			writeJSON(w, http.StatusUnauthorized, &AppError{Type: "unauthorized", Message: "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/trips", s.handleTrips)
	s.mux.HandleFunc("GET /api/trips/by-date", s.handleTripsByDate)
	s.mux.HandleFunc("POST /api/popover/position", s.handlePopoverPosition)
	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.Handle("GET /static/", s.staticFileServer())
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// controllerFor builds a month cursor from the month and nav query
// parameters. An empty month means the current month.
func (s *Server) controllerFor(r *http.Request, extra ...calendar.Option) (*calendar.Controller, error) {
	q := r.URL.Query()

	opts := append([]calendar.Option{
		calendar.WithClock(s.now),
		calendar.WithLocation(s.loc),
	}, extra...)
	if m := q.Get("month"); m != "" {
		month, err := calendar.ParseMonth(m, s.loc)
		if err != nil {
			return nil, errBadRequest("month must be YYYY-MM", err)
		}
		opts = append(opts, calendar.WithMonth(month))
	}
	nav, err := calendar.ParseNav(q.Get("nav"))
	if err != nil {
		return nil, errBadRequest("nav must be prev, next or today", err)
	}

	ctrl := calendar.NewController(opts...)
	ctrl.Apply(nav)
	return ctrl, nil
}

// monthView renders the controller's month, reusing a cached view while
// the store is unchanged.
func (s *Server) monthView(ctrl *calendar.Controller) calendar.MonthView {
	cursor := ctrl.Cursor()
	key := viewKey{
		month:    cursor.Format(calendar.MonthLayout),
		today:    calendar.DateKey(s.now().In(s.loc)),
		revision: s.store.Revision(),
	}
	now := time.Now()

	s.viewMu.RLock()
	entry, ok := s.viewCache[key]
	s.viewMu.RUnlock()
	if ok && now.Sub(entry.updatedAt) < viewCacheTTL {
		return entry.view
	}

	// Feeds only deliver trips, so the legacy per-day event markers have
	// no source here and the map stays nil.
	from, to := calendar.VisibleRange(cursor)
	view := ctrl.View(s.store.Window(from, to), nil)

	s.viewMu.Lock()
	for k, e := range s.viewCache {
		if k.revision != key.revision || now.Sub(e.updatedAt) >= viewCacheTTL {
			delete(s.viewCache, k)
		}
	}
	s.viewCache[key] = viewCacheEntry{view: view, updatedAt: now}
	s.viewMu.Unlock()

	return view
}

// calendarResponse is the JSON shape of /api/calendar.
type calendarResponse struct {
	calendar.MonthView
	Timezone  string    `json:"timezone"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// handleCalendar returns one month's grid.
//
// GET /api/calendar?month=2025-11&nav=next
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controllerFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer ctrl.Close()

	writeJSON(w, http.StatusOK, calendarResponse{
		MonthView: s.monthView(ctrl),
		Timezone:  s.loc.String(),
		UpdatedAt: s.store.UpdatedAt(),
	})
}

// tripsResponse is the JSON shape of /api/trips.
type tripsResponse struct {
	Month string       `json:"month"`
	From  string       `json:"from"`
	To    string       `json:"to"`
	Trips []model.Trip `json:"trips"`
}

// handleTrips returns the trips overlapping the visible window of a month
// (previous month through next month).
func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controllerFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer ctrl.Close()

	cursor := ctrl.Cursor()
	from, to := calendar.VisibleRange(cursor)
	writeJSON(w, http.StatusOK, tripsResponse{
		Month: cursor.Format(calendar.MonthLayout),
		From:  calendar.DateKey(from),
		To:    calendar.DateKey(to),
		Trips: s.store.Window(from, to),
	})
}

// dateClickResponse is what a click on a grid day reports.
type dateClickResponse struct {
	Day   model.CalendarDay `json:"day"`
	Trips []model.Trip      `json:"trips"`
}

// handleTripsByDate returns the trips starting on one day, the payload of
// a date click.
//
// GET /api/trips/by-date?date=2025-11-10
func (s *Server) handleTripsByDate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, r, errBadRequest("date is required", nil))
		return
	}
	date, err := calendar.ParseDate(raw, s.loc)
	if err != nil {
		writeError(w, r, errBadRequest("date must be YYYY-MM-DD", err))
		return
	}

	ctrl := calendar.NewController(
		calendar.WithClock(s.now),
		calendar.WithLocation(s.loc),
		calendar.WithMonth(date),
	)
	defer ctrl.Close()

	var resp *dateClickResponse
	cancel := ctrl.Subscribe(calendar.ListenerFuncs{
		DateClick: func(day model.CalendarDay, trips []model.Trip) {
			if trips == nil {
				trips = []model.Trip{}
			}
			resp = &dateClickResponse{Day: day, Trips: trips}
		},
	})
	defer cancel()

	// ClickDate reads the index of the controller's own last view, so
	// this one bypasses the view cache. No event markers, as in monthView.
	from, to := calendar.VisibleRange(ctrl.Cursor())
	view := ctrl.View(s.store.Window(from, to), nil)
	key := calendar.DateKey(date)
	for _, cell := range view.Cells {
		if cell.Key == key {
			ctrl.ClickDate(cell.CalendarDay)
			break
		}
	}
	if resp == nil {
		writeError(w, r, errNotFound("date is not on the calendar"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// positionRequest is the body of POST /api/popover/position. A missing
// popover size uses the configured panel size; a missing padding uses the
// configured padding.
type positionRequest struct {
	Anchor   popover.Rect  `json:"anchor"`
	Popover  *popover.Size `json:"popover,omitempty"`
	Viewport popover.Size  `json:"viewport"`
	Padding  *float64      `json:"padding,omitempty"`
}

func (s *Server) handlePopoverPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, errBadRequest("invalid JSON body", err))
		return
	}
	if req.Viewport.Width <= 0 || req.Viewport.Height <= 0 {
		writeError(w, r, errBadRequest("viewport width and height must be positive", nil))
		return
	}

	panel := popover.Size{Width: s.cfg.Popover.Width, Height: s.cfg.Popover.Height}
	if req.Popover != nil {
		panel = *req.Popover
	}
	padding := s.cfg.Popover.Padding
	if req.Padding != nil {
		padding = *req.Padding
	}

	writeJSON(w, http.StatusOK, popover.ComputePosition(req.Anchor, panel, req.Viewport, padding))
}

// pageData feeds templates/calendar.html.
type pageData struct {
	View      calendar.MonthView
	Weekdays  []string
	Weeks     [][]calendar.Cell
	Popover   config.PopoverConfig
	Layout    pageLayout
	States    stateNames
	Hover     *hoverData
	Timezone  string
	UpdatedAt time.Time
}

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// handleCalendarPage renders the month as HTML. The root element carries
// data-ready="true" once rendered, which the snapshot waits for.
//
// With hover=<trip id> the page is rendered with that trip's preview open,
// positioned for a vw x vh viewport.
//
// GET /calendar?month=2025-11&hover=<trip id>&vw=1280&vh=960
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	hover, err := s.parseHover(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var extra []calendar.Option
	if hover != nil {
		extra = append(extra, calendar.WithPreview(hover.preview))
	}

	ctrl, err := s.controllerFor(r, extra...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer ctrl.Close()

	view := s.monthView(ctrl)
	data := pageData{
		View:      view,
		Weekdays:  weekdays,
		Weeks:     weeksOf(view.Cells),
		Popover:   s.cfg.Popover,
		Layout:    layout,
		States:    panelStates,
		Timezone:  s.loc.String(),
		UpdatedAt: s.store.UpdatedAt(),
	}
	if hover != nil {
		if data.Hover, err = hover.render(ctrl, view); err != nil {
			writeError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "calendar.html", data); err != nil {
		appLog.Error("render calendar page failed", err, "month", view.Month)
	}
}

func weeksOf(cells []calendar.Cell) [][]calendar.Cell {
	weeks := make([][]calendar.Cell, 0, len(cells)/7)
	for i := 0; i+7 <= len(cells); i += 7 {
		weeks = append(weeks, cells[i:i+7])
	}
	return weeks
}

func templateFuncs(cfg *config.Config) template.FuncMap {
	return template.FuncMap{
		"groupName": func(t model.Trip) string {
			if t.ConversationName == "" {
				return cfg.UnnamedGroup
			}
			return t.ConversationName
		},
		"avatar": func(t model.Trip) string {
			return t.DisplayAvatar(cfg.PlaceholderAvatar)
		},
		"dateKey": calendar.DateKey,
		"join":    strings.Join,
	}
}

func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static files not available", http.StatusServiceUnavailable)
		})
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// handlePreview serves the last snapshot from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.previewPath)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}
