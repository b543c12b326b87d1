package refresh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripcal/internal/config"
	"tripcal/internal/ics"
	"tripcal/internal/store"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//tripcal//test//EN
BEGIN:VEVENT
UID:trip-1@example.com
DTSTAMP:20251001T000000Z
SUMMARY:Hoi An
DTSTART;VALUE=DATE:20251110
DTEND;VALUE=DATE:20251113
X-TRIP-ID:7
X-CONVERSATION-NAME:Hoi An crew
END:VEVENT
BEGIN:VEVENT
UID:act-1@example.com
DTSTAMP:20251001T000000Z
SUMMARY:Lantern walk
DTSTART:20251111T120000Z
RELATED-TO:7
END:VEVENT
END:VCALENDAR
`

type feedServer struct {
	*httptest.Server
	empty atomic.Bool
	hits  atomic.Int32
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		if r.URL.Path == "/missing.ics" {
			http.NotFound(w, r)
			return
		}
		if fs.empty.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(strings.ReplaceAll(feed, "\n", "\r\n")))
	}))
	t.Cleanup(fs.Close)
	return fs
}

func newRefresher(t *testing.T, srv *feedServer, feeds ...config.ICSConfig) (*Refresher, *store.TripStore) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ICS = feeds
	st := store.New()
	loc := time.FixedZone("ICT", 7*60*60)
	r := New(cfg, loc, ics.NewFetcher(t.TempDir()).WithClient(srv.Client()), st)
	r.now = func() time.Time { return time.Date(2025, 11, 1, 9, 0, 0, 0, loc) }
	return r, st
}

func TestRunOnceLoadsTrips(t *testing.T) {
	srv := newFeedServer(t)
	r, st := newRefresher(t, srv, config.ICSConfig{ID: "crew", URL: srv.URL + "/crew.ics"})

	require.NoError(t, r.RunOnce(context.Background()))

	trips := st.All()
	require.Len(t, trips, 1)
	assert.Equal(t, "7", trips[0].ID)
	assert.Equal(t, "crew", trips[0].SourceID)
	assert.Equal(t, 12, trips[0].EndDate.Day())
	assert.Equal(t, 11, trips[0].ScheduleDate.Day())
	assert.Equal(t, 1, trips[0].SchedulesOnDate)
}

func TestRunOnceReportsFailingFeed(t *testing.T) {
	srv := newFeedServer(t)
	r, st := newRefresher(t, srv,
		config.ICSConfig{ID: "crew", URL: srv.URL + "/crew.ics"},
		config.ICSConfig{ID: "gone", URL: srv.URL + "/missing.ics"},
		config.ICSConfig{ID: "no-url"},
	)

	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "fetch gone")
	assert.Len(t, st.All(), 1)
	assert.Len(t, r.Sources(), 2)
}

func TestRunOnceKeepsPreviousTripsOnBadBody(t *testing.T) {
	srv := newFeedServer(t)
	r, st := newRefresher(t, srv, config.ICSConfig{ID: "crew", URL: srv.URL + "/crew.ics"})
	require.NoError(t, r.RunOnce(context.Background()))
	rev := st.Revision()

	srv.empty.Store(true)
	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "parse crew")
	assert.Len(t, st.All(), 1)
	assert.Equal(t, rev, st.Revision())
}

func TestRunOnceDropsRemovedFeeds(t *testing.T) {
	srv := newFeedServer(t)
	r, st := newRefresher(t, srv, config.ICSConfig{ID: "crew", URL: srv.URL + "/crew.ics"})
	require.NoError(t, r.RunOnce(context.Background()))

	r.cfg.ICS = nil
	require.NoError(t, r.RunOnce(context.Background()))
	assert.Empty(t, st.All())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	srv := newFeedServer(t)
	r, _ := newRefresher(t, srv)
	r.cfg.RefreshCron = "every now and then"

	_, err := r.Start(context.Background())
	assert.Error(t, err)
}

func TestStartRunsOnSchedule(t *testing.T) {
	srv := newFeedServer(t)
	r, st := newRefresher(t, srv, config.ICSConfig{ID: "crew", URL: srv.URL + "/crew.ics"})
	r.cfg.RefreshCron = "@every 1s"

	ctx, cancel := context.WithCancel(context.Background())
	done, err := r.Start(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(st.All()) == 1 }, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, srv.hits.Load(), int32(1))
}
