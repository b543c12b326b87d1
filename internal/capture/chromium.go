package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Default snapshot parameters. The viewport fits one month page with room
// for an open trip preview.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 960
	DefaultTimeoutSec = 30
)

// PreviewPath is where the last snapshot is written and served from.
func PreviewPath(debug bool) string {
	if debug {
		return "./cache/preview.png"
	}
	return "/var/lib/tripcal/preview.png"
}

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar?month=2025-11".
	URL string

	// OutputPath is where the PNG is written. Parent directories are
	// created.
	OutputPath string

	// Width and Height are the viewport in pixels; zero selects the
	// defaults.
	Width  int
	Height int

	// Username / Password are sent as HTTP basic auth when set.
	Username string
	Password string

	// Timeout bounds the entire capture. Zero selects DefaultTimeoutSec.
	Timeout time.Duration
}

// CaptureCalendarPNG drives a headless Chromium via chromedp to opts.URL,
// waits until the month page marks itself rendered with
// data-ready="true", and writes a full-page PNG.
func CaptureCalendarPNG(parentCtx context.Context, opts CaptureOptions) error {
	if opts.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
	}
	if h := authHeaders(opts.Username, opts.Password); h != nil {
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(h))
	}
	tasks = append(tasks,
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// let avatars finish painting
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: create output dir: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	return nil
}

func authHeaders(username, password string) network.Headers {
	if username == "" || password == "" {
		return nil
	}
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return network.Headers{"Authorization": "Basic " + token}
}
