// Package capture renders the calendar UI to a PNG with a headless browser.
// The server exposes the result at /preview.png so dashboards and e-paper
// frames that cannot run the UI can still show the month grid.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// Defaults sized for the month grid; settleDelay absorbs late paints after
// the readiness marker flips.
const (
	DefaultWidth  = 1280
	DefaultHeight = 960

	// DefaultReadySelector matches the marker the embedded UI sets once the
	// grid has been painted from current state.
	DefaultReadySelector = `[data-ready="true"]`

	DefaultTimeout = 30 * time.Second
	settleDelay    = 500 * time.Millisecond
)

var (
	errNoURL    = errors.New("capture: URL is required")
	errNoOutput = errors.New("capture: OutputPath is required")
)

// Options configures a single screenshot run.
type Options struct {
	// URL of the page to render, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath receives the PNG.
	OutputPath string

	// ReadySelector is the CSS selector whose visibility signals that the
	// page has finished rendering. Empty means DefaultReadySelector.
	ReadySelector string

	// Viewport in pixels; zero values fall back to the defaults.
	Width  int
	Height int

	// Timeout bounds the whole run, navigation included.
	Timeout time.Duration
}

// withDefaults fills unset fields so callers only state what they care
// about.
func (o Options) withDefaults() Options {
	if o.ReadySelector == "" {
		o.ReadySelector = DefaultReadySelector
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// MonthViewPNG drives a headless browser to opts.URL, waits until the ready
// selector becomes visible plus a short settle delay, and writes a full-page
// PNG to opts.OutputPath.
func MonthViewPNG(parentCtx context.Context, opts Options) error {
	if opts.URL == "" {
		return errNoURL
	}
	if opts.OutputPath == "" {
		return errNoOutput
	}
	opts = opts.withDefaults()

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, opts.Timeout)
	defer cancelTimeout()

	png, err := screenshot(ctx, opts)
	if err != nil {
		return fmt.Errorf("capture %s: %w", opts.URL, err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: write %s: %w", opts.OutputPath, err)
	}
	return nil
}

func screenshot(ctx context.Context, opts Options) ([]byte, error) {
	var png []byte
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.ReadySelector, chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		chromedp.FullScreenshot(&png, 100),
	)
	return png, err
}
