package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMonthViewPNGValidation(t *testing.T) {
	ctx := context.Background()

	if err := MonthViewPNG(ctx, Options{OutputPath: "/tmp/out.png"}); !errors.Is(err, errNoURL) {
		t.Errorf("missing URL: %v", err)
	}
	if err := MonthViewPNG(ctx, Options{URL: "http://127.0.0.1:1/"}); !errors.Is(err, errNoOutput) {
		t.Errorf("missing output path: %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	got := Options{URL: "http://127.0.0.1:8080/", OutputPath: "out.png"}.withDefaults()

	if got.ReadySelector != DefaultReadySelector {
		t.Errorf("ready selector = %q", got.ReadySelector)
	}
	if got.Width != DefaultWidth || got.Height != DefaultHeight {
		t.Errorf("viewport = %dx%d", got.Width, got.Height)
	}
	if got.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v", got.Timeout)
	}

	custom := Options{
		URL:           "http://127.0.0.1:8080/",
		OutputPath:    "out.png",
		ReadySelector: "#grid.done",
		Width:         800,
		Height:        480,
		Timeout:       5 * time.Second,
	}.withDefaults()
	if custom.ReadySelector != "#grid.done" || custom.Width != 800 || custom.Height != 480 || custom.Timeout != 5*time.Second {
		t.Errorf("explicit values overwritten: %+v", custom)
	}
}
