package browser

import (
	"context"
	"time"

	"github.com/sre-norns/viewshot/pkg/viewport"
)

// Page is a single browser tab
type Page interface {
	// SetViewport resizes the page and toggles touch/mobile emulation
	SetViewport(ctx context.Context, v viewport.Viewport) error

	// Navigate to the url and wait for the load event
	Navigate(ctx context.Context, url string) error

	// Settle waits for animations and late rendering to finish
	Settle(ctx context.Context, d time.Duration) error

	// Screenshot of the current viewport, PNG encoded
	Screenshot(ctx context.Context) ([]byte, error)

	// ComputedStyle of the first element with the given data-testid
	ComputedStyle(ctx context.Context, testID, property string) (value string, found bool, err error)
}

// Session is a running browser with one open page
type Session interface {
	Page() Page

	// Close the browser. Safe to call more than once.
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}
