// Package browsertest provides an in-memory browser for tests of code driving a browser.Page
package browsertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/sre-norns/viewshot/pkg/browser"
	"github.com/sre-norns/viewshot/pkg/viewport"
)

// Launcher hands out a single Session
type Launcher struct {
	Session *Session

	// Returned by Launch instead of the session when set
	Err error
}

func (l *Launcher) Launch(ctx context.Context) (browser.Session, error) {
	if l.Err != nil {
		return nil, l.Err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.Session.record("launch")
	return l.Session, nil
}

// Session records every call made to it and its page
type Session struct {
	// Computed styles by viewport name, then by testid + "/" + property
	Styles map[string]map[string]string

	// Fail the named operation (navigate, screenshot, ...) at the given viewport name
	FailOn map[string]string

	// Block the named operation until ctx is done
	BlockOn string

	lock     sync.Mutex
	calls    []string
	current  viewport.Viewport
	closed   int
	navigate []string
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) record(call string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.calls = append(s.calls, call)
}

// Calls returns every operation in the order it happened
func (s *Session) Calls() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]string(nil), s.calls...)
}

func (s *Session) Closed() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.closed
}

func (s *Session) Navigations() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]string(nil), s.navigate...)
}

func (s *Session) Page() browser.Page {
	return (*page)(s)
}

func (s *Session) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.closed++
	s.calls = append(s.calls, "close")
	return nil
}

type page Session

func (p *page) session() *Session {
	return (*Session)(p)
}

func (p *page) check(ctx context.Context, op string) error {
	s := p.session()
	s.lock.Lock()
	current := s.current
	failOn := s.FailOn[op]
	block := s.BlockOn == op
	s.lock.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if failOn != "" && failOn == current.Name {
		return fmt.Errorf("%s failed at %s", op, current.Name)
	}

	return nil
}

func (p *page) SetViewport(ctx context.Context, v viewport.Viewport) error {
	s := p.session()
	s.lock.Lock()
	s.current = v
	s.lock.Unlock()

	s.record("viewport:" + v.Name)
	return p.check(ctx, "viewport")
}

func (p *page) Navigate(ctx context.Context, url string) error {
	s := p.session()
	s.lock.Lock()
	s.navigate = append(s.navigate, url)
	s.lock.Unlock()

	s.record("navigate")
	return p.check(ctx, "navigate")
}

func (p *page) Settle(ctx context.Context, d time.Duration) error {
	p.session().record("settle")
	return p.check(ctx, "settle")
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	s := p.session()
	s.record("screenshot")
	if err := p.check(ctx, "screenshot"); err != nil {
		return nil, err
	}

	s.lock.Lock()
	v := s.current
	s.lock.Unlock()

	return Image(v)
}

func (p *page) ComputedStyle(ctx context.Context, testID, property string) (string, bool, error) {
	s := p.session()
	s.record("style:" + testID)
	if err := p.check(ctx, "style"); err != nil {
		return "", false, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	value, ok := s.Styles[s.current.Name][testID+"/"+property]
	return value, ok, nil
}

// Image is a small PNG, a tenth of the viewport size, standing in for a screenshot
func Image(v viewport.Viewport) ([]byte, error) {
	w, h := max(int(v.Width/10), 1), max(int(v.Height/10), 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
