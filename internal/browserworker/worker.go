// Package browserworker is the in-process, optional Remote Driver worker:
// a thin command-to-rod-call translator against a real Chromium instance
// (SPEC_FULL §4.3 addition), for `nerovaagent serve --local-worker` to run
// end-to-end without a separate worker process. The DOM walk that produces
// Hittable Elements is the one place real browser mechanics live in this
// repo (spec.md §9 "Hittable extraction... stays inside the browser
// worker"); everything upstream only ever sees the resulting JSON shape.
package browserworker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nerovaautomation/nerovaagent/internal/nerovaerr"
)

// Worker owns one Chromium instance and its current page. cmd/run creates
// one for its single run; cmd/serve creates at most one per process and
// every run it starts shares it. The Control Loop only uses a Worker; it
// neither creates nor closes one.
type Worker struct {
	mu sync.Mutex

	browser *rod.Browser
	page    *rod.Page
	l       *launcher.Launcher
}

// Options configures the launched Chromium instance.
type Options struct {
	Headless    bool
	KeepBrowser bool // leave the launcher process running on Close (debugging)
}

// New launches a Chromium instance and opens a single blank page.
func New(opts Options) (*Worker, error) {
	l := launcher.New().Headless(opts.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, nerovaerr.Wrap(nerovaerr.CodeLaunchFailed, "launch chromium", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, nerovaerr.Wrap(nerovaerr.CodeLaunchFailed, "connect to chromium", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		return nil, nerovaerr.Wrap(nerovaerr.CodeLaunchFailed, "open page", err)
	}

	w := &Worker{browser: browser, page: page, l: l}
	if opts.KeepBrowser {
		w.l = nil // suppress launcher.Cleanup on Close
	}
	return w, nil
}

// Close closes the browser and kills the launched Chromium process. With
// KeepBrowser set it does neither, and Chromium keeps running.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.l == nil {
		return nil // KeepBrowser: leave Chromium running
	}
	err := w.browser.Close()
	w.l.Cleanup()
	return err
}

func (w *Worker) currentPage(ctx context.Context) *rod.Page {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.page.Context(ctx)
}

func (w *Worker) Navigate(ctx context.Context, url string) error {
	if err := w.currentPage(ctx).Navigate(url); err != nil {
		return nerovaerr.Wrap(nerovaerr.CodeScreenshotFailed, "navigate", err)
	}
	_ = w.currentPage(ctx).WaitDOMStable(300*time.Millisecond, 0.1)
	return nil
}

func (w *Worker) GoBack(ctx context.Context) error {
	return w.currentPage(ctx).NavigateBack()
}

func (w *Worker) GoForward(ctx context.Context) error {
	return w.currentPage(ctx).NavigateForward()
}

func (w *Worker) Reload(ctx context.Context) error {
	return w.currentPage(ctx).Reload()
}

// Wait blocks for the given duration, checking ctx between ticks so an
// abort/pause during a "wait" action still lands promptly.
func (w *Worker) Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// KeyPress sends a single named key (e.g. "Escape", "Tab") to the page.
func (w *Worker) KeyPress(ctx context.Context, key string) error {
	code, ok := keyInputCodes[key]
	if !ok {
		return fmt.Errorf("browserworker: unsupported key %q", key)
	}
	return w.currentPage(ctx).Keyboard.Type(code)
}

// ExtractDOM returns the page's current outer HTML (spec.md §4.3
// EXTRACT_DOM command).
func (w *Worker) ExtractDOM(ctx context.Context) (string, error) {
	html, err := w.currentPage(ctx).HTML()
	if err != nil {
		return "", err
	}
	return html, nil
}
