package browserworker

import (
	"context"

	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// keyInputCodes maps the small set of named keys the protocol exposes
// (spec.md §4.3 KEY_PRESS, plus Enter for PressEnter) to rod's input.Key.
var keyInputCodes = map[string]input.Key{
	"Enter":      input.Enter,
	"Escape":     input.Escape,
	"Tab":        input.Tab,
	"Backspace":  input.Backspace,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
}

// ClickViewport clicks at CSS-viewport coordinates with the default
// (left, single) button (spec.md §4.3 CLICK_VIEWPORT).
func (w *Worker) ClickViewport(ctx context.Context, vx, vy float64) error {
	mouse := w.currentPage(ctx).Mouse
	if err := mouse.MoveTo(proto.Point{X: vx, Y: vy}); err != nil {
		return err
	}
	return mouse.Click(proto.InputMouseButtonLeft, 1)
}

// ClearActiveInput clears the currently-focused input/textarea by setting
// its value/textContent to empty and firing input/change, per spec.md §4.2
// "post-click effects".
func (w *Worker) ClearActiveInput(ctx context.Context) error {
	const js = `() => {
		const el = document.activeElement;
		if (!el) return;
		if ('value' in el) {
			el.value = '';
		} else {
			el.textContent = '';
		}
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
	}`
	_, err := w.currentPage(ctx).Eval(js)
	return err
}

// TypeChar types a single rune into the focused element, matching the
// Click Resolver's per-character typing loop (spec.md §4.2). InsertText
// (CDP Input.insertText) is used rather than Keyboard.Type, since the
// latter only knows named key codes, not arbitrary runes.
func (w *Worker) TypeChar(ctx context.Context, ch rune) error {
	return w.currentPage(ctx).InsertText(string(ch))
}

// PressEnter presses the Enter key (spec.md §4.3 PRESS_ENTER).
func (w *Worker) PressEnter(ctx context.Context) error {
	return w.currentPage(ctx).Keyboard.Type(input.Enter)
}
