package browserworker

import "context"

// ScrollUniversal scrolls the page's root scrolling element and every
// nested scroll container intersecting the viewport and taller than 60px,
// by deltaPx in the given direction (spec.md §4.3 SCROLL_UNIVERSAL,
// §4.1 "first the page scrolling element, then every nested scroll-container
// intersecting the viewport and taller than 60 px"). The pixel delta is
// computed by the caller (internal/loop knows the viewport height); this is
// purely the DOM-side application of it.
func (w *Worker) ScrollUniversal(ctx context.Context, direction string, deltaPx int) error {
	sign := 1
	if direction == "up" {
		sign = -1
	}
	_, err := w.currentPage(ctx).Eval(scrollJS, sign*deltaPx)
	return err
}

const scrollJS = `(dy) => {
	const root = document.scrollingElement || document.documentElement;
	root.scrollBy(0, dy);

	const vh = window.innerHeight;
	const all = document.querySelectorAll('*');
	for (const el of all) {
		const style = window.getComputedStyle(el);
		const overflowY = style.overflowY;
		if (overflowY !== 'auto' && overflowY !== 'scroll') continue;
		const rect = el.getBoundingClientRect();
		if (rect.height <= 60) continue;
		if (rect.bottom < 0 || rect.top > vh) continue; // not intersecting viewport
		if (el.scrollHeight <= el.clientHeight) continue; // nothing to scroll
		el.scrollBy(0, dy);
	}
}`
