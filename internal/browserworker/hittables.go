package browserworker

import (
	"context"
	"encoding/json"

	"github.com/nerovaautomation/nerovaagent/internal/resolver"
)

// maxHittables is the default cap (spec.md §3 "at most max elements,
// default 1000, cap 5000").
const maxHittables = 1000

// Hittables walks the live DOM and returns the candidate click targets in
// the viewport (spec.md §4.3 GET_HITTABLES_VIEWPORT, §3 Hittable Element).
// This is the one place the DOM-walk mechanics spec.md §9 reserves for the
// browser worker actually live.
func (w *Worker) Hittables(ctx context.Context) ([]resolver.Hittable, error) {
	res, err := w.currentPage(ctx).Eval(hittablesJS, maxHittables)
	if err != nil {
		return nil, err
	}
	var out []resolver.Hittable
	if err := json.Unmarshal([]byte(res.Value.Str()), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// hittablesJS mirrors spec.md §3's Hittable Element invariants: html/head/
// body and full-viewport-spanning generic blocks are excluded; minSize is
// 8px; coordinates are integer CSS viewport pixels; selector preference is
// #id > [data-testid] > [aria-label] > a short nth-of-type chain. It returns
// a JSON string (rather than a structured object) so Eval's return value
// round-trips through gson cleanly regardless of rod's version.
const hittablesJS = `(max) => {
	const CLICKABLE_ROLES = new Set(['button','link','checkbox','radio','switch','tab','menuitem','option','textbox','combobox','searchbox']);
	const CLICKABLE_TAGS = new Set(['A','BUTTON','INPUT','SELECT','TEXTAREA','SUMMARY']);
	const vw = window.innerWidth, vh = window.innerHeight;
	const minSize = 8;

	function ariaRole(el) {
		const explicit = el.getAttribute('role');
		if (explicit) return explicit;
		switch (el.tagName) {
			case 'A': return el.hasAttribute('href') ? 'link' : 'generic';
			case 'BUTTON': return 'button';
			case 'INPUT': {
				const t = (el.getAttribute('type') || 'text').toLowerCase();
				if (t === 'checkbox') return 'checkbox';
				if (t === 'radio') return 'radio';
				if (t === 'submit' || t === 'button') return 'button';
				return 'textbox';
			}
			case 'SELECT': return 'combobox';
			case 'TEXTAREA': return 'textbox';
			case 'SUMMARY': return 'button';
			default: return 'generic';
		}
	}

	function accessibleName(el) {
		const label = el.getAttribute('aria-label');
		if (label) return label.trim().slice(0, 400);
		const text = (el.innerText || el.textContent || '').trim();
		if (text) return text.slice(0, 400);
		const placeholder = el.getAttribute('placeholder');
		if (placeholder) return placeholder.trim().slice(0, 400);
		const value = el.value;
		if (value) return String(value).trim().slice(0, 400);
		return '';
	}

	function preferredSelector(el) {
		if (el.id) return '#' + CSS.escape(el.id);
		const testid = el.getAttribute('data-testid');
		if (testid) return '[data-testid="' + testid + '"]';
		const label = el.getAttribute('aria-label');
		if (label) return '[aria-label="' + label + '"]';
		let chain = el.tagName.toLowerCase();
		const parent = el.parentElement;
		if (parent) {
			const siblings = Array.from(parent.children).filter(c => c.tagName === el.tagName);
			const idx = siblings.indexOf(el) + 1;
			chain += ':nth-of-type(' + idx + ')';
		}
		return chain;
	}

	function hitState(rect, cx, cy) {
		if (cx < 0 || cy < 0 || cx > vw || cy > vh) return 'offscreen_page';
		const top = document.elementFromPoint(cx, cy);
		if (!top) return 'occluded';
		return 'hittable';
	}

	function isFullViewportBlock(el, rect) {
		return el.tagName !== 'A' && el.tagName !== 'BUTTON' &&
			rect.width >= vw * 0.95 && rect.height >= vh * 0.95;
	}

	const out = [];
	const all = document.body.querySelectorAll('*');
	const counters = {};

	for (const el of all) {
		if (out.length >= max) break;
		const tag = el.tagName;
		if (tag === 'HTML' || tag === 'HEAD' || tag === 'BODY') continue;

		const role = ariaRole(el);
		const clickable = CLICKABLE_TAGS.has(tag) || CLICKABLE_ROLES.has(role) || el.onclick != null || el.getAttribute('tabindex') != null;
		if (!clickable) continue;

		const rect = el.getBoundingClientRect();
		if (rect.width < minSize || rect.height < minSize) continue;
		if (isFullViewportBlock(el, rect)) continue;

		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') continue;

		const cx = Math.round(rect.left + rect.width / 2);
		const cy = Math.round(rect.top + rect.height / 2);

		counters[role] = (counters[role] || 0) + 1;
		const id = role + '-' + counters[role];

		out.push({
			id: id,
			name: accessibleName(el),
			role: role,
			enabled: !el.disabled,
			hit_state: hitState(rect, cx, cy),
			center: [cx, cy],
			rect: [Math.round(rect.left), Math.round(rect.top), Math.round(rect.width), Math.round(rect.height)],
			selector: preferredSelector(el),
			href: el.getAttribute('href') || '',
			className: el.className && typeof el.className === 'string' ? el.className : '',
		});
	}

	return JSON.stringify(out);
}`
