// internal/browser/snapshot.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// refAttr is the attribute stamped onto every element during a snapshot so
// later dispatches can address it without holding a protocol node ID.
const refAttr = "data-wp-ref"

const armMutationObserverJS = `(() => {
	if (window.__wpStable) return;
	window.__wpStable = { last: performance.now() };
	new MutationObserver(() => { window.__wpStable.last = performance.now(); })
		.observe(document.documentElement, { childList: true, subtree: true, attributes: true, characterData: true });
})()`

const quietSinceJS = `window.__wpStable ? (performance.now() - window.__wpStable.last) : 0`

// snapshotJS walks every element, stamps a ref attribute keyed by the
// given generation, and reports the fields the extractor needs. Overlay
// coverage is approximated with an elementFromPoint probe at the centre.
const snapshotJS = `((gen) => {
	const out = [];
	const els = document.querySelectorAll('*');
	let order = 0;
	for (const el of els) {
		const tag = el.tagName.toLowerCase();
		if (tag === 'script' || tag === 'style' || tag === 'noscript' ||
			tag === 'head' || tag === 'meta' || tag === 'link' || tag === 'title') {
			continue;
		}
		const ref = gen + ':' + order;
		el.setAttribute('data-wp-ref', ref);

		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const styleHidden = style.display === 'none' ||
			style.visibility === 'hidden' ||
			parseFloat(style.opacity) === 0;

		let covered = false;
		if (rect.width > 0 && rect.height > 0 && !styleHidden) {
			const cx = rect.left + rect.width / 2;
			const cy = rect.top + rect.height / 2;
			if (cx >= 0 && cy >= 0 && cx <= window.innerWidth && cy <= window.innerHeight) {
				const hit = document.elementFromPoint(cx, cy);
				covered = !!hit && hit !== el && !el.contains(hit) && !hit.contains(el);
			}
		}

		const attrs = {};
		for (const a of el.attributes) {
			if (a.name !== 'data-wp-ref') attrs[a.name] = a.value;
		}

		let text = '';
		for (const child of el.childNodes) {
			if (child.nodeType === Node.TEXT_NODE) text += child.textContent;
		}
		text = text.replace(/\s+/g, ' ').trim().slice(0, 64);

		out.push({
			ref: ref,
			tag_name: tag,
			attributes: attrs,
			text: text,
			box: { x: rect.left, y: rect.top, width: rect.width, height: rect.height },
			style_hidden: styleHidden,
			disabled: !!el.disabled,
			covered: covered,
			dom_order: order,
		});
		order++;
	}
	return out;
})`

// QueryDOM captures a fresh snapshot of the page's elements. Refs in the
// returned snapshot are valid until the next navigation or reload.
func (s *Session) QueryDOM(ctx context.Context) (*Snapshot, error) {
	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()

	gen := s.generation.Load()

	var nodes []schemas.RawNode
	script := fmt.Sprintf("(%s)(%d)", snapshotJS, gen)
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &nodes)); err != nil {
		if s.ctx.Err() != nil {
			return nil, ErrSessionClosed
		}
		return nil, fmt.Errorf("DOM snapshot failed: %w", err)
	}

	s.logger.Debug("DOM snapshot captured.",
		zap.Uint64("generation", gen),
		zap.Int("node_count", len(nodes)))

	return &Snapshot{
		Generation: gen,
		URL:        s.CurrentURL(),
		Nodes:      nodes,
	}, nil
}
