// internal/browser/dispatch.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// coveredProbeJS reports whether an overlay intercepts pointer events at
// the element's centre. Used before a direct dispatch so the failure is
// classified as obscured rather than a generic protocol error.
const coveredProbeJS = `((sel) => {
	const el = document.querySelector(sel);
	if (!el) return 'missing';
	const rect = el.getBoundingClientRect();
	if (rect.width <= 0 || rect.height <= 0) return 'hidden';
	const hit = document.elementFromPoint(rect.left + rect.width / 2, rect.top + rect.height / 2);
	if (hit && hit !== el && !el.contains(hit) && !hit.contains(el)) return 'covered';
	return 'clear';
})`

func (s *Session) selectorFor(target Target) (string, error) {
	if target.Generation != s.generation.Load() {
		return "", fmt.Errorf("%w: ref %q is from generation %d, current is %d",
			ErrStaleRef, target.Ref, target.Generation, s.generation.Load())
	}
	return fmt.Sprintf(`[%s=%q]`, refAttr, target.Ref), nil
}

// Dispatch performs the action against the target using the given mode.
// For extract actions the harvested text is returned.
func (s *Session) Dispatch(ctx context.Context, target Target, kind schemas.ActionKind, payload schemas.ResolvedPayload, mode DispatchMode) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	sel, err := s.selectorFor(target)
	if err != nil {
		return "", err
	}

	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()
	dispCtx, cancel := context.WithTimeout(opCtx, 30*time.Second)
	defer cancel()

	s.logger.Debug("Dispatching action.",
		zap.String("kind", string(kind)),
		zap.String("mode", string(mode)),
		zap.String("ref", target.Ref))

	switch kind {
	case schemas.ActionClick:
		return "", s.dispatchClick(dispCtx, sel, mode)
	case schemas.ActionType:
		return "", s.dispatchType(dispCtx, sel, payload.Text, mode)
	case schemas.ActionSelect:
		return "", s.dispatchSelect(dispCtx, sel, payload.Value, mode)
	case schemas.ActionExtract:
		return s.dispatchExtract(dispCtx, sel)
	case schemas.ActionScroll:
		return "", s.run(dispCtx, chromedp.ScrollIntoView(sel, chromedp.ByQuery))
	default:
		return "", fmt.Errorf("action kind %q is not dispatchable against an element", kind)
	}
}

func (s *Session) dispatchClick(ctx context.Context, sel string, mode DispatchMode) error {
	switch mode {
	case ModeDirect:
		if err := s.probeObscured(ctx, sel); err != nil {
			return err
		}
		return s.run(ctx, chromedp.Tasks{
			chromedp.ScrollIntoView(sel, chromedp.ByQuery),
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery),
		})
	case ModeScript:
		script := fmt.Sprintf(`document.querySelector(%q).click()`, sel)
		return s.run(ctx, chromedp.Evaluate(script, nil))
	case ModeKeyboard:
		return s.run(ctx, chromedp.Tasks{
			chromedp.Focus(sel, chromedp.ByQuery),
			chromedp.KeyEvent(kb.Enter),
		})
	default:
		return fmt.Errorf("unsupported click mode %q", mode)
	}
}

func (s *Session) dispatchType(ctx context.Context, sel, text string, mode DispatchMode) error {
	switch mode {
	case ModeDirect:
		return s.run(ctx, chromedp.Tasks{
			chromedp.ScrollIntoView(sel, chromedp.ByQuery),
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Clear(sel, chromedp.ByQuery),
			chromedp.SendKeys(sel, text, chromedp.ByQuery),
		})
	case ModeScript:
		// Set the value directly and fire input/change so frameworks
		// watching the field still observe the edit.
		script := fmt.Sprintf(`((sel, v) => {
			const el = document.querySelector(sel);
			el.value = v;
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
		})(%q, %q)`, sel, text)
		return s.run(ctx, chromedp.Evaluate(script, nil))
	case ModeKeyboard:
		tasks := chromedp.Tasks{
			chromedp.Focus(sel, chromedp.ByQuery),
			chromedp.Clear(sel, chromedp.ByQuery),
		}
		for _, r := range text {
			tasks = append(tasks, chromedp.KeyEvent(string(r)))
		}
		return s.run(ctx, tasks)
	default:
		return fmt.Errorf("unsupported type mode %q", mode)
	}
}

func (s *Session) dispatchSelect(ctx context.Context, sel, value string, mode DispatchMode) error {
	switch mode {
	case ModeDirect:
		return s.run(ctx, chromedp.SetValue(sel, value, chromedp.ByQuery))
	case ModeScript:
		script := fmt.Sprintf(`((sel, v) => {
			const el = document.querySelector(sel);
			el.value = v;
			el.dispatchEvent(new Event('change', { bubbles: true }));
		})(%q, %q)`, sel, value)
		return s.run(ctx, chromedp.Evaluate(script, nil))
	default:
		return fmt.Errorf("unsupported select mode %q", mode)
	}
}

func (s *Session) dispatchExtract(ctx context.Context, sel string) (string, error) {
	script := fmt.Sprintf(`((sel) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		if ('value' in el && el.value !== undefined && el.tagName !== 'DIV') return String(el.value);
		return el.innerText || el.textContent || '';
	})(%q)`, sel)

	var text *string
	if err := s.run(ctx, chromedp.Evaluate(script, &text)); err != nil {
		return "", err
	}
	if text == nil {
		return "", fmt.Errorf("%w: element vanished before extraction", ErrStaleRef)
	}
	return *text, nil
}

// ScrollIntoView brings the target into the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, target Target) error {
	sel, err := s.selectorFor(target)
	if err != nil {
		return err
	}
	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()
	return s.run(opCtx, chromedp.ScrollIntoView(sel, chromedp.ByQuery))
}

func (s *Session) probeObscured(ctx context.Context, sel string) error {
	var state string
	script := fmt.Sprintf("(%s)(%q)", coveredProbeJS, sel)
	if err := s.run(ctx, chromedp.Evaluate(script, &state)); err != nil {
		return err
	}
	switch state {
	case "missing":
		return fmt.Errorf("%w: element no longer present", ErrStaleRef)
	case "covered":
		return fmt.Errorf("%w: overlay intercepts pointer at element centre", ErrObscured)
	default:
		return nil
	}
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := chromedp.Run(ctx, actions...); err != nil {
		if s.ctx.Err() != nil {
			return ErrSessionClosed
		}
		return err
	}
	return nil
}
