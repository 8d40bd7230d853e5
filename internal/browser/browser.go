// internal/browser/browser.go
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// Sentinel errors reported by a Collaborator. The executor classifies
// failures with errors.Is against these.
var (
	// ErrStaleRef means the element handle belongs to an earlier snapshot
	// generation and must be re-resolved.
	ErrStaleRef = errors.New("browser: stale element reference")
	// ErrObscured means an overlay intercepts pointer events at the
	// element's location.
	ErrObscured = errors.New("browser: element obscured")
	// ErrNavigation means the page failed to load or the load was aborted.
	ErrNavigation = errors.New("browser: navigation failure")
	// ErrSessionClosed means the underlying browser session is gone.
	ErrSessionClosed = errors.New("browser: session closed")
)

// DispatchMode selects how an action reaches the page. Modes form the
// fallback ladder the executor walks when a dispatch fails.
type DispatchMode string

const (
	// ModeDirect uses native input dispatch (trusted events).
	ModeDirect DispatchMode = "direct"
	// ModeScript drives the element through injected JavaScript.
	ModeScript DispatchMode = "script"
	// ModeKeyboard focuses the element and synthesizes key events.
	ModeKeyboard DispatchMode = "keyboard"
)

// Target is a resolved element handle. Generation pins it to the snapshot
// that produced it; dispatching against an older generation fails with
// ErrStaleRef.
type Target struct {
	Ref        string
	Generation uint64
}

// Snapshot is one consistent read of the page's element tree.
type Snapshot struct {
	Generation uint64
	URL        string
	Nodes      []schemas.RawNode
}

// StableOptions tune WaitForStable. Zero values fall back to the
// session's configured defaults.
type StableOptions struct {
	// Quiet is how long the DOM must go without mutations.
	Quiet time.Duration
	// Timeout bounds the whole wait.
	Timeout time.Duration
}

// Collaborator is the live-page surface the engine drives. A single
// implementation backs it with a Chrome DevTools session; tests substitute
// scripted fakes.
type Collaborator interface {
	// Navigate loads the URL and waits for the page to stabilize. On
	// success the snapshot generation advances, invalidating prior refs.
	Navigate(ctx context.Context, url string) error

	// QueryDOM captures a fresh snapshot of the page's elements.
	QueryDOM(ctx context.Context) (*Snapshot, error)

	// Dispatch performs the action against the target using the given
	// mode. For extract actions the harvested text is returned.
	Dispatch(ctx context.Context, target Target, kind schemas.ActionKind, payload schemas.ResolvedPayload, mode DispatchMode) (string, error)

	// WaitForStable blocks until the DOM has been quiet for opts.Quiet or
	// opts.Timeout elapses.
	WaitForStable(ctx context.Context, opts StableOptions) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Reload re-navigates the current URL. Advances the generation.
	Reload(ctx context.Context) error

	// ScrollIntoView brings the target into the viewport.
	ScrollIntoView(ctx context.Context, target Target) error

	// ClearSessionState drops cookies and storage for the current origin.
	ClearSessionState(ctx context.Context) error

	// Generation returns the current snapshot generation.
	Generation() uint64

	// Close tears the session down.
	Close() error
}
