// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	cdpnetwork "github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/webpilot/internal/config"
)

// Session is a Collaborator backed by a single Chrome tab over the
// DevTools protocol.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	// limiter paces dispatches so pages are not hammered faster than a
	// human could plausibly drive them.
	limiter *rate.Limiter

	// generation advances on every navigation or reload. Element refs
	// carry the generation that produced them.
	generation atomic.Uint64

	mu         sync.RWMutex
	currentURL string

	onClose   func()
	closeOnce sync.Once
}

var _ Collaborator = (*Session)(nil)

func newSession(allocCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()

	ctx, cancel := chromedp.NewContext(allocCtx)

	limit := rate.Inf
	if cfg.Browser.DispatchRate > 0 {
		limit = rate.Limit(cfg.Browser.DispatchRate)
	}

	s := &Session{
		id:      sessionID,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.Named("session").With(zap.String("session_id", sessionID)),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}

	// Start the tab eagerly so the first Navigate does not pay the
	// process spawn cost inside its own timeout.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser tab: %w", err)
	}

	s.logger.Debug("Session created.")
	return s, nil
}

// Navigate loads the URL and waits for the page to stabilize. The snapshot
// generation advances on success.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.cfg.Browser.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: navigation timed out after %s: %v", ErrNavigation, navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("%w: %v", ErrNavigation, err)
	}

	s.generation.Add(1)
	s.mu.Lock()
	s.currentURL = url
	s.mu.Unlock()

	if err := s.WaitForStable(opCtx, StableOptions{}); err != nil {
		if opCtx.Err() != nil {
			return opCtx.Err()
		}
		s.logger.Warn("Page stabilization failed after navigation (non-critical).", zap.Error(err))
	}
	return nil
}

// Reload re-navigates the current page and advances the generation.
func (s *Session) Reload(ctx context.Context) error {
	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()

	if err := chromedp.Run(opCtx, chromedp.Reload()); err != nil {
		return fmt.Errorf("%w: reload failed: %v", ErrNavigation, err)
	}
	s.generation.Add(1)

	if err := s.WaitForStable(opCtx, StableOptions{}); err != nil && opCtx.Err() != nil {
		return opCtx.Err()
	}
	return nil
}

// WaitForStable blocks until the DOM has gone quiet. Quiet means the page
// reported readyState complete and no mutations were observed for the
// configured window.
func (s *Session) WaitForStable(ctx context.Context, opts StableOptions) error {
	quiet := opts.Quiet
	if quiet <= 0 {
		quiet = s.cfg.Browser.StabilizeQuiet
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Browser.StabilizeTimeout
	}

	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()
	stabCtx, cancel := context.WithTimeout(opCtx, timeout)
	defer cancel()

	if err := chromedp.Run(stabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if opCtx.Err() != nil {
			return opCtx.Err()
		}
		s.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
	}

	// Arm a MutationObserver and poll the time since the last mutation.
	if err := chromedp.Run(stabCtx, chromedp.Evaluate(armMutationObserverJS, nil)); err != nil {
		s.logger.Debug("Could not arm mutation observer.", zap.Error(err))
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stabCtx.Done():
			return fmt.Errorf("page did not stabilize within %s: %w", timeout, stabCtx.Err())
		case <-ticker.C:
			var sinceMs float64
			if err := chromedp.Run(stabCtx, chromedp.Evaluate(quietSinceJS, &sinceMs)); err != nil {
				continue
			}
			if time.Duration(sinceMs)*time.Millisecond >= quiet {
				return nil
			}
		}
	}
}

// Screenshot captures the current viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()

	var buf []byte
	if err := chromedp.Run(opCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

// ClearSessionState drops cookies and web storage so a retry starts from
// a clean slate.
func (s *Session) ClearSessionState(ctx context.Context) error {
	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()

	tasks := chromedp.Tasks{
		cdpnetwork.ClearBrowserCookies(),
		chromedp.Evaluate(`try { localStorage.clear(); sessionStorage.clear(); } catch (e) {}`, nil),
	}
	if err := chromedp.Run(opCtx, tasks); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	s.logger.Debug("Session state cleared.")
	return nil
}

// Generation returns the current snapshot generation.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}

// CurrentURL returns the last successfully navigated URL.
func (s *Session) CurrentURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentURL
}

// Close tears the tab down. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("Session closed.")
	})
	return nil
}

// combineContext derives a context canceled when either parent is done.
func combineContext(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
