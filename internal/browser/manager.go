// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/config"
)

// Manager owns the browser process and creates sessions against it.
// Initialization is deferred until the first session is requested.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup

	initOnce sync.Once
	initErr  error
}

// NewManager creates a browser manager bound to the parent context.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if !m.cfg.Browser.Headless {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		if m.cfg.Browser.IgnoreTLSErrors {
			opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
		}
		for _, arg := range m.cfg.Browser.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
		m.logger.Info("Browser allocator initialized.",
			zap.Bool("headless", m.cfg.Browser.Headless))
	})
	return m.initErr
}

// NewSession launches a browser tab and returns a Collaborator bound to it.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, fmt.Errorf("browser manager initialization failed: %w", err)
	}

	s, err := newSession(m.allocCtx, m.cfg, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.wg.Add(1)

	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, s.id)
		m.mu.Unlock()
		m.wg.Done()
	}
	return s, nil
}

// Shutdown closes every open session and stops the browser process.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		if err := s.Close(); err != nil {
			m.logger.Warn("Session close failed during shutdown.", zap.Error(err))
		}
	}
	m.wg.Wait()

	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Browser manager shut down.")
}
