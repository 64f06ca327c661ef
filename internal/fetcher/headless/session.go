package headless

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// SessionConfig controls browser session lifecycle.
type SessionConfig struct {
	UserAgent string
	// Headless launches the browser without a display. On, except when
	// debugging a source that blocks headless clients.
	Headless bool
	// CooldownAfterKill is how long to wait after tearing down browser
	// processes before anything chrome-shaped is started again. Sources
	// that throttle per-client need the pause to let the old sessions
	// age out.
	CooldownAfterKill time.Duration
	// WarmupAfterLaunch is the settle time after relaunching the
	// companion browser before a new automated session opens.
	WarmupAfterLaunch time.Duration
	// CompanionBrowser, when set, names a browser binary relaunched in
	// the foreground after every recycle. Some sources serve automation
	// checks to hosts with no interactive browser running.
	CompanionBrowser string
}

// Session is a live browser the fetcher drives. It owns the allocator
// and browser contexts and is handed out by a Manager.
type Session struct {
	browser       context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// Context returns the browser context new tabs derive from.
func (s *Session) Context() context.Context { return s.browser }

// Healthy reports whether the browser still answers a trivial script
// evaluation. A dead renderer or a hung devtools connection fails this.
func (s *Session) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tab, cancelTab := chromedp.NewContext(s.browser)
	defer cancelTab()
	var out int
	err := chromedp.Run(tab, chromedp.Evaluate("1+1", &out))
	return err == nil && out == 2
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	if s.cancelBrowser != nil {
		s.cancelBrowser()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
}

// Manager hands out browser sessions and recycles them when the retry
// layer reports transport trouble. Recycling is deliberately heavy: the
// session is closed, stray browser processes are killed, and the replace
// happens only after a cooldown.
type Manager struct {
	cfg    SessionConfig
	logger *zap.Logger

	mu      sync.Mutex
	current *Session

	// test seams
	open    func(ctx context.Context) (*Session, error)
	healthy func(ctx context.Context, s *Session) bool
	kill    func()
	launch  func()
	sleep   func(ctx context.Context, d time.Duration)
}

// NewManager constructs a Manager.
func NewManager(cfg SessionConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CooldownAfterKill == 0 {
		cfg.CooldownAfterKill = 20 * time.Second
	}
	if cfg.WarmupAfterLaunch == 0 {
		cfg.WarmupAfterLaunch = 10 * time.Second
	}
	m := &Manager{cfg: cfg, logger: logger}
	m.open = m.openSession
	m.healthy = func(ctx context.Context, s *Session) bool { return s.Healthy(ctx) }
	m.kill = m.killStrayBrowsers
	m.launch = m.launchCompanion
	m.sleep = sleepCtx
	return m
}

// Acquire returns the live session, opening one on first use and
// replacing one that stopped answering.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if m.healthy(ctx, m.current) {
			return m.current, nil
		}
		m.logger.Warn("browser session unhealthy, replacing")
		m.current.Close()
		m.current = nil
	}

	sess, err := m.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening browser session: %w", err)
	}
	m.current = sess
	return sess, nil
}

// Recycle tears the current session down and replaces it after a
// cooldown. The retry layer calls this on transport failures, where the
// browser itself is the usual suspect.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.logger.Info("quitting current browser session")
		m.current.Close()
		m.current = nil
	}

	m.logger.Info("killing stray browser processes")
	m.kill()
	m.sleep(ctx, m.cfg.CooldownAfterKill)

	if m.cfg.CompanionBrowser != "" {
		m.launch()
		m.sleep(ctx, m.cfg.WarmupAfterLaunch)
	}

	sess, err := m.open(ctx)
	if err != nil {
		return fmt.Errorf("reopening browser session: %w", err)
	}
	m.current = sess
	m.logger.Info("browser session recycled")
	return nil
}

// Close releases the current session, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}

func (m *Manager) openSession(ctx context.Context) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if m.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser now so a broken binary surfaces here, not on
	// the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	return &Session{
		browser:       browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// killStrayBrowsers terminates leftover browser processes by name.
// Crashed automated sessions leave orphaned renderers behind that hold
// profile locks and memory.
func (m *Manager) killStrayBrowsers() {
	if err := exec.Command("pkill", "-f", "chrom").Run(); err != nil {
		// Exit status 1 just means nothing matched.
		m.logger.Debug("pkill finished", zap.Error(err))
	}
}

func (m *Manager) launchCompanion() {
	cmd := exec.Command(m.cfg.CompanionBrowser)
	if err := cmd.Start(); err != nil {
		m.logger.Warn("companion browser failed to start",
			zap.String("binary", m.cfg.CompanionBrowser),
			zap.Error(err),
		)
		return
	}
	// Detach; the companion lives until the next recycle kills it.
	go func() { _ = cmd.Wait() }()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
