package utils

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/DataHenHQ/useragent"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"grocery-helpers/internal/types"
)

// BrowserSession is one Chrome instance driven through chromedp. It is owned
// by a single logical operation; Release tears the process down.
type BrowserSession struct {
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	actionTimeout time.Duration
	logger        types.Logger

	releaseOnce sync.Once
	releaseErr  error
}

// AcquireSession starts a browser process configured from config. The
// returned error is a *types.SessionError when Chrome cannot be started.
func AcquireSession(ctx context.Context, config *types.Config, logger types.Logger) (*BrowserSession, error) {
	ua := config.UserAgent
	if ua == "" {
		generated, err := useragent.Desktop()
		if err != nil {
			return nil, &types.SessionError{Err: fmt.Errorf("could not generate user agent: %w", err)}
		}
		ua = generated
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(ua),
		chromedp.WindowSize(1200, 600),
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if config.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(config.ProfileDir))
	}
	chromePath := config.ChromePath
	if chromePath == "" {
		chromePath = findChromeBinary()
	}
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Debugf),
		chromedp.WithErrorf(logger.Debugf),
	)

	// Running with no actions launches the process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, &types.SessionError{Err: err}
	}

	logger.Debugf("Browser session started (headless=%v, profile=%q)", config.Headless, config.ProfileDir)

	return &BrowserSession{
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		actionTimeout: config.ActionTimeout,
		logger:        logger,
	}, nil
}

// Release terminates the browser process. Calling it again, or on a nil
// session, is a no-op.
func (s *BrowserSession) Release() error {
	if s == nil {
		return nil
	}
	s.releaseOnce.Do(func() {
		s.releaseErr = chromedp.Cancel(s.ctx)
		s.cancelBrowser()
		s.cancelAlloc()
		s.logger.Debug("Browser session released")
	})
	return s.releaseErr
}

func (s *BrowserSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := s.ctx
	if s.actionTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(s.ctx, s.actionTimeout)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url in the session's tab
func (s *BrowserSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the tab's location
func (s *BrowserSession) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read current url: %w", err)
	}
	return location, nil
}

// HTML returns the current rendered document
func (s *BrowserSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

// Click clicks the first element matching selector
func (s *BrowserSession) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// SelectAll focuses selector and presses Ctrl+A
func (s *BrowserSession) SelectAll(ctx context.Context, selector string) error {
	err := s.run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
	)
	if err != nil {
		return fmt.Errorf("failed to select contents of %s: %w", selector, err)
	}
	return nil
}

// SendKeys types keys into selector
func (s *BrowserSession) SendKeys(ctx context.Context, selector string, keys string) error {
	if err := s.run(ctx, chromedp.SendKeys(selector, keys, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to send keys to %s: %w", selector, err)
	}
	return nil
}

// Evaluate runs script in the page and unmarshals its result into res (which may be nil)
func (s *BrowserSession) Evaluate(ctx context.Context, script string, res interface{}) error {
	if err := s.run(ctx, chromedp.Evaluate(script, res)); err != nil {
		return fmt.Errorf("failed to execute JavaScript: %w", err)
	}
	return nil
}

// findChromeBinary locates a Chrome/Chromium binary, honouring CHROME_BIN.
// An empty result lets chromedp use its own lookup.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}
	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
