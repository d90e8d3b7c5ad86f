package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/wataru-taketani/feelcycle-hub-sub000/config"
)

// Browser is the narrow automation surface a session drives. Implemented
// by chromedp in production and by fakes in tests.
type Browser interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, expression string, out any) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// BrowserFactory opens a fresh browser. A session calls it once per
// attempt; instances are never reused across attempts.
type BrowserFactory func() (Browser, error)

type chromeBrowser struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewChromeBrowser launches a headless Chrome with a realistic client
// identity. The returned Browser owns the whole process tree; Close tears
// it all down.
func NewChromeBrowser(cfg *config.ScraperConfig) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1280, 2400),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so a broken Chrome install
	// fails the attempt instead of the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &chromeBrowser{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
	}, nil
}

func (b *chromeBrowser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := b.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *chromeBrowser) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := b.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (b *chromeBrowser) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := b.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q failed: %w", selector, err)
	}
	return nil
}

func (b *chromeBrowser) Click(ctx context.Context, selector string) error {
	if err := b.run(ctx, 10*time.Second, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

func (b *chromeBrowser) Evaluate(ctx context.Context, expression string, out any) error {
	if err := b.run(ctx, 30*time.Second, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("evaluate failed: %w", err)
	}
	return nil
}

func (b *chromeBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := b.run(ctx, 10*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

func (b *chromeBrowser) Close() error {
	b.cancelCtx()
	b.cancelAlloc()
	return nil
}
