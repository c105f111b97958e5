// Package capture takes screenshots of target websites in a headless Chrome.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	defaultTimeout = 45 * time.Second
	viewportWidth  = 1280
	viewportHeight = 800
)

var ErrUnsupportedURL = errors.New("only http and https targets can be captured")

type Config struct {
	// ControlURL is the DevTools websocket of a running browser. When empty a
	// local headless Chrome is launched on first use.
	ControlURL string
	Timeout    time.Duration
}

// Browser is a lazily started, reusable Chrome connection.
type Browser struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func New(cfg Config, logger *slog.Logger) *Browser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{cfg: cfg, logger: logger}
}

// ValidateTarget parses target and rejects anything but http(s).
func ValidateTarget(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parsing target: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, target)
	}
	return u, nil
}

func (b *Browser) ensure() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching chrome: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if b.launcher != nil {
			b.launcher.Kill()
			b.launcher = nil
		}
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}
	b.browser = browser
	b.logger.Info("browser connected", "control_url", controlURL)
	return browser, nil
}

// Capture loads target in a fresh incognito context and returns a PNG of the
// viewport.
func (b *Browser) Capture(ctx context.Context, target string) ([]byte, error) {
	u, err := ValidateTarget(target)
	if err != nil {
		return nil, err
	}
	browser, err := b.ensure()
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	defer incognito.Close()

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	p := page.Context(ctx)

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1.0,
	}).Call(p); err != nil {
		b.logger.Warn("failed to set viewport", "error", err)
	}

	if err := p.Navigate(u.String()); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", u, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", u, err)
	}

	data, err := p.Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot of %s: %w", u, err)
	}
	return data, nil
}

// Close disconnects and stops a launched browser.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
	return err
}
