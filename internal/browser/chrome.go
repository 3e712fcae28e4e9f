package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/gatekeeper"
)

const windowSize = "1280,720"

// ChromeOptions configures how Chrome is started.
type ChromeOptions struct {
	// Bin is the Chrome binary. Empty lets the launcher find or download one.
	Bin string

	// ControlURL attaches to a running browser instead of launching one.
	ControlURL string

	// Debug shows the window and opens DevTools for the tab.
	Debug bool

	NavigationTimeout time.Duration
}

// Chrome is a single page in a Chrome instance driven over the DevTools
// protocol. Every request the page makes passes through the filter.
type Chrome struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	filter   Filter
	logger   *zap.Logger
	opts     ChromeOptions

	ctx    context.Context
	cancel context.CancelFunc
}

// NewChrome launches or attaches to Chrome and prepares the page.
func NewChrome(ctx context.Context, opts ChromeOptions, filter Filter, logger *zap.Logger) (*Chrome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 60 * time.Second
	}

	var lnch *launcher.Launcher
	controlURL := opts.ControlURL
	if controlURL == "" {
		bin, err := resolveBin(ctx, opts.Bin, logger)
		if err != nil {
			return nil, err
		}
		lnch = launcher.New().
			Bin(bin).
			Headless(!opts.Debug).
			Set(flags.Flag("window-size"), windowSize).
			Context(ctx)
		if opts.Debug {
			lnch = lnch.Set(flags.Flag("auto-open-devtools-for-tabs"))
		}

		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	lifetime, cancel := context.WithCancel(context.Background())
	c := &Chrome{
		launcher: lnch,
		filter:   filter,
		logger:   logger,
		opts:     opts,
		ctx:      lifetime,
		cancel:   cancel,
	}

	c.browser = rod.New().ControlURL(controlURL).Context(lifetime)
	if err := c.browser.Connect(); err != nil {
		c.shutdown()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		c.shutdown()
		return nil, fmt.Errorf("open page: %w", err)
	}
	c.page = page

	if err := c.overrideUserAgent(); err != nil {
		c.shutdown()
		return nil, err
	}
	c.intercept()
	c.watchConsole()

	logger.Info("Chrome ready",
		zap.String("control_url", controlURL),
		zap.Bool("headless", !opts.Debug))
	return c, nil
}

// resolveBin returns bin, or the managed Chromium path when bin is empty.
// The first call downloads the browser.
func resolveBin(ctx context.Context, bin string, logger *zap.Logger) (string, error) {
	if bin != "" {
		return bin, nil
	}
	path, err := newDownloader(ctx, logger).Get()
	if err != nil {
		return "", fmt.Errorf("get chrome: %w", err)
	}
	return path, nil
}

// newDownloader returns rod's browser downloader with its progress output
// sent to logger. Its default writes to stdout, which carries protocol lines.
func newDownloader(ctx context.Context, logger *zap.Logger) *launcher.Browser {
	b := launcher.NewBrowser()
	b.Context = ctx
	b.Logger = zap.NewStdLog(logger.Named("launcher"))
	return b
}

// Navigate loads url and waits for the load event.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	page := c.page.Context(ctx).Timeout(c.opts.NavigationTimeout)
	defer page.CancelTimeout()

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s: %w", url, err)
	}
	return nil
}

// Evaluate runs js in the page and awaits its promise.
func (c *Chrome) Evaluate(ctx context.Context, js string) (string, error) {
	res, err := c.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           "() => (" + strings.Trim(js, "\t\n\v\f\r ;") + "\n)()",
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	if res == nil || res.Value.Nil() {
		return "", nil
	}
	if s, ok := res.Value.Val().(string); ok {
		return s, nil
	}
	return res.Value.JSON("", ""), nil
}

// Close closes the page and, if it was launched here, the browser.
func (c *Chrome) Close() error {
	err := c.page.Close()
	if c.launcher != nil {
		_ = c.browser.Close()
	}
	c.shutdown()
	return err
}

// shutdown stops event handlers and kills a launched browser process.
func (c *Chrome) shutdown() {
	c.cancel()
	if c.launcher != nil {
		c.launcher.Kill()
		c.launcher.Cleanup()
	}
}

// overrideUserAgent reports the browser's own user agent without the
// headless marker.
func (c *Chrome) overrideUserAgent() error {
	version, err := proto.BrowserGetVersion{}.Call(c.browser)
	if err != nil {
		return fmt.Errorf("read user agent: %w", err)
	}

	ua := CleanUserAgent(version.UserAgent)
	if err := (proto.NetworkSetUserAgentOverride{UserAgent: ua}).Call(c.page); err != nil {
		return fmt.Errorf("override user agent: %w", err)
	}
	c.logger.Debug("User agent set", zap.String("user_agent", ua))
	return nil
}

// intercept pauses every request at both stages. The domain is enabled
// through rod so the event subscription keeps the patterns.
func (c *Chrome) intercept() {
	c.page.EnableDomain(&proto.FetchEnable{
		Patterns: []*proto.FetchRequestPattern{
			{URLPattern: "*", RequestStage: proto.FetchRequestStageRequest},
			{URLPattern: "*", RequestStage: proto.FetchRequestStageResponse},
		},
	})

	wait := c.page.Context(c.ctx).EachEvent(func(e *proto.FetchRequestPaused) {
		go c.handlePaused(e)
	})
	go wait()
}

func (c *Chrome) handlePaused(e *proto.FetchRequestPaused) {
	var err error
	switch {
	case e.ResponseErrorReason != "":
		err = proto.FetchContinueRequest{RequestID: e.RequestID}.Call(c.page)

	case e.ResponseHeaders != nil:
		headers, changed := c.filter.FilterHeaders(headersFromFetch(e.ResponseHeaders))
		if changed {
			err = proto.FetchContinueResponse{
				RequestID:       e.RequestID,
				ResponseHeaders: headersToFetch(headers),
			}.Call(c.page)
		} else {
			err = proto.FetchContinueRequest{RequestID: e.RequestID}.Call(c.page)
		}

	case c.filter.AllowRequest(e.Request.URL):
		err = proto.FetchContinueRequest{RequestID: e.RequestID}.Call(c.page)

	default:
		err = proto.FetchFailRequest{
			RequestID:   e.RequestID,
			ErrorReason: proto.NetworkErrorReasonBlockedByClient,
		}.Call(c.page)
	}

	if err != nil && c.ctx.Err() == nil {
		c.logger.Debug("Resuming paused request failed",
			zap.String("url", e.Request.URL),
			zap.Error(err))
	}
}

func (c *Chrome) watchConsole() {
	wait := c.page.Context(c.ctx).EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		c.logger.Debug("Console",
			zap.String("level", string(e.Type)),
			zap.String("message", stringifyConsoleArgs(e.Args)))
	})
	go wait()
}

var electronToken = regexp.MustCompile(`Electron/\S+\s*`)

// CleanUserAgent removes the markers that identify an automated browser.
func CleanUserAgent(ua string) string {
	ua = strings.ReplaceAll(ua, "HeadlessChrome", "Chrome")
	ua = electronToken.ReplaceAllString(ua, "")
	return strings.TrimSpace(ua)
}

func headersFromFetch(entries []*proto.FetchHeaderEntry) []gatekeeper.Header {
	headers := make([]gatekeeper.Header, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		headers = append(headers, gatekeeper.Header{Name: e.Name, Value: e.Value})
	}
	return headers
}

func headersToFetch(headers []gatekeeper.Header) []*proto.FetchHeaderEntry {
	entries := make([]*proto.FetchHeaderEntry, 0, len(headers))
	for _, h := range headers {
		entries = append(entries, &proto.FetchHeaderEntry{Name: h.Name, Value: h.Value})
	}
	return entries
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
