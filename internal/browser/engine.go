package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/browser/sandbox"
	"github.com/GriffinCanCode/scriptbridge/internal/gatekeeper"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/config"
)

// Engine is the browser context requests run against.
type Engine interface {
	// Navigate loads url and waits until the page has loaded.
	Navigate(ctx context.Context, url string) error

	// Evaluate calls the zero-argument function expression js, awaits the
	// promise it returns and yields the resolved string. Non-string results
	// are JSON encoded; undefined yields "".
	Evaluate(ctx context.Context, js string) (string, error)

	// Close releases the context and anything it launched.
	Close() error
}

// Filter decides which requests the page may make and rewrites response
// headers. *gatekeeper.Gatekeeper implements it.
type Filter interface {
	AllowRequest(url string) bool
	FilterHeaders(headers []gatekeeper.Header) ([]gatekeeper.Header, bool)
}

var (
	_ Engine = (*Chrome)(nil)
	_ Engine = (*sandbox.Runtime)(nil)
)

// Open starts the engine selected by cfg.
func Open(ctx context.Context, cfg *config.Config, filter Filter, logger *zap.Logger) (Engine, error) {
	switch cfg.Browser.Engine {
	case config.EngineChrome:
		return NewChrome(ctx, ChromeOptions{
			Bin:               cfg.Browser.Bin,
			ControlURL:        cfg.Browser.ControlURL,
			Debug:             cfg.DebugMode(),
			NavigationTimeout: cfg.Browser.NavigationTimeout,
		}, filter, logger.Named("chrome"))

	case config.EngineSandbox:
		sbConfig := sandbox.DefaultConfig()
		sbConfig.Timeout = cfg.Sandbox.Timeout
		fetcher := sandbox.NewHTTPFetcher(cfg.Sandbox.FetchRetries, cfg.Browser.NavigationTimeout)
		return sandbox.New(sbConfig, filter, fetcher, logger.Named("sandbox"))

	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Browser.Engine)
	}
}
