package gatekeeper

import (
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
)

const (
	// HomeURL is the page the browser context is parked on.
	HomeURL = "https://voice.google.com/about"

	// DevToolsPrefix matches DevTools frontend resources.
	DevToolsPrefix = "devtools://"

	// CSPHeader is the response header blanked by FilterHeaders.
	CSPHeader = "content-security-policy"
)

// StaticAllowedURLs are the application pages the browser may always load.
var StaticAllowedURLs = []string{
	"https://voice.google.com/",
	"https://voice.google.com/u/0/about",
	"https://voice.google.com/about",
}

// SourceProvider exposes the currently trusted script URL.
type SourceProvider interface {
	AllowedScriptSource() string
}

// Header is one response header.
type Header struct {
	Name  string
	Value string
}

// Gatekeeper filters browser requests and response headers.
type Gatekeeper struct {
	source  SourceProvider
	static  map[string]struct{}
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a gatekeeper that trusts source's script URL plus staticURLs.
// With no staticURLs, StaticAllowedURLs is used.
func New(source SourceProvider, logger *zap.Logger, staticURLs ...string) *Gatekeeper {
	if len(staticURLs) == 0 {
		staticURLs = StaticAllowedURLs
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	static := make(map[string]struct{}, len(staticURLs))
	for _, u := range staticURLs {
		static[u] = struct{}{}
	}

	return &Gatekeeper{
		source: source,
		static: static,
		logger: logger,
	}
}

// WithMetrics attaches a metrics collector
func (g *Gatekeeper) WithMetrics(metrics *monitoring.Metrics) *Gatekeeper {
	g.metrics = metrics
	return g
}

// AllowRequest reports whether the browser may fetch url.
func (g *Gatekeeper) AllowRequest(url string) bool {
	allowed := g.allowed(url)
	g.metrics.RecordGatekeeperDecision(allowed)
	if !allowed {
		g.logger.Debug("Blocked browser request", zap.String("url", url))
	}
	return allowed
}

func (g *Gatekeeper) allowed(url string) bool {
	if src := g.source.AllowedScriptSource(); src != "" && url == src {
		return true
	}
	if _, ok := g.static[url]; ok {
		return true
	}
	return strings.HasPrefix(url, DevToolsPrefix)
}

// FilterHeaders blanks any content-security-policy header. It returns the
// input unchanged and false when there is nothing to strip; otherwise a new
// slice and true.
func (g *Gatekeeper) FilterHeaders(headers []Header) ([]Header, bool) {
	idx := -1
	for i, h := range headers {
		if strings.EqualFold(h.Name, CSPHeader) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return headers, false
	}

	out := make([]Header, len(headers))
	copy(out, headers)
	for i := idx; i < len(out); i++ {
		if strings.EqualFold(out[i].Name, CSPHeader) {
			out[i].Value = ""
		}
	}

	g.metrics.IncCSPStripped()
	return out, true
}
