package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/browser"
	"github.com/GriffinCanCode/scriptbridge/internal/browser/scripts"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/ipc"
	"github.com/GriffinCanCode/scriptbridge/internal/session"
)

// Request kinds, used as metric labels.
const (
	KindInit    = "init"
	KindExecute = "execute"
)

// Handler turns one request into one response.
type Handler struct {
	state   *session.State
	engine  browser.Engine
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a request handler
func NewHandler(state *session.State, engine browser.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		state:  state,
		engine: engine,
		logger: logger,
	}
}

// WithMetrics attaches a metrics collector
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// Kind reports how req will be handled given the current session state.
func (h *Handler) Kind(req *ipc.Request) string {
	if !h.state.Initialized() || req.IsInit() {
		return KindInit
	}
	return KindExecute
}

// Handle runs req. Until a script is loaded every request is treated as an
// init request; afterwards a request carrying script_source reloads.
func (h *Handler) Handle(ctx context.Context, req *ipc.Request) (*ipc.Response, error) {
	if h.Kind(req) == KindInit {
		return h.initialize(ctx, req)
	}
	return h.execute(ctx, req)
}

func (h *Handler) initialize(ctx context.Context, req *ipc.Request) (*ipc.Response, error) {
	if !ipc.Truthy(req.ScriptSource) || !ipc.Truthy(req.Checksum) {
		return nil, ErrInvalidInitData
	}
	source, ok := ipc.StringValue(req.ScriptSource)
	if !ok {
		return nil, ErrInvalidInitData
	}

	// The source must be trusted before the tag is appended so the
	// gatekeeper lets the fetch through.
	source, err := h.state.Initialize(source)
	if err != nil {
		return nil, ErrInvalidInitData
	}
	// Integrity is not enforced; the checksum is only recorded.
	h.logger.Info("Loading script", zap.String("url", source), zap.ByteString("checksum", req.Checksum))

	js, err := scripts.RenderLoad(scripts.LoadArgs{ScriptSource: source, Checksum: req.Checksum})
	if err != nil {
		return nil, err
	}
	if _, err := h.evaluate(ctx, js); err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	h.metrics.IncScriptLoads()
	return &ipc.Response{Status: ipc.StatusReady}, nil
}

func (h *Handler) execute(ctx context.Context, req *ipc.Request) (*ipc.Response, error) {
	if !ipc.Truthy(req.GlobalName) || !ipc.Truthy(req.Program) || !ipc.Truthy(req.Payload) {
		return nil, ErrInvalidRequestData
	}

	js, err := scripts.RenderExecute(scripts.ExecuteArgs{
		GlobalName:   req.GlobalName,
		Program:      req.Program,
		Payload:      req.Payload,
		BlankPayload: ipc.Truthy(req.BlankPayload),
	})
	if err != nil {
		return nil, err
	}

	value, err := h.evaluate(ctx, js)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return &ipc.Response{Status: ipc.StatusResult, Response: value}, nil
}

func (h *Handler) evaluate(ctx context.Context, js string) (json.RawMessage, error) {
	raw, err := h.engine.Evaluate(ctx, js)
	if err != nil {
		return nil, err
	}
	return scripts.DecodeResult(raw)
}
