package bridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/ipc"
	"github.com/GriffinCanCode/scriptbridge/internal/shared/id"
)

// Server reads requests from an input stream and writes one response line
// per request. Requests run concurrently; responses are written as they
// settle and carry the request's req_id.
type Server struct {
	handler *Handler
	reader  *ipc.Reader
	writer  *ipc.Writer
	logger  *zap.Logger
	metrics *monitoring.Metrics

	wg sync.WaitGroup
}

type frame struct {
	req *ipc.Request
	err error
}

// NewServer creates a server over in and out
func NewServer(handler *Handler, in io.Reader, out io.Writer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		handler: handler,
		reader:  ipc.NewReader(in),
		writer:  ipc.NewWriter(out),
		logger:  logger,
	}
}

// WithMetrics attaches a metrics collector
func (s *Server) WithMetrics(metrics *monitoring.Metrics) *Server {
	s.metrics = metrics
	return s
}

// AnnounceWaiting writes the unsolicited startup line.
func (s *Server) AnnounceWaiting() error {
	return s.writer.Write(&ipc.Response{Status: ipc.StatusWaitingForInit})
}

// Serve handles requests until the input ends or ctx is cancelled, then
// waits for in-flight requests. Requests still pending at EOF are not
// cancelled. Cancelling ctx cancels them and Serve returns ctx.Err().
func (s *Server) Serve(ctx context.Context) error {
	frames := make(chan frame)
	go s.read(ctx, frames)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()

		case f, ok := <-frames:
			if !ok {
				s.wg.Wait()
				return nil
			}
			if f.err != nil {
				if errors.Is(f.err, io.EOF) {
					s.logger.Info("Input closed, waiting for in-flight requests")
					continue
				}
				var frameErr *ipc.FrameError
				if errors.As(f.err, &frameErr) {
					s.metrics.IncDroppedFrames()
					s.logger.Warn("Dropping malformed input",
						zap.String("reason", frameErr.Reason),
						zap.String("line", frameErr.Excerpt()))
					continue
				}
				s.wg.Wait()
				return f.err
			}
			s.dispatch(ctx, f.req)
		}
	}
}

// read forwards frames until EOF or a read error, then closes frames.
func (s *Server) read(ctx context.Context, frames chan<- frame) {
	defer close(frames)
	for {
		req, err := s.reader.Next()
		select {
		case frames <- frame{req: req, err: err}:
		case <-ctx.Done():
			return
		}

		var frameErr *ipc.FrameError
		if err != nil && !errors.As(err, &frameErr) {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *ipc.Request) {
	kind := s.handler.Kind(req)
	logger := s.logger.With(
		zap.String("trace_id", id.NewTraceID().String()),
		zap.ByteString("req_id", req.ReqID),
		zap.String("kind", kind))
	timer := monitoring.NewTimer(s.metrics, kind)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		resp, err := s.handler.Handle(ctx, req)
		if err != nil {
			resp = &ipc.Response{Status: ipc.StatusError, Error: ErrorMessage(err)}
		}
		duration := timer.Stop(string(resp.Status))

		if err != nil {
			logger.Warn("Request failed", zap.Error(err), zap.Duration("duration", duration))
		} else {
			logger.Debug("Request completed",
				zap.String("status", string(resp.Status)),
				zap.Duration("duration", duration))
		}

		if err := s.writer.Write(resp.WithReqID(req)); err != nil {
			logger.Error("Failed to write response", zap.Error(err))
		}
	}()
}
