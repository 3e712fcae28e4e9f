package bridge

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/session"
)

// lineBuffer collects output and signals after the first line.
type lineBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	once  sync.Once
	first chan struct{}
}

func newLineBuffer() *lineBuffer {
	return &lineBuffer{first: make(chan struct{})}
}

func (b *lineBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	n, err := b.buf.Write(p)
	b.mu.Unlock()
	b.once.Do(func() { close(b.first) })
	return n, err
}

func (b *lineBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSuffix(b.buf.String(), "\n"), "\n")
}

func TestServerAnnounceWaiting(t *testing.T) {
	out := newLineBuffer()
	server := NewServer(NewHandler(session.New(), new(MockEngine), nil), strings.NewReader(""), out, nil)

	require.NoError(t, server.AnnounceWaiting())
	assert.Equal(t, []string{`{"status":"waiting_for_init"}`}, out.Lines())
}

func TestServerDropsMalformedFrames(t *testing.T) {
	input := strings.Join([]string{
		`not json`,
		`[1,2,3]`,
		``,
		`{"req_id":`,
		`{"req_id":2}`,
	}, "\n")

	metrics := monitoring.NewMetrics()
	engine := new(MockEngine)
	handler := NewHandler(session.New(), engine, nil).WithMetrics(metrics)
	out := newLineBuffer()
	server := NewServer(handler, strings.NewReader(input), out, nil).WithMetrics(metrics)

	require.NoError(t, server.Serve(context.Background()))

	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.JSONEq(t, `{"status":"error","error":"invalid init data","req_id":2}`, lines[0])

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DroppedFrames))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(KindInit, "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))
}

func TestServerEchoesReqIDVerbatim(t *testing.T) {
	input := strings.Join([]string{
		`{"req_id":"abc-1"}`,
		`{"req_id":{"nested":[1]}}`,
		`{}`,
	}, "\n") + "\n"

	out := newLineBuffer()
	server := NewServer(NewHandler(session.New(), new(MockEngine), nil), strings.NewReader(input), out, nil)
	require.NoError(t, server.Serve(context.Background()))

	lines := out.Lines()
	require.Len(t, lines, 3)
	assert.ElementsMatch(t, []string{
		`{"status":"error","req_id":"abc-1","error":"invalid init data"}`,
		`{"status":"error","req_id":{"nested":[1]},"error":"invalid init data"}`,
		`{"status":"error","error":"invalid init data"}`,
	}, lines)
}

func TestServerRespondsOutOfOrder(t *testing.T) {
	out := newLineBuffer()
	engine := new(MockEngine)

	// The slow call settles only after another response has been written.
	engine.On("Evaluate", mock.Anything, jsContaining(`"program":"slow"`)).
		Run(func(mock.Arguments) { <-out.first }).
		Return(`{"state":"fulfilled","value":"\"slow\""}`, nil)
	engine.On("Evaluate", mock.Anything, jsContaining(`"program":"fast"`)).
		Return(`{"state":"fulfilled","value":"\"fast\""}`, nil)

	handler, _ := readyHandler(t, engine)
	input := `{"req_id":1,"global_name":"_v","program":"slow","payload":{}}` + "\n" +
		`{"req_id":2,"global_name":"_v","program":"fast","payload":{}}` + "\n"
	server := NewServer(handler, strings.NewReader(input), out, nil)

	require.NoError(t, server.Serve(context.Background()))

	lines := out.Lines()
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"status":"result","response":"fast","req_id":2}`, lines[0])
	assert.JSONEq(t, `{"status":"result","response":"slow","req_id":1}`, lines[1])
}

func TestServerContextCancel(t *testing.T) {
	started := make(chan struct{})
	engine := new(MockEngine)
	engine.On("Evaluate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.Canceled)

	handler, _ := readyHandler(t, engine)
	inR, inW := io.Pipe()
	defer inW.Close()

	out := newLineBuffer()
	server := NewServer(handler, inR, out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	_, err := io.WriteString(inW, `{"req_id":1,"global_name":"_v","program":"p","payload":{}}`+"\n")
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the engine")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.JSONEq(t, `{"status":"error","error":"execute: context canceled","req_id":1}`, lines[0])
}

func TestServerPipeRoundTrip(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Evaluate", mock.Anything, jsContaining(loaderMarker)).Return(undefinedResult, nil)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	server := NewServer(NewHandler(session.New(), engine, nil), inR, outW, nil)

	done := make(chan error, 1)
	go func() { done <- server.Serve(context.Background()) }()

	responses := bufio.NewReader(outR)
	_, err := io.WriteString(inW, `{"req_id":1,"script_source":"//example.com/a.js","checksum":"abc"}`+"\n")
	require.NoError(t, err)

	line, err := responses.ReadString('\n')
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ready","req_id":1}`, line)

	require.NoError(t, inW.Close())
	require.NoError(t, <-done)
}
