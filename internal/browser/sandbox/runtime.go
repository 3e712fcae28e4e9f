package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Runtime is an in-process browser context. A single event-loop goroutine
// owns the goja VM; every touch of the VM is a task on that loop.
type Runtime struct {
	vm      *goja.Runtime
	config  Config
	filter  RequestFilter
	fetcher Fetcher
	logger  *zap.Logger

	tasks     chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Cancels in-flight script fetches on Close
	ctx    context.Context
	cancel context.CancelFunc

	// Owned by the loop goroutine
	timers    map[int64]*time.Timer
	nextTimer int64
	stringify goja.Callable
	dom       *DOM

	// Guards Interrupt against a slice that already finished
	interruptMu sync.Mutex
	generation  uint64

	locationMu sync.RWMutex
	location   string

	console   []LogEntry
	consoleMu sync.Mutex
}

type outcome struct {
	value string
	err   error
}

// New creates a runtime and starts its event loop
func New(config Config, filter RequestFilter, fetcher Fetcher, logger *zap.Logger) (*Runtime, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		vm:       goja.New(),
		config:   config,
		filter:   filter,
		fetcher:  fetcher,
		logger:   logger,
		tasks:    make(chan func(), 64),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		timers:   make(map[int64]*time.Timer),
		location: "about:blank",
	}

	// The loop is not running yet, so the VM can be set up from here.
	if err := r.setupGlobals(); err != nil {
		cancel()
		return nil, err
	}

	go r.loop()
	return r, nil
}

// Navigate records url as the current location once the gatekeeper allows
// it. No page content is rendered.
func (r *Runtime) Navigate(ctx context.Context, url string) error {
	if !r.filter.AllowRequest(url) {
		return fmt.Errorf("%w: %s", ErrNavigationBlocked, url)
	}

	applied := make(chan struct{})
	if !r.submit(func() {
		loc := r.vm.NewObject()
		loc.Set("href", url)
		r.vm.Set("location", loc)
		close(applied)
	}) {
		return ErrClosed
	}

	select {
	case <-applied:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrClosed
	}

	r.locationMu.Lock()
	r.location = url
	r.locationMu.Unlock()
	return nil
}

// Location returns the last navigated URL
func (r *Runtime) Location() string {
	r.locationMu.RLock()
	defer r.locationMu.RUnlock()
	return r.location
}

// Evaluate calls the function expression js and waits for its result. A
// returned promise is awaited. String results are returned as is; anything
// else is JSON encoded, with undefined becoming "".
func (r *Runtime) Evaluate(ctx context.Context, js string) (string, error) {
	source := "(" + strings.Trim(js, "\t\n\v\f\r ;") + "\n)()"
	result := make(chan outcome, 1)

	if !r.submit(func() {
		val, err := r.vm.RunString(source)
		if err != nil {
			result <- outcome{err: r.evalError(err)}
			return
		}
		r.await(val, result)
	}) {
		return "", ErrClosed
	}

	select {
	case out := <-result:
		return out.value, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-r.done:
		return "", ErrClosed
	}
}

// Console returns the retained console output
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry{}, r.console...)
}

// Close stops the event loop and cancels pending fetches and timers
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		close(r.done)
		<-r.stopped

		for id, t := range r.timers {
			t.Stop()
			delete(r.timers, id)
		}
	})
	return nil
}

func (r *Runtime) loop() {
	defer close(r.stopped)
	for {
		select {
		case task := <-r.tasks:
			r.run(task)
		case <-r.done:
			return
		}
	}
}

// run executes one task with the runaway guard armed
func (r *Runtime) run(task func()) {
	r.interruptMu.Lock()
	r.generation++
	gen := r.generation
	r.interruptMu.Unlock()

	guard := time.AfterFunc(r.config.Timeout, func() {
		r.interruptMu.Lock()
		defer r.interruptMu.Unlock()
		if r.generation == gen {
			r.vm.Interrupt(ErrTimeout)
		}
	})

	defer func() {
		guard.Stop()
		r.interruptMu.Lock()
		r.generation++
		r.vm.ClearInterrupt()
		r.interruptMu.Unlock()

		if p := recover(); p != nil {
			r.logger.Error("Sandbox task panicked", zap.Any("panic", p))
		}
	}()

	task()
}

// submit queues task on the loop. It must not be called from the loop.
func (r *Runtime) submit(task func()) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.tasks <- task:
		return true
	case <-r.done:
		return false
	}
}

// await delivers val, or the settlement of val if it is a promise
func (r *Runtime) await(val goja.Value, result chan<- outcome) {
	promise, ok := val.Export().(*goja.Promise)
	if !ok {
		result <- r.toOutcome(val)
		return
	}

	switch promise.State() {
	case goja.PromiseStateFulfilled:
		result <- r.toOutcome(promise.Result())
		return
	case goja.PromiseStateRejected:
		result <- outcome{err: &EvalError{Message: promise.Result().String()}}
		return
	}

	then, ok := goja.AssertFunction(val.ToObject(r.vm).Get("then"))
	if !ok {
		result <- outcome{err: errors.New("sandbox: promise has no then method")}
		return
	}

	onFulfilled := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		result <- r.toOutcome(call.Argument(0))
		return goja.Undefined()
	})
	onRejected := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		result <- outcome{err: &EvalError{Message: call.Argument(0).String()}}
		return goja.Undefined()
	})
	if _, err := then(val, onFulfilled, onRejected); err != nil {
		result <- outcome{err: r.evalError(err)}
	}
}

func (r *Runtime) toOutcome(val goja.Value) outcome {
	if s, ok := val.Export().(string); ok {
		return outcome{value: s}
	}

	encoded, err := r.stringify(goja.Undefined(), val)
	if err != nil {
		return outcome{err: r.evalError(err)}
	}
	if goja.IsUndefined(encoded) {
		return outcome{}
	}
	return outcome{value: encoded.String()}
}

// evalError converts goja failures into Go errors
func (r *Runtime) evalError(err error) error {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return &EvalError{Message: exc.Value().String()}
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("sandbox: %w", cause)
		}
	}
	return err
}

// setupGlobals configures global objects
func (r *Runtime) setupGlobals() error {
	// Not a Node.js environment
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())

	global := r.vm.GlobalObject()
	r.vm.Set("window", global)
	r.vm.Set("self", global)

	location := r.vm.NewObject()
	location.Set("href", "about:blank")
	r.vm.Set("location", location)

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(level, r.makeConsoleFunc(level))
	}
	r.vm.Set("console", console)

	r.vm.Set("setTimeout", r.setTimeout)
	r.vm.Set("clearTimeout", r.clearTimeout)

	r.dom = NewDOM()
	r.installDocument()

	stringify, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("stringify"))
	if !ok {
		return errors.New("sandbox: JSON.stringify unavailable")
	}
	r.stringify = stringify
	return nil
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !r.config.EnableConsole {
			return goja.Undefined()
		}

		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		msg := strings.Join(parts, " ")

		r.logger.Debug("Console", zap.String("level", level), zap.String("message", msg))

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		if limit := r.config.ConsoleLimit; limit > 0 && len(r.console) > limit {
			r.console = append([]LogEntry{}, r.console[len(r.console)-limit:]...)
		}
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

func (r *Runtime) setTimeout(call goja.FunctionCall) goja.Value {
	r.nextTimer++
	id := r.nextTimer

	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		return r.vm.ToValue(id)
	}

	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	// The callback can only run after this task returns, so registering the
	// timer after AfterFunc is safe.
	r.timers[id] = time.AfterFunc(delay, func() {
		r.submit(func() {
			if _, live := r.timers[id]; !live {
				return
			}
			delete(r.timers, id)
			if _, err := fn(goja.Undefined(), args...); err != nil {
				r.logger.Warn("Timer callback failed", zap.Error(r.evalError(err)))
			}
		})
	})
	return r.vm.ToValue(id)
}

func (r *Runtime) clearTimeout(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
	return goja.Undefined()
}
