package sandbox

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed            = errors.New("sandbox runtime is closed")
	ErrNavigationBlocked = errors.New("navigation blocked by gatekeeper")
	ErrTimeout           = errors.New("execution timeout exceeded")
)

// Config defines sandbox configuration
type Config struct {
	Timeout       time.Duration // Bound on each synchronous slice of JS
	EnableConsole bool          // Allow console.log/warn/error
	ConsoleLimit  int           // Console entries retained for inspection
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error
	Message string    // Log message
	Time    time.Time // Timestamp
}

// RequestFilter decides whether the runtime may load a URL
type RequestFilter interface {
	AllowRequest(url string) bool
}

// Fetcher retrieves script source text
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// EvalError is an exception thrown, or a rejection raised, by evaluated code
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string {
	return e.Message
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		EnableConsole: true,
		ConsoleLimit:  200,
	}
}
