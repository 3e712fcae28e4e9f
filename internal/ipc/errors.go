package ipc

import "fmt"

const maxQuotedLine = 256

// FrameError reports an input line that could not be decoded. The reader
// skips such lines; no response is written for them.
type FrameError struct {
	Line   []byte
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}

// Excerpt returns the start of the offending line for logging.
func (e *FrameError) Excerpt() string {
	if len(e.Line) <= maxQuotedLine {
		return string(e.Line)
	}
	return string(e.Line[:maxQuotedLine]) + "..."
}
