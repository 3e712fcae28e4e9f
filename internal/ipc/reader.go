package ipc

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// Reader splits an input stream into requests, one JSON object per line.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next request. A malformed line yields a *FrameError and
// the caller may keep reading. io.EOF marks the end of input.
func (r *Reader) Next() (*Request, error) {
	for {
		line, err := r.r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			// A final line without a trailing newline is still a frame;
			// the EOF surfaces on the following call.
			return ParseRequest(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
	}
}
