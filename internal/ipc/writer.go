package ipc

import (
	"io"
	"sync"

	"github.com/bytedance/sonic"
)

// Writer serializes responses onto an output stream, one per line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes resp and writes it as a single line.
func (w *Writer) Write(resp *Response) error {
	data, err := sonic.ConfigStd.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(data)
	return err
}
