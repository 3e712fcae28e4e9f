package ipc

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/bytedance/sonic"
)

// Status is the status field of a response line.
type Status string

const (
	StatusReady          Status = "ready"
	StatusResult         Status = "result"
	StatusWaitingForInit Status = "waiting_for_init"
	StatusError          Status = "error"
)

// Request is one decoded input line. Either an init request (script_source,
// checksum) or an execution request (global_name, program, payload).
type Request struct {
	ReqID        json.RawMessage `json:"req_id,omitempty"`
	ScriptSource json.RawMessage `json:"script_source,omitempty"`
	Checksum     json.RawMessage `json:"checksum,omitempty"`
	GlobalName   json.RawMessage `json:"global_name,omitempty"`
	Program      json.RawMessage `json:"program,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	BlankPayload json.RawMessage `json:"blank_payload,omitempty"`
}

// Response is one output line.
type Response struct {
	Status   Status          `json:"status"`
	ReqID    json.RawMessage `json:"req_id,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// IsInit reports whether the request explicitly asks to (re)load a script.
func (r *Request) IsInit() bool {
	return Truthy(r.ScriptSource)
}

// WithReqID returns a copy of the response correlated to req.
func (r Response) WithReqID(req *Request) *Response {
	if req != nil {
		r.ReqID = req.ReqID
	}
	return &r
}

// ParseRequest decodes one framed line. The line must hold a JSON object.
func ParseRequest(line []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &FrameError{Line: line, Reason: "not a JSON object"}
	}

	var req Request
	if err := sonic.ConfigStd.Unmarshal(trimmed, &req); err != nil {
		return nil, &FrameError{Line: line, Reason: err.Error()}
	}
	return &req, nil
}

// Truthy mirrors JavaScript truthiness for a raw JSON value. Absent, null,
// false, 0 and "" are falsy.
func Truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}

	switch v[0] {
	case 'n': // null
		return false
	case 'f': // false
		return false
	case 't', '{', '[':
		return true
	case '"':
		return !bytes.Equal(v, []byte(`""`))
	default:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return true
		}
		return f != 0
	}
}

// StringValue decodes raw as a JSON string.
func StringValue(raw json.RawMessage) (string, bool) {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 || v[0] != '"' {
		return "", false
	}
	var s string
	if err := sonic.ConfigStd.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}
