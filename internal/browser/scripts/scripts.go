// Package scripts holds the host-trusted JavaScript injected into the
// browser context.
//
// Templates are fixed and versioned. The only dynamic part is the arguments
// object, substituted as JSON for the placeholder. Vendor code is never
// concatenated into these templates; it only arrives through the script tag
// the loader appends.
//
// Every template is a zero-argument function expression that returns a
// promise of a JSON string envelope:
//
//	{"state":"fulfilled","value":"<JSON text>"}
//	{"state":"undefined"}
//	{"state":"rejected","error":"Error: ..."}
package scripts

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Version is bumped whenever a template's calling convention changes.
const Version = 1

const argsPlaceholder = "__SCRIPTBRIDGE_ARGS__"

var (
	//go:embed load_script.js
	loadTemplate string

	//go:embed execute_script.js
	executeTemplate string
)

// ErrMalformedResult is returned when a template's output is not an envelope.
var ErrMalformedResult = errors.New("malformed script result")

// LoadArgs are the loader template's arguments. The checksum may be any
// JSON value and is passed through as received.
type LoadArgs struct {
	ScriptSource string          `json:"script_source"`
	Checksum     json.RawMessage `json:"checksum"`
}

// ExecuteArgs are the executor template's arguments. Values are passed
// through untouched so absent payload fields stay undefined in the browser.
type ExecuteArgs struct {
	GlobalName   json.RawMessage `json:"global_name"`
	Program      json.RawMessage `json:"program"`
	Payload      json.RawMessage `json:"payload"`
	BlankPayload bool            `json:"blank_payload"`
}

// ScriptError is a rejection raised inside the browser context.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// RenderLoad returns the loader for args.
func RenderLoad(args LoadArgs) (string, error) {
	return render(loadTemplate, args)
}

// RenderExecute returns the executor for args.
func RenderExecute(args ExecuteArgs) (string, error) {
	return render(executeTemplate, args)
}

func render(tmpl string, args any) (string, error) {
	data, err := sonic.ConfigStd.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode script arguments: %w", err)
	}
	return strings.Replace(tmpl, argsPlaceholder, string(data), 1), nil
}

type envelope struct {
	State string `json:"state"`
	Value string `json:"value"`
	Error string `json:"error"`
}

// DecodeResult unpacks a template's envelope. A nil result with a nil error
// means the promise resolved with undefined. A rejection comes back as a
// *ScriptError.
func DecodeResult(raw string) (json.RawMessage, error) {
	var env envelope
	if err := sonic.ConfigStd.UnmarshalFromString(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}

	switch env.State {
	case "fulfilled":
		if !json.Valid([]byte(env.Value)) {
			return nil, fmt.Errorf("%w: value is not JSON", ErrMalformedResult)
		}
		return json.RawMessage(env.Value), nil
	case "undefined":
		return nil, nil
	case "rejected":
		return nil, &ScriptError{Message: env.Error}
	default:
		return nil, fmt.Errorf("%w: unknown state %q", ErrMalformedResult, env.State)
	}
}
