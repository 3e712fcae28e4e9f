package bridge

import (
	"errors"
	"strings"

	"github.com/GriffinCanCode/scriptbridge/internal/browser/sandbox"
	"github.com/GriffinCanCode/scriptbridge/internal/browser/scripts"
)

var (
	// ErrInvalidInitData rejects an init request without script_source or checksum.
	ErrInvalidInitData = errors.New("invalid init data")

	// ErrInvalidRequestData rejects an execution request without global_name,
	// program or payload.
	ErrInvalidRequestData = errors.New("invalid request data")
)

const jsErrorPrefix = "Error: "

// ErrorMessage is the text reported to the caller for err. Failures raised
// inside the page keep their JavaScript message minus the generic prefix.
func ErrorMessage(err error) string {
	var scriptErr *scripts.ScriptError
	if errors.As(err, &scriptErr) {
		return strings.TrimPrefix(scriptErr.Message, jsErrorPrefix)
	}

	var evalErr *sandbox.EvalError
	if errors.As(err, &evalErr) {
		return strings.TrimPrefix(evalErr.Message, jsErrorPrefix)
	}

	return strings.TrimPrefix(err.Error(), jsErrorPrefix)
}
