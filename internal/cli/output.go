package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"
)

const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the chain has problems or the operation reported failure
	ExitCommandError = 2 // bad flags, unreachable store, unreadable fixture
)

// ExitError carries the process exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that are not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

type CLIResponse struct {
	Status string      `json:"status"` // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Result writes data as JSON, or calls text to render it for humans.
func (f *OutputFormatter) Result(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.writeJSON(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Fail reports err in the configured format and returns it with an exit code.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)
	if f.Format == "json" {
		cliErr := &CLIError{Code: code, Message: err.Error()}
		var cerr *trip.ContinuityError
		if errors.As(err, &cerr) {
			cliErr.Details = cerr.Context()
		}
		if werr := f.writeJSON(CLIResponse{Status: "error", Error: cliErr}); werr != nil {
			return werr
		}
	}
	return WrapExitError(exit, message, err)
}

func (f *OutputFormatter) writeJSON(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func classify(err error) (string, int) {
	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr):
		return "command_error", exitErr.Code
	case xerrors.Is(err, xerrors.ErrInvariantViolation):
		return "invariant_violation", ExitFailure
	case xerrors.Is(err, xerrors.ErrNotFound):
		return "not_found", ExitFailure
	case xerrors.Is(err, xerrors.ErrInvalidInput), xerrors.Is(err, xerrors.ErrBadRequest):
		return "invalid_input", ExitCommandError
	case xerrors.Is(err, xerrors.ErrAlreadyDeleted):
		return "already_deleted", ExitFailure
	case xerrors.Is(err, xerrors.ErrLockTimeout):
		return "lock_timeout", ExitFailure
	default:
		return "internal", ExitCommandError
	}
}

func fmtKm(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
