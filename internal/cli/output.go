package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jacentio/shelf/catalog"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (catalog error or store failure)
	ExitCommandError = 2 // Usage error (bad flags, arguments or dataset file)
)

// Error codes reported in CLI responses.
const (
	ErrCodeGeneric       = "E001"
	ErrCodeValidation    = "E002"
	ErrCodeNotFound      = "E003"
	ErrCodeDeleteBlocked = "E004"
	ErrCodeDuplicate     = "E005"
	ErrCodeSeed          = "E006"
	ErrCodeConflict      = "E007"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode classifies a catalog error.
func errorCode(err error) string {
	var se *catalog.StageError
	if errors.As(err, &se) {
		return ErrCodeSeed
	}
	switch {
	case errors.Is(err, catalog.ErrDeleteBlocked):
		return ErrCodeDeleteBlocked
	case errors.Is(err, catalog.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, catalog.ErrDuplicate):
		return ErrCodeDuplicate
	case errors.Is(err, catalog.ErrValidationFailed):
		return ErrCodeValidation
	case errors.Is(err, catalog.ErrSeedResolution):
		return ErrCodeSeed
	case errors.Is(err, catalog.ErrConflict):
		return ErrCodeConflict
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose output (defaults to Writer)
	Verbose   bool
	RunID     string // Echoed in JSON responses when set
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// textRenderer is implemented by results with a human-readable form.
type textRenderer interface {
	renderText(w io.Writer) error
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
			RunID:  f.RunID,
		})
	}

	if r, ok := data.(textRenderer); ok {
		return r.renderText(f.Writer)
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
			RunID: f.RunID,
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if r, ok := details.(textRenderer); ok {
		return r.renderText(f.Writer)
	}
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should exit with.
func (f *OutputFormatter) Fail(message string, err error, details any) error {
	return f.fail(ExitFailure, message, err, details)
}

// FailUsage reports err as a usage error: the input given on the command
// line, not the catalog, is at fault.
func (f *OutputFormatter) FailUsage(message string, err error) error {
	return f.fail(ExitCommandError, message, err, nil)
}

func (f *OutputFormatter) fail(exit int, message string, err error, details any) error {
	code := errorCode(err)
	if outErr := f.Error(code, fmt.Sprintf("%s: %v", message, err), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, code, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
