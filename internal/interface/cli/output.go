package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/music-school-hub/student-registry/internal/domain/notification"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The store rejected or failed the operation
	ExitCommandError = 2 // Bad input, missing confirmation, unusable config
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error

	// Reported is set when the formatter already wrote the failure.
	Reported bool
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

// reportedError marks a failure the formatter has already printed.
func reportedError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message, Reported: true}
}

// IsReported reports whether err was already written to the user.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics and notifications in text mode
	Verbose   bool
}

// CLIResponse is the JSON document written by every command in json mode.
type CLIResponse struct {
	Status        string                      `json:"status"` // "ok" or "error"
	Data          any                         `json:"data,omitempty"`
	Error         *CLIError                   `json:"error,omitempty"`
	Notifications []notification.Notification `json:"notifications,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result. In text mode data is printed with
// fmt.Println semantics and notifications go to ErrWriter.
func (f *OutputFormatter) Success(data any, notes []notification.Notification) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:        "ok",
			Data:          data,
			Notifications: notes,
		})
	}

	f.printNotifications(notes)
	if data != nil {
		fmt.Fprintln(f.Writer, data)
	}
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, notes []notification.Notification) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:        "error",
			Error:         &CLIError{Code: code, Message: message},
			Notifications: notes,
		})
	}

	f.printNotifications(notes)
	fmt.Fprintf(f.GetErrWriter(), "Error [%s]: %s\n", code, message)
	return nil
}

func (f *OutputFormatter) printNotifications(notes []notification.Notification) {
	w := f.GetErrWriter()
	for _, n := range notes {
		if n.Kind.IsFailure() || f.Verbose {
			fmt.Fprintf(w, "%s: %s\n", n.Title, n.Description)
		}
	}
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
