package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/fenilmodi00/ipo-admin/shared"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The API rejected or failed the operation
	ExitCommandError = 2 // Bad arguments, missing login, unusable configuration
)

// Error codes reported in JSON output
const (
	ErrCodeGeneric          = "E001"
	ErrCodeUsage            = "E002"
	ErrCodeNotAuthenticated = "E003"
	ErrCodeValidation       = "E004"
	ErrCodeNotFound         = "E005"
	ErrCodeNetwork          = "E006"
	ErrCodeStorage          = "E007"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
	// Reported is set once the error was written to the output
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

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
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
	ErrWriter io.Writer // Diagnostic output, kept off Writer so JSON stays parseable
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status       string                 `json:"status"`
	Data         interface{}            `json:"data,omitempty"`
	Notification *services.Notification `json:"notification,omitempty"`
	Error        *CLIError              `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Success outputs a successful result. text is what a human sees; data is
// the JSON payload.
func (f *OutputFormatter) Success(text string, data interface{}, notification *services.Notification) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:       "ok",
			Data:         data,
			Notification: notification,
		})
	}

	if notification != nil {
		fmt.Fprintln(f.Writer, RenderNotification(*notification))
	}
	if text != "" {
		fmt.Fprintln(f.Writer, text)
	}
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintln(f.Writer, errorStyle.Render(fmt.Sprintf("Error [%s]: %s", code, message)))
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

// RenderNotification styles a status message green or red
func RenderNotification(notification services.Notification) string {
	if notification.Kind == services.NotificationError {
		return errorStyle.Render("✗ " + notification.Text)
	}
	return successStyle.Render("✓ " + notification.Text)
}

// Fail reports err in the configured format and converts it to an ExitError.
// The notification text, when present, is the message the operator sees.
func (f *OutputFormatter) Fail(err error, notification *services.Notification) error {
	code, exitCode := classify(err)
	message := err.Error()
	if notification != nil && notification.Kind == services.NotificationError {
		message = notification.Text
	}

	var details interface{}
	if fields, ok := shared.FieldErrorsOf(err); ok {
		details = fields
	} else if f.Verbose {
		details = err.Error()
	}

	if outputErr := f.Error(code, message, details); outputErr != nil {
		return outputErr
	}
	exitErr := WrapExitError(exitCode, message, err)
	exitErr.Reported = true
	return exitErr
}

// Report writes an error that no command has printed yet
func (f *OutputFormatter) Report(err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reported {
		return
	}
	code, _ := classify(err)
	if f.Format == "json" {
		f.Error(code, err.Error(), nil)
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("Error [%s]: %s", code, err.Error())))
}

func classify(err error) (string, int) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return ErrCodeUsage, exitErr.Code
	}
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		return ErrCodeNotAuthenticated, ExitCommandError
	case shared.IsAuthError(err):
		return ErrCodeNotAuthenticated, ExitFailure
	case shared.IsValidationError(err):
		return ErrCodeValidation, ExitFailure
	case shared.IsNotFound(err):
		return ErrCodeNotFound, ExitFailure
	case shared.IsNetworkError(err):
		return ErrCodeNetwork, ExitFailure
	}
	if category, ok := shared.CategoryOf(err); ok && category == shared.ErrorCategoryStorage {
		return ErrCodeStorage, ExitCommandError
	}
	return ErrCodeGeneric, ExitFailure
}
