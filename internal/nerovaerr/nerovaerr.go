// Package nerovaerr defines the small taxonomy of sentinel error codes the
// control loop, resolver, and driver use to classify failures (spec.md §7).
package nerovaerr

import (
	"errors"
	"fmt"
)

// Code is a stable, loggable error identifier. Codes are compared with
// errors.Is, not string equality, so callers can wrap them with context
// while still letting upstream handlers branch on identity.
type Code string

const (
	// Input-validation
	CodePromptRequired    Code = "prompt_required"
	CodeScreenshotRequired Code = "screenshot_required"
	CodeUnsupportedMode   Code = "unsupported_mode"

	// Upstream (Critic/Assistant)
	CodeCriticHTTP            Code = "critic_http"
	CodeCriticAPIKeyMissing   Code = "critic_api_key_missing"
	CodeAssistantAPIKeyMissing Code = "assistant_api_key_missing"
	CodeAssistantError        Code = "assistant_error"
	CodeAssistantTimeout      Code = "assistant_timeout"
	CodeAwaitAssistance       Code = "await_assistance"

	// Transport
	CodeAgentUnavailable     Code = "agent_unavailable"
	CodeAgentCommandTimeout  Code = "agent_command_timeout"
	CodeAgentDisconnected    Code = "agent_disconnected"
	CodeAgentSocketNotOpen   Code = "agent_socket_not_open"

	// Pause-control (non-error control flow, routed at loop barriers)
	CodePauseInterrupt Code = "pause_interrupt"
	CodeRunAborted      Code = "run_aborted"

	// Browser
	CodeScreenshotFailed Code = "screenshot_failed"
	CodeLaunchFailed     Code = "browser_launch_failed"
)

// Error wraps a Code with context and an optional underlying cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target names the same Code, so sentinel comparisons
// via errors.Is(err, nerovaerr.New(CodeX, "")) work regardless of message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error; the zero Code otherwise.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// UnsupportedMode builds the unsupported_mode_<v> code spec.md §6 requires.
func UnsupportedMode(mode string) *Error {
	return New(Code(fmt.Sprintf("unsupported_mode_%s", mode)), fmt.Sprintf("unsupported mode %q", mode))
}

// CriticHTTP builds the critic_http_<status> code spec.md §4.4 requires.
func CriticHTTP(status int) Code {
	return Code(fmt.Sprintf("critic_http_%d", status))
}

// KeyMissing builds the <role>_api_key_missing code spec.md §4.4 requires.
func KeyMissing(role string) Code {
	return Code(fmt.Sprintf("%s_api_key_missing", role))
}
