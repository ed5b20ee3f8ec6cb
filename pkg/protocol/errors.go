package protocol

import "errors"

// Error codes for the capture protocol.
const (
	CodeSessionBusy       = "SESSION_BUSY"
	CodeNoActiveSession   = "NO_ACTIVE_SESSION"
	CodeTileCaptureFailed = "TILE_CAPTURE_FAILED"
	CodeTileDecodeFailed  = "TILE_DECODE_FAILED"
	CodeStitchError       = "STITCH_ERROR"
	CodePersistenceFailed = "PERSISTENCE_FAILED"
	CodeUploadFailed      = "UPLOAD_FAILED"
)

// Error is a protocol-level error with a stable code.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is makes errors.Is match protocol errors by code.
func (e *Error) Is(target error) bool {
	var pe *Error
	if !errors.As(target, &pe) {
		return false
	}
	return e.Code == pe.Code
}

// NewError creates a protocol error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrCode extracts the protocol error code, or "" for other errors.
func ErrCode(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

var (
	// ErrSessionBusy rejects a begin request while a session is active.
	ErrSessionBusy = &Error{Code: CodeSessionBusy, Message: "a capture session is already active"}

	// ErrNoActiveSession rejects tile/finish messages outside a session.
	ErrNoActiveSession = &Error{Code: CodeNoActiveSession, Message: "no capture session is active"}
)
