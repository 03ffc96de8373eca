package update

import "fmt"

// Error codes for update operations.
const (
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeNetwork           = "NETWORK"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeParse             = "PARSE"
	ErrCodeIO                = "IO"
	ErrCodeIncomplete        = "INCOMPLETE_TRANSFER"
	ErrCodeVerifyFailed      = "VERIFY_FAILED"
	ErrCodeNoAsset           = "NO_ASSET"
	ErrCodePermission        = "PERMISSION"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeInstallFailed     = "INSTALL_FAILED"
	ErrCodeNoBackup          = "NO_BACKUP"
	ErrCodeRollbackFailed    = "ROLLBACK_FAILED"
)

// Error represents an update-specific error with a code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a typed update error. Collaborators in other packages
// (release resolver, downloader) use it so the state machine can classify
// failures by code.
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
