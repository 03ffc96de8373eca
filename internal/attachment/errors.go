package attachment

// Error codes for attachment operations.
const (
	ErrCodeInvalidURL = "INVALID_URL"
	ErrCodeNetwork    = "NETWORK"
	ErrCodeIO         = "IO"
	ErrCodeNotFound   = "NOT_FOUND"
)

// Error is a typed attachment error.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
