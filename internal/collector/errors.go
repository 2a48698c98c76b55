package collector

// SourceError represents a failure talking to an external content source
type SourceError struct {
	Source  string `json:"source"`
	URL     string `json:"url"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Source failure codes
const (
	ErrCodeConnection = "CONNECTION_FAILED"
	ErrCodeTimeout    = "TIMEOUT"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeRateLimit  = "RATE_LIMITED"
	ErrCodeServer     = "SERVER_ERROR"
	ErrCodeBadPayload = "BAD_PAYLOAD"
)

func (e *SourceError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// Transient reports whether the failure is worth retrying. Missing content
// and malformed payloads will not improve on retry.
func (e *SourceError) Transient() bool {
	switch e.Code {
	case ErrCodeConnection, ErrCodeTimeout, ErrCodeRateLimit, ErrCodeServer:
		return true
	default:
		return false
	}
}

// NewSourceError creates a new source error
func NewSourceError(source, url, code, message string, cause error) *SourceError {
	return &SourceError{
		Source:  source,
		URL:     url,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
