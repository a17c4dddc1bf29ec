package universal

import "fmt"

// ErrorCode is the closed set of daemon error conditions, each mapped to an
// HTTP status and an RFC 7807 problem type in the httpapi layer.
type ErrorCode string

const (
	ErrUnsupportedAgent       ErrorCode = "unsupported_agent"
	ErrSessionNotFound        ErrorCode = "session_not_found"
	ErrSessionExists          ErrorCode = "session_exists"
	ErrSessionEnded           ErrorCode = "session_ended"
	ErrQuestionNotFound       ErrorCode = "question_not_found"
	ErrQuestionAlreadyResolved ErrorCode = "question_already_resolved"
	ErrPermissionNotFound     ErrorCode = "permission_not_found"
	ErrPermissionAlreadyResolved ErrorCode = "permission_already_resolved"
	ErrTokenInvalid           ErrorCode = "token_invalid"
	ErrInvalidRequest         ErrorCode = "invalid_request"
	ErrAgentError             ErrorCode = "agent_error"
	ErrInternal               ErrorCode = "internal"
)

// AppError is the daemon's uniform error type, carrying enough information
// for the HTTP layer to render an RFC 7807 problem-details body without any
// further type switching.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func UnsupportedAgent(agent string) *AppError {
	return NewError(ErrUnsupportedAgent, fmt.Sprintf("agent %q is not supported", agent))
}

func SessionNotFound(sessionID string) *AppError {
	return NewError(ErrSessionNotFound, fmt.Sprintf("session %q was not found", sessionID))
}

func SessionExists(sessionID string) *AppError {
	return NewError(ErrSessionExists, fmt.Sprintf("session %q already exists", sessionID))
}

func SessionEnded(sessionID string) *AppError {
	return NewError(ErrSessionEnded, fmt.Sprintf("session %q has already ended", sessionID))
}

func QuestionNotFound(questionID string) *AppError {
	return NewError(ErrQuestionNotFound, fmt.Sprintf("question %q was not found", questionID))
}

func QuestionAlreadyResolved(questionID string) *AppError {
	return NewError(ErrQuestionAlreadyResolved, fmt.Sprintf("question %q was already resolved", questionID))
}

func PermissionNotFound(permissionID string) *AppError {
	return NewError(ErrPermissionNotFound, fmt.Sprintf("permission %q was not found", permissionID))
}

func PermissionAlreadyResolved(permissionID string) *AppError {
	return NewError(ErrPermissionAlreadyResolved, fmt.Sprintf("permission %q was already resolved", permissionID))
}

func TokenInvalid() *AppError {
	return NewError(ErrTokenInvalid, "authentication token is missing or invalid")
}

func InvalidRequest(message string) *AppError {
	return NewError(ErrInvalidRequest, message)
}

func AgentErrorf(format string, args ...any) *AppError {
	return NewError(ErrAgentError, fmt.Sprintf(format, args...))
}

func Internal(err error) *AppError {
	return WrapError(ErrInternal, "internal error", err)
}

// HTTPStatus maps an ErrorCode to its HTTP status code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrUnsupportedAgent, ErrInvalidRequest:
		return 400
	case ErrTokenInvalid:
		return 401
	case ErrSessionNotFound, ErrQuestionNotFound, ErrPermissionNotFound:
		return 404
	case ErrSessionExists, ErrSessionEnded, ErrQuestionAlreadyResolved, ErrPermissionAlreadyResolved:
		return 409
	case ErrAgentError:
		return 502
	default:
		return 500
	}
}
