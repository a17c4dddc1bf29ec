package httpapi

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/kandev/agentd/internal/universal"
)

// Problem is an RFC 7807 problem-details body, extended with a nested
// agent_error payload where applicable (spec §4.5, §7).
type Problem struct {
	Type       string             `json:"type"`
	Title      string             `json:"title"`
	Status     int                `json:"status"`
	Detail     string             `json:"detail"`
	AgentError *AgentErrorPayload `json:"agent_error,omitempty"`
}

const problemTypeBase = "https://agentd.dev/errors/"

func problemFromAppError(err *universal.AppError) Problem {
	p := Problem{
		Type:   problemTypeBase + string(err.Code),
		Title:  string(err.Code),
		Status: err.Code.HTTPStatus(),
		Detail: err.Message,
	}
	if err.Code == universal.ErrAgentError {
		p.AgentError = &AgentErrorPayload{Message: err.Message, Code: string(err.Code)}
	}
	return p
}

// WriteError renders err as a problem-details JSON body with the matching
// HTTP status. Any error is coerced to *universal.AppError (wrapping
// unclassified errors as Internal) so every error path gets a uniform
// response shape.
func WriteError(c *gin.Context, err error) {
	var appErr *universal.AppError
	if !errors.As(err, &appErr) {
		appErr = universal.Internal(err)
	}
	problem := problemFromAppError(appErr)
	c.Header("Content-Type", "application/problem+json")
	c.JSON(problem.Status, problem)
}

// WriteProblem is a convenience for handlers that already hold an AppError.
func WriteProblem(c *gin.Context, appErr *universal.AppError) {
	WriteError(c, appErr)
}
