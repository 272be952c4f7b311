package middleware

import "github.com/gin-gonic/gin"

// ErrorResponse is the error envelope every endpoint returns.
type ErrorResponse struct {
	StatusCode    int    `json:"statusCode"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId"`
}

// NewErrorResponse builds the envelope for the current request.
func NewErrorResponse(c *gin.Context, status int, message string) ErrorResponse {
	return ErrorResponse{StatusCode: status, Message: message, CorrelationID: GetRequestID(c)}
}

// AbortWithError writes the envelope and stops the chain.
func AbortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, NewErrorResponse(c, status, message))
}
