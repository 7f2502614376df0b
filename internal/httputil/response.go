// Package httputil provides shared HTTP response helpers.
package httputil

import "github.com/gin-gonic/gin"

// RespondError writes the standard error envelope and aborts the request.
// The request_id field is included when the request ID middleware ran.
func RespondError(c *gin.Context, status int, code, message string) {
	resp := gin.H{
		"code":    code,
		"message": message,
	}
	if requestID := c.GetString("request_id"); requestID != "" {
		resp["request_id"] = requestID
	}

	c.AbortWithStatusJSON(status, resp)
}
