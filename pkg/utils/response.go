package utils

import (
	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

func APIResponse(c *gin.Context, code int, success bool, message string, data interface{}) {
	c.JSON(code, Response{
		Success: success,
		Message: message,
		Data:    data,
	})
}

// ValidationResponse answers 400 with one message per failed field.
func ValidationResponse(c *gin.Context, code int, message string, errs []string) {
	c.AbortWithStatusJSON(code, Response{
		Success: false,
		Message: message,
		Errors:  errs,
	})
}
