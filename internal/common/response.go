package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the envelope for every non-2xx response.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// OK writes data as the bare 200 response body.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, ErrorBody{Code: code, Message: msg, Data: nil})
}
