package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	errx "github.com/docqa-assistant/server/internal/core/error"
)

// Response is the success envelope of the JSON API.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the failure envelope of the JSON API.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Success writes a 200 envelope around data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// ErrorWithDetail writes a failure envelope with a detail field.
func ErrorWithDetail(c *gin.Context, httpCode int, errCode int, message, detail string) {
	c.JSON(httpCode, ErrorResponse{
		Code:    errCode,
		Message: message,
		Detail:  detail,
	})
}

// FromError maps err onto its HTTP status; the error kind goes into detail.
func FromError(c *gin.Context, err error) {
	status := errx.StatusOf(err)
	ErrorWithDetail(c, status, status, errx.MessageOf(err), string(errx.KindOf(err)))
}
