package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type APIResponse[T any] struct {
	Status    int         `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id"`
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      T           `json:"data,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	Error     interface{} `json:"error,omitempty"`
}

func write[T any](ctx *gin.Context, resp APIResponse[T]) APIResponse[T] {
	resp.Timestamp = time.Now().UTC()
	resp.RequestID = ctx.GetString("request_id")
	ctx.JSON(resp.Status, resp)
	return resp
}

// Success writes a success envelope and returns it.
func Success[T any](ctx *gin.Context, status int, data T, message string, meta interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	return write(ctx, APIResponse[T]{Status: status, Success: true, Message: message, Data: data, Meta: meta})
}

// Error writes a failure envelope and returns it.
func Error[T any](ctx *gin.Context, status int, message string, err interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return write(ctx, APIResponse[T]{Status: status, Message: message, Error: err})
}

// Fail writes a failure envelope whose error object carries a machine
// readable code next to any extra details.
func Fail(ctx *gin.Context, status int, message, code string, details map[string]any) APIResponse[any] {
	body := make(map[string]any, len(details)+1)
	for k, v := range details {
		body[k] = v
	}
	body["code"] = code
	return Error[any](ctx, status, message, body)
}
