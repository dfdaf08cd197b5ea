package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 状态码对应的默认消息
var statusMessages = map[int]string{
	http.StatusBadRequest:          "invalid request",
	http.StatusUnauthorized:        "authentication failed",
	http.StatusNotFound:            "not found",
	http.StatusMethodNotAllowed:    "method not allowed",
	http.StatusInternalServerError: "internal server error",
}

// ErrorBody 错误响应结构
type ErrorBody struct {
	Error string `json:"error"`
}

// AckBody 回调确认结构
type AckBody struct {
	Received bool   `json:"received"`
	State    string `json:"state,omitempty"`
}

// Success 成功响应，直接返回数据本身
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Received 支付回调确认
func Received(c *gin.Context, state string) {
	c.JSON(http.StatusOK, AckBody{Received: true, State: state})
}

// Error 错误响应，使用真实的 HTTP 状态码
func Error(c *gin.Context, status int, message string) {
	if message == "" {
		message = statusMessages[status]
	}
	if message == "" {
		message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: message})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// MethodNotAllowed 方法不允许
func MethodNotAllowed(c *gin.Context) {
	Error(c, http.StatusMethodNotAllowed, "")
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
