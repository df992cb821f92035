// Package response 提供统一的 HTTP 响应封装，负责把 xerrors 业务错误与 gRPC 状态映射为 HTTP 状态码。
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/versioned/xerrors"
)

// Body 统一响应体。
type Body struct {
	Data   any    `json:"data,omitempty"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
	Code   int    `json:"code"`
}

// Success 发送一个标准的成功响应：HTTP 200，业务码 0。
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Code: 0, Msg: "success", Data: data})
}

// SuccessWithStatus 发送一个带有指定 HTTP 状态码的成功响应。
func SuccessWithStatus(c *gin.Context, status int, data any) {
	c.JSON(status, Body{Code: 0, Msg: "success", Data: data})
}

// Error 发送错误响应。
// 优先识别 xerrors (业务错误码 + 详情)，其次是 gRPC Status，其余兜底为 500。
func Error(c *gin.Context, err error) {
	if err == nil {
		Success(c, nil)
		return
	}

	if xe, ok := xerrors.FromError(err); ok {
		c.JSON(xe.HTTPStatus(), Body{Code: xe.Code, Msg: xe.Message, Detail: xe.Detail})
		return
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		code := grpcCodeToHTTP(st.Code())
		c.JSON(code, Body{Code: code, Msg: st.Message()})
		return
	}

	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		ErrorWithStatus(c, http.StatusRequestEntityTooLarge, "request body too large", err.Error())
		return
	}

	ErrorWithStatus(c, http.StatusInternalServerError, "internal error", err.Error())
}

// ErrorWithStatus 发送一个带有指定 HTTP 状态码、消息和详情的错误响应。
func ErrorWithStatus(c *gin.Context, status int, msg string, detail string) {
	c.JSON(status, Body{Code: status, Msg: msg, Detail: detail})
}

// grpcCodeToHTTP 执行 gRPC 到 HTTP 的标准协议映射。
func grpcCodeToHTTP(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.Canceled:
		return 499 // Client Closed Request
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
