// Package api 封装业务网关的签名请求分发与接口目录
package api

import "fmt"

// 结构化错误状态码（与既有客户端约定一致）
const (
	StatusTransportFailed = -2   // 传输层失败
	StatusBadHTTP         = -1   // HTTP 状态码非 200
	StatusPlatformLogin   = 1    // 平台登录失败，或等待在途登录无果
	StatusProfileDenied   = 2    // 用户资料授权失败
	StatusNameRejected    = 1000 // 后端判定用户名不合法
	StatusBackendError    = 1002 // 后端返回非 success 状态
)

// ErrMsgOK 传输层成功哨兵值
const ErrMsgOK = "request:ok"

// Error 网关及登录链路的结构化错误。
// 所有可预期失败都以该类型向上传递，由编排层决定重试或引导授权。
type Error struct {
	Status int    // 见上方状态码
	Code   int    // StatusBadHTTP 时携带 HTTP 状态码
	Msg    string
}

func (e *Error) Error() string {
	if e.Status == StatusBadHTTP {
		return fmt.Sprintf("api: status=%d code=%d msg=%s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("api: status=%d msg=%s", e.Status, e.Msg)
}

// NewTransportError 传输层失败（status -2）
func NewTransportError(msg string) *Error {
	return &Error{Status: StatusTransportFailed, Msg: msg}
}

// NewHTTPError 非 200 应答（status -1）
func NewHTTPError(code int) *Error {
	return &Error{Status: StatusBadHTTP, Code: code, Msg: "Bad Request."}
}
