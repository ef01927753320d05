package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Response HTTP 传输层应答。ErrMsg 为 "request:ok" 且 StatusCode 为 200
// 才算成功，两者缺一不可。
type Response struct {
	ErrMsg     string
	StatusCode int
	Data       []byte
}

// HTTPTransport HTTP 传输层接口
type HTTPTransport interface {
	// Send 以 POST 发送 JSON body
	Send(ctx context.Context, url string, body []byte) (*Response, error)
}

// PaymentOptions 支付侧通道参数
type PaymentOptions struct {
	Prepay    string
	NonceStr  string
	Timestamp string
	Package   string
	SignType  string
	PaySign   string
}

// PaymentResult 支付侧通道结果。成功与失败都作为结果返回，
// 由调用方检查 ErrMsg，不作为错误处理。
type PaymentResult struct {
	ErrMsg string
}

// PaymentTransport 支付侧通道接口
type PaymentTransport interface {
	RequestPayment(ctx context.Context, opts PaymentOptions) *PaymentResult
}

// StdHTTPTransport 基于 net/http 的默认实现
type StdHTTPTransport struct {
	client *http.Client
}

// NewStdHTTPTransport 创建默认 HTTP 传输层
func NewStdHTTPTransport(timeout time.Duration) *StdHTTPTransport {
	return &StdHTTPTransport{client: &http.Client{Timeout: timeout}}
}

// Send 发送请求。网络层失败通过 error 返回，由 Agent 折算成 status -2。
func (t *StdHTTPTransport) Send(ctx context.Context, url string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		ErrMsg:     ErrMsgOK,
		StatusCode: resp.StatusCode,
		Data:       data,
	}, nil
}
