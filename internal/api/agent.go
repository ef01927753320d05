package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qiminjie89/miniapp-sdk/pkg/logger"
	"github.com/qiminjie89/miniapp-sdk/pkg/metrics"
	"github.com/qiminjie89/miniapp-sdk/pkg/sign"
)

// Agent 签名请求分发器
//
// 持有会话级公共参数（app_id、version、uid、share_id、scene、present_id），
// 每次请求时合并进参数集并签名后发出。签名 token 一次一用，不落任何存储。
//
// 前置约定：需要身份字段的接口由调用方保证 uid 已写入公共参数，
// Agent 本身不做校验。
type Agent struct {
	baseURL   string
	appKey    string
	secretKey string

	http    HTTPTransport
	payment PaymentTransport
	log     *zap.Logger

	mu           sync.RWMutex
	commonParams map[string]any
}

// NewAgent 创建 Agent。appID 与 version 进入初始公共参数。
func NewAgent(baseURL, appKey, secretKey, appID, version string, transport HTTPTransport) *Agent {
	if transport == nil {
		transport = NewStdHTTPTransport(15 * time.Second)
	}
	return &Agent{
		baseURL:   baseURL,
		appKey:    appKey,
		secretKey: secretKey,
		http:      transport,
		log:       logger.Named("agent"),
		commonParams: map[string]any{
			"app_id":  appID,
			"version": version,
		},
	}
}

// SetPaymentTransport 注入支付侧通道
func (a *Agent) SetPaymentTransport(p PaymentTransport) {
	a.payment = p
}

// SetCommonParams 浅合并公共参数，同 key 后写覆盖先写。nil 整体入参为空操作。
func (a *Agent) SetCommonParams(partial map[string]any) {
	if partial == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range partial {
		a.commonParams[k] = v
	}
}

// CommonParam 读取一个公共参数（nil 表示不存在或已清除）
func (a *Agent) CommonParam(key string) any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.commonParams[key]
}

// Post 合并公共参数与调用参数（调用参数优先）、签名并发出一次 POST。
// 仅当传输层 ErrMsg 为 "request:ok" 且 HTTP 状态为 200 时按成功处理，
// 并把应答 body 解码进 out（out 可为 nil）。不做重试，由调用方决定。
func (a *Agent) Post(ctx context.Context, path string, params map[string]any, out interface{}) error {
	merged := a.mergeParams(params)
	signed := sign.Sign(merged, a.appKey, a.secretKey)

	body, err := json.Marshal(signed)
	if err != nil {
		return NewTransportError(err.Error())
	}

	start := time.Now()
	resp, err := a.http.Send(ctx, a.baseURL+path, body)
	metrics.APIRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.APIRequests.WithLabelValues(path, "transport_error").Inc()
		a.log.Warn("request transport failed", zap.String("path", path), zap.Error(err))
		return NewTransportError(err.Error())
	}
	if resp.ErrMsg != ErrMsgOK {
		metrics.APIRequests.WithLabelValues(path, "transport_error").Inc()
		a.log.Warn("request not ok", zap.String("path", path), zap.String("err_msg", resp.ErrMsg))
		return NewTransportError(resp.ErrMsg)
	}
	if resp.StatusCode != 200 {
		metrics.APIRequests.WithLabelValues(path, "http_error").Inc()
		a.log.Warn("bad http status", zap.String("path", path), zap.Int("code", resp.StatusCode))
		return NewHTTPError(resp.StatusCode)
	}

	metrics.APIRequests.WithLabelValues(path, "ok").Inc()

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return NewTransportError(err.Error())
	}
	return nil
}

// PostPayment 透传支付侧通道。成功与失败都作为结果返回，
// 支付结果由调用方检查，不折算成错误。
func (a *Agent) PostPayment(ctx context.Context, opts PaymentOptions) *PaymentResult {
	metrics.PaymentRequests.Inc()
	if a.payment == nil {
		return &PaymentResult{ErrMsg: "requestPayment:fail no channel"}
	}
	return a.payment.RequestPayment(ctx, opts)
}

// mergeParams 公共参数在前、调用参数在后，key 冲突时调用参数胜出
func (a *Agent) mergeParams(params map[string]any) map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	merged := make(map[string]any, len(a.commonParams)+len(params))
	for k, v := range a.commonParams {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}
