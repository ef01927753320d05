package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	lastURL  string
	lastBody []byte
	resp     *Response
	err      error
	calls    int
}

func (f *fakeTransport) Send(_ context.Context, url string, body []byte) (*Response, error) {
	f.calls++
	f.lastURL = url
	f.lastBody = body
	return f.resp, f.err
}

func newTestAgent(ft *fakeTransport) *Agent {
	return NewAgent("https://backend.example.com", "testkey", "testsecret", "wxapp001", "1.4.0", ft)
}

func TestPostSuccess(t *testing.T) {
	ft := &fakeTransport{resp: &Response{
		ErrMsg:     ErrMsgOK,
		StatusCode: 200,
		Data:       []byte(`{"meta":{"state":"success"},"data":{"uid":"10086"}}`),
	}}
	a := newTestAgent(ft)

	var result LoginResult
	err := a.Post(context.Background(), "/login.do", map[string]any{"code": "abc"}, &result)
	require.NoError(t, err)

	assert.Equal(t, "https://backend.example.com/login.do", ft.lastURL)
	assert.Equal(t, MetaStateSuccess, result.Meta.State)
	assert.Equal(t, "10086", result.Data.UID)
}

func TestPostRejectsBadHTTPStatus(t *testing.T) {
	// errMsg 正常但状态码 404，仍然按 -1 拒绝
	ft := &fakeTransport{resp: &Response{ErrMsg: ErrMsgOK, StatusCode: 404}}
	a := newTestAgent(ft)

	err := a.Post(context.Background(), "/x.do", nil, nil)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, StatusBadHTTP, apiErr.Status)
	assert.Equal(t, 404, apiErr.Code)
}

func TestPostRejectsTransportFailure(t *testing.T) {
	// 状态码 200 但 errMsg 非成功哨兵，按 -2 拒绝
	ft := &fakeTransport{resp: &Response{ErrMsg: "request:fail timeout", StatusCode: 200}}
	a := newTestAgent(ft)

	err := a.Post(context.Background(), "/x.do", nil, nil)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, StatusTransportFailed, apiErr.Status)

	// 网络层 error 同样按 -2 拒绝
	ft2 := &fakeTransport{err: errors.New("dial tcp: connection refused")}
	a2 := newTestAgent(ft2)

	err = a2.Post(context.Background(), "/x.do", nil, nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, StatusTransportFailed, apiErr.Status)
}

func TestPostNoRetry(t *testing.T) {
	ft := &fakeTransport{resp: &Response{ErrMsg: ErrMsgOK, StatusCode: 500}}
	a := newTestAgent(ft)

	_ = a.Post(context.Background(), "/x.do", nil, nil)
	assert.Equal(t, 1, ft.calls)
}

func TestPostSignsAndMergesParams(t *testing.T) {
	ft := &fakeTransport{resp: &Response{ErrMsg: ErrMsgOK, StatusCode: 200, Data: []byte(`{}`)}}
	a := newTestAgent(ft)
	a.SetCommonParams(map[string]any{"uid": "10086", "scene": 1036})

	err := a.Post(context.Background(), "/x.do", map[string]any{"scene": 1089, "keyword": "go"}, nil)
	require.NoError(t, err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(ft.lastBody, &sent))

	// 公共参数与调用参数合并，调用参数胜出
	assert.Equal(t, "wxapp001", sent["app_id"])
	assert.Equal(t, "1.4.0", sent["version"])
	assert.Equal(t, "10086", sent["uid"])
	assert.Equal(t, float64(1089), sent["scene"])
	assert.Equal(t, "go", sent["keyword"])

	// 签名三件套随请求下发
	assert.Len(t, sent["token"], 32)
	assert.Equal(t, "testkey", sent["appkey"])
	assert.NotEmpty(t, sent["timestamp"])
}

func TestSetCommonParams(t *testing.T) {
	a := newTestAgent(&fakeTransport{})

	// nil 整体入参为空操作
	a.SetCommonParams(nil)
	assert.Equal(t, "wxapp001", a.CommonParam("app_id"))

	// 同 key 后写覆盖先写
	a.SetCommonParams(map[string]any{"share_id": "s1"})
	a.SetCommonParams(map[string]any{"share_id": "s2"})
	assert.Equal(t, "s2", a.CommonParam("share_id"))
}

type fakePayment struct {
	result *PaymentResult
}

func (f *fakePayment) RequestPayment(_ context.Context, _ PaymentOptions) *PaymentResult {
	return f.result
}

func TestPostPaymentAlwaysResolves(t *testing.T) {
	a := newTestAgent(&fakeTransport{})

	// 未注入侧通道时也返回结果而非错误
	result := a.PostPayment(context.Background(), PaymentOptions{})
	assert.NotNil(t, result)

	// 失败结果原样透传，由调用方自行检查
	a.SetPaymentTransport(&fakePayment{result: &PaymentResult{ErrMsg: "requestPayment:fail cancel"}})
	result = a.PostPayment(context.Background(), PaymentOptions{})
	assert.Equal(t, "requestPayment:fail cancel", result.ErrMsg)
}

func TestUpdateShareTokenClears(t *testing.T) {
	a := newTestAgent(&fakeTransport{})
	c := NewAPI(a, "wxapp001")

	c.UpdateShareToken("share123")
	assert.Equal(t, "share123", a.CommonParam("share_id"))

	// 空值清除：置 nil 后签名阶段会将其丢弃
	c.UpdateShareToken("")
	assert.Nil(t, a.CommonParam("share_id"))
}

func TestUpdateScene(t *testing.T) {
	a := newTestAgent(&fakeTransport{})
	c := NewAPI(a, "wxapp001")

	c.UpdateScene(0)
	assert.Nil(t, a.CommonParam("scene"))

	c.UpdateScene(1036)
	assert.Equal(t, 1036, a.CommonParam("scene"))
}
