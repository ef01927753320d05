package api

import (
	"context"
	"encoding/json"
)

// Meta 后端应答元信息
type Meta struct {
	State   string `json:"state"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// 后端应答哨兵值
const (
	MetaStateSuccess     = "success"
	MetaCodeNameRejected = "999" // 用户名不合法
)

// AuthPayload 平台登录校验载荷
type AuthPayload struct {
	Signature     string `json:"signature"`
	EncryptedData string `json:"encryptedData"`
	IV            string `json:"iv"`
}

// LoginData 登录接口返回数据
type LoginData struct {
	UID       string `json:"uid"`
	Uname     string `json:"uname"`
	AvatarURL string `json:"avatar_url"`
	Version   string `json:"version"`
	NeedPhone int    `json:"need_phone"`
	OpenID    string `json:"open_id"`
}

// LoginResult 登录接口应答
type LoginResult struct {
	Meta Meta      `json:"meta"`
	Data LoginData `json:"data"`
}

// VipResult 会员信息应答。data 结构由后端定义，原样透传。
type VipResult struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// IMCredentialData 实时消息签名数据
type IMCredentialData struct {
	SignResult string `json:"sign_result"`
}

// IMCredentialResult 实时消息签名应答
type IMCredentialResult struct {
	Meta Meta             `json:"meta"`
	Data IMCredentialData `json:"data"`
}

// OssTokenData 对象存储接入点数据
type OssTokenData struct {
	BucketName string `json:"buketName"` // 后端字段即此拼写
	Endpoint   string `json:"endpoint"`
}

// OssTokenResult 对象存储接入点应答
type OssTokenResult struct {
	Meta Meta         `json:"meta"`
	Data OssTokenData `json:"data"`
}

// ShareParamsResult 分享参数兑换应答
type ShareParamsResult struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// API 接口目录。完整目录有上百个端点，这里只保留核心链路用到的子集。
type API struct {
	agent *Agent
	appID string
}

// NewAPI 创建接口目录
func NewAPI(agent *Agent, appID string) *API {
	return &API{agent: agent, appID: appID}
}

// Agent 暴露底层分发器（编排层更新公共参数用）
func (c *API) Agent() *Agent {
	return c.agent
}

// UpdateUID 将 uid 写入公共参数。空值为空操作。
func (c *API) UpdateUID(uid string) {
	if uid == "" {
		return
	}
	c.agent.SetCommonParams(map[string]any{"uid": uid})
}

// UpdateShareToken 更新分享来源。空值表示清除。
func (c *API) UpdateShareToken(shareID string) {
	if shareID == "" {
		c.agent.SetCommonParams(map[string]any{"share_id": nil})
		return
	}
	c.agent.SetCommonParams(map[string]any{"share_id": shareID})
}

// UpdateScene 更新进入场景值。零值为空操作。
func (c *API) UpdateScene(scene int) {
	if scene == 0 {
		return
	}
	c.agent.SetCommonParams(map[string]any{"scene": scene})
}

// UpdatePresentID 更新赠课 id。空值为空操作。
func (c *API) UpdatePresentID(presentID string) {
	if presentID == "" {
		return
	}
	c.agent.SetCommonParams(map[string]any{"present_id": presentID})
}

// Login 后端登录
func (c *API) Login(ctx context.Context, code, nickname, avatarURL string, auth AuthPayload) (*LoginResult, error) {
	var result LoginResult
	err := c.agent.Post(ctx, "/login.do", map[string]any{
		"code":           code,
		"nick_name":      nickname,
		"avatar_url":     avatarURL,
		"signature":      auth.Signature,
		"encrypted_data": auth.EncryptedData,
		"iv":             auth.IV,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUserVipInfo 查询会员信息
func (c *API) GetUserVipInfo(ctx context.Context, uid string) (*VipResult, error) {
	var result VipResult
	err := c.agent.Post(ctx, "/get_user_vip_info.do", map[string]any{"uid": uid}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetIMCredential 获取实时消息身份签名
func (c *API) GetIMCredential(ctx context.Context, identifier string) (*IMCredentialResult, error) {
	var result IMCredentialResult
	err := c.agent.Post(ctx, "/get_tim_identifier.do", map[string]any{"identifier": identifier}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOssToken 获取对象存储接入点
func (c *API) GetOssToken(ctx context.Context, uid string) (*OssTokenResult, error) {
	var result OssTokenResult
	err := c.agent.Post(ctx, "/get_oss_token.do", map[string]any{"uid": uid}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExchangeShareParams 兑换分享场景参数
func (c *API) ExchangeShareParams(ctx context.Context, scene string) (*ShareParamsResult, error) {
	var result ShareParamsResult
	err := c.agent.Post(ctx, "/exchange_params.do", map[string]any{
		"scene":  scene,
		"app_id": c.appID,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
