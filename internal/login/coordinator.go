// Package login 编排多步登录序列并保证进程内同一时刻至多一次登录在途
package login

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qiminjie89/miniapp-sdk/internal/api"
	"github.com/qiminjie89/miniapp-sdk/pkg/logger"
	"github.com/qiminjie89/miniapp-sdk/pkg/metrics"
)

// ErrWaitTimeout 等待在途登录超时（原轮询式等待的超时语义）
var ErrWaitTimeout = errors.New("login: wait for in-flight login timed out")

// User 登录成功后的用户态
type User struct {
	UID       string
	NickName  string
	AvatarURL string
	VIP       json.RawMessage // 会员信息，补充失败时为空
}

// Profile 平台用户资料
type Profile struct {
	NickName  string
	AvatarURL string
}

// PhoneBinding 待绑定手机号时保留的身份信息
type PhoneBinding struct {
	UID    string
	OpenID string
}

// Platform 平台登录态与用户资料接口
//
// Login 失败以 status 1 上报，UserProfile 失败以 status 2 上报；
// status 2 且消息含 auth/deny 字样即授权被拒，由编排层分流处理。
type Platform interface {
	// Login 换取一次性登录凭证 code
	Login(ctx context.Context) (string, error)
	// UserProfile 获取用户资料与校验载荷
	UserProfile(ctx context.Context) (*Profile, *api.AuthPayload, error)
}

// flight 一次在途登录，后续并发调用共享其结果
type flight struct {
	done chan struct{}
	user *User
	err  error
}

// Coordinator 登录协调器
//
// 状态机 Idle → InFlight → Resolved/Failed → Idle。并发调用不会触发
// 第二次登录序列：后到者挂到在途结果上，与发起者得到同一结果。
type Coordinator struct {
	api         *api.API
	platform    Platform
	version     string // 客户端版本，用于审核态判定
	waitTimeout time.Duration
	log         *zap.Logger

	mu       sync.Mutex
	user     *User
	inReview bool
	phone    *PhoneBinding
	current  *flight
}

// NewCoordinator 创建登录协调器
func NewCoordinator(apiCatalog *api.API, platform Platform, version string, waitTimeout time.Duration) *Coordinator {
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Second
	}
	return &Coordinator{
		api:         apiCatalog,
		platform:    platform,
		version:     version,
		waitTimeout: waitTimeout,
		log:         logger.Named("login"),
	}
}

// GetUser 获取用户态
//
// 已有缓存且 refresh 为 false 时直接返回，不发起网络调用。
// 已有登录在途时挂到其结果上等待，等待上限为 waitTimeout。
// 登录成功后 uid 需要由编排层回写 Agent 公共参数（后置约定）。
func (c *Coordinator) GetUser(ctx context.Context, refresh bool) (*User, error) {
	c.mu.Lock()

	if c.user != nil && !refresh {
		user := c.user
		c.mu.Unlock()
		metrics.LoginResults.WithLabelValues("cached").Inc()
		return user, nil
	}

	if f := c.current; f != nil {
		c.mu.Unlock()
		return c.waitFlight(ctx, f)
	}

	f := &flight{done: make(chan struct{})}
	c.current = f
	c.mu.Unlock()

	user, err := c.runLogin(ctx)

	c.mu.Lock()
	f.user, f.err = user, err
	if err == nil {
		c.user = user
	}
	c.current = nil
	c.mu.Unlock()
	close(f.done)

	if err != nil {
		metrics.LoginResults.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.LoginResults.WithLabelValues("resolved").Inc()
	return user, nil
}

// waitFlight 等待在途登录并共享其结果
func (c *Coordinator) waitFlight(ctx context.Context, f *flight) (*User, error) {
	metrics.LoginWaiters.Inc()
	defer metrics.LoginWaiters.Dec()

	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()

	select {
	case <-f.done:
		if f.err != nil {
			return nil, f.err
		}
		metrics.LoginResults.WithLabelValues("shared").Inc()
		return f.user, nil
	case <-timer.C:
		return nil, ErrWaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runLogin 执行完整登录序列：
// 平台 code → 用户资料 → 后端登录 → 会员信息补充（尽力而为）
func (c *Coordinator) runLogin(ctx context.Context) (*User, error) {
	metrics.LoginAttempts.Inc()

	code, err := c.platform.Login(ctx)
	if err != nil {
		return nil, platformError(api.StatusPlatformLogin, err)
	}

	profile, auth, err := c.platform.UserProfile(ctx)
	if err != nil {
		return nil, platformError(api.StatusProfileDenied, err)
	}

	result, err := c.api.Login(ctx, code, profile.NickName, profile.AvatarURL, *auth)
	if err != nil {
		return nil, err
	}

	if result.Meta.Code == api.MetaCodeNameRejected {
		return nil, &api.Error{Status: api.StatusNameRejected, Msg: result.Meta.Message}
	}
	if result.Meta.State != api.MetaStateSuccess {
		return nil, &api.Error{Status: api.StatusBackendError, Msg: result.Meta.Message}
	}

	data := result.Data
	user := &User{
		UID:       data.UID,
		NickName:  data.Uname,
		AvatarURL: data.AvatarURL,
	}

	c.mu.Lock()
	c.inReview = c.version == data.Version
	if data.NeedPhone == 1 {
		c.phone = &PhoneBinding{UID: data.UID, OpenID: data.OpenID}
	}
	c.mu.Unlock()

	c.enrichVip(ctx, user)

	c.log.Info("login resolved", zap.String("uid", user.UID))
	return user, nil
}

// enrichVip 补充会员信息。失败不影响登录结果。
func (c *Coordinator) enrichVip(ctx context.Context, user *User) {
	result, err := c.api.GetUserVipInfo(ctx, user.UID)
	if err != nil {
		c.log.Debug("vip enrichment failed", zap.Error(err))
		return
	}
	if result.Meta.State != api.MetaStateSuccess {
		return
	}
	user.VIP = result.Data
}

// CachedUser 返回缓存的用户态，未登录时为 nil
func (c *Coordinator) CachedUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// InReview 返回是否处于版本审核态
func (c *Coordinator) InReview() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inReview
}

// PendingPhoneBinding 返回待绑定手机号的身份信息，无需绑定时为 nil
func (c *Coordinator) PendingPhoneBinding() *PhoneBinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phone
}

// platformError 把平台侧错误折算成结构化错误，保留原始消息供授权分流
func platformError(status int, err error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &api.Error{Status: status, Msg: err.Error()}
}

// IsAuthDenied 判定平台资料授权被拒（status 2 且消息含 auth/deny 字样）
func IsAuthDenied(err error) bool {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != api.StatusProfileDenied {
		return false
	}
	msg := strings.ToLower(apiErr.Msg)
	return strings.Contains(msg, "auth") || strings.Contains(msg, "deny")
}

// IsUnauthorized 授权被拒的子类：完全未授权，需要引导到手动授权流程；
// 否则为授权失效，提示重新授权即可。
func IsUnauthorized(err error) bool {
	if !IsAuthDenied(err) {
		return false
	}
	var apiErr *api.Error
	errors.As(err, &apiErr)
	return strings.Contains(strings.ToLower(apiErr.Msg), "unauthorized")
}

// IsNameRejected 判定用户名被后端拒绝
func IsNameRejected(err error) bool {
	var apiErr *api.Error
	return errors.As(err, &apiErr) && apiErr.Status == api.StatusNameRejected
}
