// Package app 提供应用级会话上下文，编排登录、场景参数与实时消息的引导
package app

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/qiminjie89/miniapp-sdk/internal/api"
	"github.com/qiminjie89/miniapp-sdk/internal/chat"
	"github.com/qiminjie89/miniapp-sdk/internal/login"
	"github.com/qiminjie89/miniapp-sdk/pkg/config"
	"github.com/qiminjie89/miniapp-sdk/pkg/logger"
	"github.com/qiminjie89/miniapp-sdk/pkg/storage"
)

// 进入场景值
const (
	SceneShareCard = 1036 // 从分享卡片进入，携带 share_id
	SceneFromAppA  = 1089 // 任务栏最近使用进入
	SceneFromAppB  = 1090 // 长按小程序菜单进入
)

// 本地存储键
const (
	storeDomain    = "app"
	keyCanBackApp  = "canBackApp"
	keyOssBucket   = "ossBucket"
	keyOssEndpoint = "ossEndpoint"
)

// Flow 登录编排对外界面/导航的协作方。
// 编排层只做错误分类，具体提示与跳转由宿主实现。
type Flow interface {
	// ShowError 提示不可恢复的错误消息
	ShowError(msg string)
	// RequestReauthorize 授权已失效，提示用户重新授权
	RequestReauthorize()
	// NavigateToAuth 完全未授权，引导到手动授权页
	NavigateToAuth()
}

// LaunchOptions 本次前台展示的启动参数
type LaunchOptions struct {
	Scene int
	Query map[string]string
}

// App 会话上下文。聚合接口目录、登录协调器、聊天管理器与本地存储，
// 一个进程持有一个实例。
type App struct {
	api   *api.API
	login *login.Coordinator
	chat  *chat.Manager
	store storage.Store
	flow  Flow
	im    config.IMConfig
	log   *zap.Logger
}

// New 创建会话上下文
func New(apiCatalog *api.API, coordinator *login.Coordinator, manager *chat.Manager, store storage.Store, flow Flow, im config.IMConfig) *App {
	return &App{
		api:   apiCatalog,
		login: coordinator,
		chat:  manager,
		store: store,
		flow:  flow,
		im:    im,
		log:   logger.Named("app"),
	}
}

// DoLogin 执行登录并完成登录后的引导。
// 失败时先按错误类别分流到 Flow，再把原始错误返回给调用方。
func (a *App) DoLogin(ctx context.Context) (*login.User, error) {
	user, err := a.login.GetUser(ctx, false)
	if err != nil {
		a.classifyError(err)
		return nil, err
	}

	// 登录成功后 uid 进入公共参数，后续请求自动携带
	a.api.UpdateUID(user.UID)
	a.afterAuth(ctx, user)
	return user, nil
}

// classifyError 按错误类别分流到界面协作方
func (a *App) classifyError(err error) {
	switch {
	case login.IsUnauthorized(err):
		a.flow.NavigateToAuth()
	case login.IsAuthDenied(err):
		a.flow.RequestReauthorize()
	default:
		var apiErr *api.Error
		msg := "login failed"
		if errors.As(err, &apiErr) && apiErr.Msg != "" {
			msg = apiErr.Msg
		}
		a.flow.ShowError(msg)
	}
}

// OnShow 处理前台展示。场景值进入公共参数；分享场景采用 share_id 并
// 标记可返回来源，非分享场景清除上一次的分享状态。
func (a *App) OnShow(ctx context.Context, opts LaunchOptions) {
	a.api.UpdateScene(opts.Scene)

	if presentID := opts.Query["present_id"]; presentID != "" {
		a.api.UpdatePresentID(presentID)
	}

	switch opts.Scene {
	case SceneShareCard:
		a.api.UpdateShareToken(opts.Query["share_id"])
		a.store.Save(keyCanBackApp, "true", storeDomain)
	case SceneFromAppA, SceneFromAppB:
		// 最近使用进入，保留上一次的分享状态
	default:
		a.api.UpdateShareToken("")
		a.store.Save(keyCanBackApp, "false", storeDomain)
	}

	// 压缩场景参数需要先到后端兑换
	if scene := opts.Query["scene"]; scene != "" {
		if _, err := a.api.ExchangeShareParams(ctx, scene); err != nil {
			a.log.Warn("exchange share params failed", zap.Error(err))
		}
	}
}

// afterAuth 登录后的引导：对象存储接入点与实时消息身份，均为尽力而为
func (a *App) afterAuth(ctx context.Context, user *login.User) {
	a.fetchOssToken(ctx, user.UID)
	a.bootstrapChat(ctx, user)
}

// fetchOssToken 拉取对象存储接入点并落本地存储
func (a *App) fetchOssToken(ctx context.Context, uid string) {
	result, err := a.api.GetOssToken(ctx, uid)
	if err != nil || result.Meta.State != api.MetaStateSuccess {
		a.log.Warn("fetch oss token failed", zap.Error(err))
		return
	}
	a.store.Save(keyOssBucket, result.Data.BucketName, storeDomain)
	a.store.Save(keyOssEndpoint, result.Data.Endpoint, storeDomain)
}

// bootstrapChat 兑换实时消息身份签名并登录传输层。
// 实时消息身份为 "wx_<uid>"。
func (a *App) bootstrapChat(ctx context.Context, user *login.User) {
	identifier := "wx_" + user.UID

	result, err := a.api.GetIMCredential(ctx, identifier)
	if err != nil || result.Meta.State != api.MetaStateSuccess {
		a.log.Warn("fetch im credential failed", zap.Error(err))
		return
	}

	err = a.chat.Init(ctx, chat.Credentials{
		AppID:       a.im.AppID,
		AccountType: a.im.AccountType,
		UID:         identifier,
		Sig:         result.Data.SignResult,
		Nick:        user.NickName,
	})
	if err != nil {
		a.log.Warn("chat init failed", zap.Error(err))
	}
}

// Chat 返回聊天管理器
func (a *App) Chat() *chat.Manager {
	return a.chat
}

// CanBackApp 返回是否从分享卡片进入（可展示返回来源入口）
func (a *App) CanBackApp() bool {
	v, _ := strconv.ParseBool(a.store.Get(keyCanBackApp, storeDomain))
	return v
}

// InReview 返回是否处于版本审核态
func (a *App) InReview() bool {
	return a.login.InReview()
}

// PendingPhoneBinding 返回待绑定手机号的身份信息
func (a *App) PendingPhoneBinding() *login.PhoneBinding {
	return a.login.PendingPhoneBinding()
}
