// Package chat 管理群聊会话生命周期与实时消息的收发分发
package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qiminjie89/miniapp-sdk/pkg/logger"
	"github.com/qiminjie89/miniapp-sdk/pkg/metrics"
	"github.com/qiminjie89/miniapp-sdk/pkg/realtime"
)

// 业务上可预期的失败，以错误值而非布尔值表达
var (
	ErrInitFailed    = errors.New("chat: transport login failed")
	ErrAlreadyJoined = errors.New("chat: already joined a room")
	ErrNotJoined     = errors.New("chat: no active session")
	ErrJoinRejected  = errors.New("chat: join room rejected")
	ErrQuitRejected  = errors.New("chat: quit room rejected")
	ErrSendRejected  = errors.New("chat: send message rejected")
)

// ConnState 连接状态
type ConnState int

const (
	Disconnected ConnState = iota // 未连接
	Connecting                    // 认证中
	Connected                     // 已连接
)

// MemberState 房间成员状态
type MemberState int

const (
	NotJoined MemberState = iota // 未加入
	Joining                      // 入群请求已发，等待应答
	Joined                       // 已加入
	Leaving                      // 退群请求已发，等待应答
)

// Credentials 传输层登录凭证
type Credentials struct {
	AppID       string
	AccountType int
	UID         string
	Sig         string // 业务后端签发的 usersig
	Nick        string
}

// Session 与一个已加入房间的绑定
type Session struct {
	Type      int // realtime.SessionTypeGroup
	RoomID    string
	CreatedAt int64 // unix 秒
}

// Message 解码后的域消息。构造后不再修改。
// TEXT 元素 Body 为反序列化后的对象，GROUP_TIP 元素 Body 为操作码。
type Message struct {
	Body      any
	ChatType  int
	From      string
	To        string
	Seq       uint64
	Timestamp int64
}

// 监听器均为单槽位：重复注册静默覆盖前者，不是多订阅事件总线。
type (
	// MessageHandler 消息监听器
	MessageHandler func(Message)
	// ConnHandler 连接事件监听器
	ConnHandler func()
	// GroupSystemHandler 群系统通知监听器（op 见 realtime.GroupTip*）
	GroupSystemHandler func(op int, groupID string)
)

// Manager 群聊会话管理器。同一时刻至多持有一个会话，
// 不支持并发加入多个房间。
type Manager struct {
	transport realtime.Transport
	log       *zap.Logger

	mu          sync.Mutex
	connState   ConnState
	memberState MemberState
	session     *Session

	onMessage     MessageHandler
	onConnect     ConnHandler
	onDisconnect  ConnHandler
	onGroupSystem GroupSystemHandler
}

// NewManager 创建会话管理器
func NewManager(transport realtime.Transport) *Manager {
	return &Manager{
		transport: transport,
		log:       logger.Named("chat"),
	}
}

// OnMessage 注册消息监听器，重复注册覆盖前者
func (m *Manager) OnMessage(h MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = h
}

// OnConnect 注册连接恢复监听器
func (m *Manager) OnConnect(h ConnHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = h
}

// OnDisconnect 注册连接断开监听器
func (m *Manager) OnDisconnect(h ConnHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = h
}

// OnGroupEvent 注册群系统通知监听器
func (m *Manager) OnGroupEvent(h GroupSystemHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onGroupSystem = h
}

// Init 向实时传输层认证。失败是可恢复结果，折算成 ErrInitFailed。
func (m *Manager) Init(ctx context.Context, cred Credentials) error {
	m.setConnState(Connecting)

	err := m.transport.Login(ctx, realtime.LoginInfo{
		AppID:       cred.AppID,
		AccountType: cred.AccountType,
		Identifier:  cred.UID,
		UserSig:     cred.Sig,
		Nick:        cred.Nick,
	}, m)
	if err != nil {
		m.setConnState(Disconnected)
		m.log.Warn("transport login failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	m.setConnState(Connected)
	return nil
}

// JoinRoom 申请加入房间。仅当传输层明确报告 JoinedSuccess 时创建会话；
// 已持有会话时拒绝第二次加入。
func (m *Manager) JoinRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		metrics.ChatRoomJoins.WithLabelValues("already_joined").Inc()
		return ErrAlreadyJoined
	}
	m.memberState = Joining
	m.mu.Unlock()

	result, err := m.transport.JoinGroup(ctx, roomID)
	if err != nil || result.JoinedStatus != realtime.JoinedSuccess {
		m.mu.Lock()
		m.memberState = NotJoined
		m.mu.Unlock()
		metrics.ChatRoomJoins.WithLabelValues("rejected").Inc()
		if err != nil {
			m.log.Warn("join room failed", zap.String("room_id", roomID), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrJoinRejected, err)
		}
		m.log.Warn("join room rejected",
			zap.String("room_id", roomID),
			zap.String("joined_status", result.JoinedStatus),
		)
		return ErrJoinRejected
	}

	m.mu.Lock()
	m.session = &Session{
		Type:      realtime.SessionTypeGroup,
		RoomID:    roomID,
		CreatedAt: time.Now().Unix(),
	}
	m.memberState = Joined
	m.mu.Unlock()

	metrics.ChatRoomJoins.WithLabelValues("ok").Inc()
	m.log.Info("joined room", zap.String("room_id", roomID))
	return nil
}

// QuitRoom 退出房间。成功后无条件清除当前会话。
func (m *Manager) QuitRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	prev := m.memberState
	m.memberState = Leaving
	m.mu.Unlock()

	if err := m.transport.QuitGroup(ctx, roomID); err != nil {
		m.mu.Lock()
		m.memberState = prev
		m.mu.Unlock()
		m.log.Warn("quit room failed", zap.String("room_id", roomID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrQuitRejected, err)
	}

	m.mu.Lock()
	m.session = nil
	m.memberState = NotJoined
	m.mu.Unlock()

	m.log.Info("quit room", zap.String("room_id", roomID))
	return nil
}

// SendMessage 发送群文本消息。要求已有活跃会话。
// 载荷做两次 JSON 序列化以在传输层自身的文本转义下存活。
func (m *Manager) SendMessage(ctx context.Context, from string, body any) error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		metrics.ChatMessagesSent.WithLabelValues("not_joined").Inc()
		return ErrNotJoined
	}

	text, err := encodeText(body)
	if err != nil {
		metrics.ChatMessagesSent.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: %v", ErrSendRejected, err)
	}

	result, err := m.transport.SendGroupText(ctx, realtime.OutboundText{
		GroupID:   session.RoomID,
		From:      from,
		Text:      text,
		Random:    rand.Uint32(), // 消息随机数，传输层据此去重
		Timestamp: time.Now().Unix(),
	})
	if err != nil || result.ActionStatus != realtime.ActionStatusOK {
		metrics.ChatMessagesSent.WithLabelValues("rejected").Inc()
		if err != nil {
			m.log.Warn("send message failed", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrSendRejected, err)
		}
		m.log.Warn("send message rejected",
			zap.String("action_status", result.ActionStatus),
			zap.String("message", result.Message),
		)
		return ErrSendRejected
	}

	metrics.ChatMessagesSent.WithLabelValues("ok").Inc()
	return nil
}

// CurrentSession 返回当前会话，未加入时为 nil
func (m *Manager) CurrentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// ConnState 返回连接状态
func (m *Manager) ConnState() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connState
}

// MemberState 返回房间成员状态
func (m *Manager) MemberState() MemberState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memberState
}

func (m *Manager) setConnState(s ConnState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connState = s
}
