// Package realtime 定义实时消息传输层的契约与默认 WebSocket 实现
//
// 传输层被视为不透明协作方：会话管理按本包契约驱动它，
// 不关心其内部线上协议。默认实现走本项目的开发网关帧协议。
package realtime

import "context"

// 会话类型
const (
	SessionTypeInvalid = 0
	SessionTypeC2C     = 1
	SessionTypeGroup   = 2
	SessionTypeSystem  = 3
)

// 连接状态码（传输层通知里携带）
const (
	StatusOff = 0 // 连接断开
	StatusOn  = 1 // 连接正常
)

// 群系统通知操作码
const (
	GroupTipDestroyed = 5   // 群被解散（全员接收）
	GroupTipRevoked   = 11  // 群已被回收（全员接收）
	GroupTipCustom    = 255 // 用户自定义通知
)

// 消息元素类型
const (
	ElemTypeText     = "TEXT"
	ElemTypeGroupTip = "GROUP_TIP"
)

// 响应状态哨兵值
const (
	JoinedSuccess  = "JoinedSuccess" // 入群成功的唯一合法状态
	ActionStatusOK = "OK"            // 发送成功的唯一合法状态
)

// LoginInfo 传输层登录凭证
type LoginInfo struct {
	AppID       string
	AccountType int
	Identifier  string // 当前用户 id
	UserSig     string // 身份凭证，由业务后端签发
	Nick        string
}

// Elem 消息元素。Content 仅对 TEXT 有效，OpType 仅对 GROUP_TIP 有效。
type Elem struct {
	Type    string
	Content string
	OpType  int
}

// RawMessage 传输层送达的原始消息
type RawMessage struct {
	From        string
	SessionType int
	SessionID   string // 消息归属会话（群聊即群 id）
	Seq         uint64
	Timestamp   int64
	Elems       []Elem
}

// OutboundText 待发送的群文本消息。Text 为上层编码完成的载荷。
type OutboundText struct {
	GroupID   string
	From      string
	Text      string
	Random    uint32 // 去重随机数
	Timestamp int64
}

// JoinResult 入群应答
type JoinResult struct {
	JoinedStatus string
	Code         int
	Message      string
}

// SendResult 发送应答
type SendResult struct {
	ActionStatus string
	Code         int
	Message      string
}

// Listener 推送通知监听器。由会话管理在 Login 时注册一次。
// 批次约定：OnGroupMessages 的 batch 按时间从新到旧排列。
type Listener interface {
	// OnConnStatus 连接状态通知
	OnConnStatus(code int)
	// OnGroupMessages 群消息批次（从新到旧）
	OnGroupMessages(batch []RawMessage)
	// OnGroupSystem 群系统通知
	OnGroupSystem(op int, groupID string)
}

// Transport 实时消息传输层接口
//
// 业务上可预期的失败（鉴权被拒、入群被拒、发送被拒）通过应答结构
// 里的状态字段表达；error 仅用于传输层本身的故障。
type Transport interface {
	// Login 认证并建立通道，注册推送监听器
	Login(ctx context.Context, info LoginInfo, l Listener) error
	// JoinGroup 申请加入大群
	JoinGroup(ctx context.Context, groupID string) (*JoinResult, error)
	// QuitGroup 退出大群
	QuitGroup(ctx context.Context, groupID string) error
	// SendGroupText 发送群文本消息
	SendGroupText(ctx context.Context, msg OutboundText) (*SendResult, error)
	// Close 关闭通道
	Close() error
}
