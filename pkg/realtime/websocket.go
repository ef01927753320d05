package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/qiminjie89/miniapp-sdk/pkg/logger"
)

var (
	ErrNotConnected = errors.New("transport not connected")
	ErrClosed       = errors.New("transport closed")
	ErrAuthRejected = errors.New("transport auth rejected")
)

// WSTransport 默认 WebSocket 传输层实现
type WSTransport struct {
	addr     string
	clientID string
	log      *zap.Logger

	seq     atomic.Uint64
	writeMu sync.Mutex // gorilla conn 的写操作不允许并发

	mu       sync.Mutex
	conn     *websocket.Conn
	listener Listener
	pending  map[uint64]chan *frame
	closeCh  chan struct{}

	closeOnce sync.Once
}

// NewWSTransport 创建 WebSocket 传输层
func NewWSTransport(addr string) *WSTransport {
	return &WSTransport{
		addr:     addr,
		clientID: uuid.NewString(),
		log:      logger.Named("realtime"),
		pending:  make(map[uint64]chan *frame),
		closeCh:  make(chan struct{}),
	}
}

// Login 建立连接并认证
func (t *WSTransport) Login(ctx context.Context, info LoginInfo, l Listener) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.addr, nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.listener = l
	t.mu.Unlock()

	go t.readLoop(conn)

	resp, err := t.call(ctx, msgTypeAuth, msgTypeAuthResp, &authReq{
		AppID:       info.AppID,
		AccountType: info.AccountType,
		Identifier:  info.Identifier,
		UserSig:     info.UserSig,
		Nick:        info.Nick,
		ClientID:    t.clientID,
	})
	if err != nil {
		t.Close()
		return err
	}

	var ar authResp
	if err := msgpack.Unmarshal(resp.Payload, &ar); err != nil {
		t.Close()
		return err
	}
	if !ar.Success {
		t.log.Warn("auth rejected",
			zap.Int("code", ar.Code),
			zap.String("message", ar.Message),
		)
		t.Close()
		return ErrAuthRejected
	}

	t.notifyConnStatus(StatusOn)
	return nil
}

// JoinGroup 申请加入大群
func (t *WSTransport) JoinGroup(ctx context.Context, groupID string) (*JoinResult, error) {
	resp, err := t.call(ctx, msgTypeJoinGroup, msgTypeJoinGroupResp, &joinReq{GroupID: groupID})
	if err != nil {
		return nil, err
	}

	var jr joinResp
	if err := msgpack.Unmarshal(resp.Payload, &jr); err != nil {
		return nil, err
	}
	return &JoinResult{JoinedStatus: jr.JoinedStatus, Code: jr.Code, Message: jr.Message}, nil
}

// QuitGroup 退出大群
func (t *WSTransport) QuitGroup(ctx context.Context, groupID string) error {
	resp, err := t.call(ctx, msgTypeQuitGroup, msgTypeQuitGroupResp, &quitReq{GroupID: groupID})
	if err != nil {
		return err
	}

	var qr quitResp
	if err := msgpack.Unmarshal(resp.Payload, &qr); err != nil {
		return err
	}
	if !qr.Success {
		return errors.New(qr.Message)
	}
	return nil
}

// SendGroupText 发送群文本消息
func (t *WSTransport) SendGroupText(ctx context.Context, msg OutboundText) (*SendResult, error) {
	resp, err := t.call(ctx, msgTypeSendMsg, msgTypeSendMsgResp, &sendReq{
		GroupID:   msg.GroupID,
		From:      msg.From,
		Text:      msg.Text,
		Random:    msg.Random,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		return nil, err
	}

	var sr sendResp
	if err := msgpack.Unmarshal(resp.Payload, &sr); err != nil {
		return nil, err
	}
	return &SendResult{ActionStatus: sr.ActionStatus, Code: sr.Code, Message: sr.Message}, nil
}

// Close 关闭通道
func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closeCh)

		t.mu.Lock()
		conn := t.conn
		for seq, ch := range t.pending {
			close(ch)
			delete(t.pending, seq)
		}
		t.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
	})
	return nil
}

// call 发送请求帧并等待对应 seq 的应答帧
func (t *WSTransport) call(ctx context.Context, reqType, respType uint32, payload interface{}) (*frame, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	seq := t.seq.Add(1)
	f, err := newFrame(reqType, seq, payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan *frame, 1)
	t.mu.Lock()
	t.pending[seq] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, seq)
		t.mu.Unlock()
	}()

	if err := t.writeFrame(conn, f); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closeCh:
		return nil, ErrClosed
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if resp.MsgType != respType {
			return nil, errInvalidFrame
		}
		return resp, nil
	}
}

// writeFrame 串行化写入
func (t *WSTransport) writeFrame(conn *websocket.Conn, f *frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, encodeFrame(f))
}

// readLoop 读循环：应答帧回填 pending，推送帧分发给监听器
func (t *WSTransport) readLoop(conn *websocket.Conn) {
	defer func() {
		t.notifyConnStatus(StatusOff)
	}()

	for {
		select {
		case <-t.closeCh:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.log.Debug("read error", zap.Error(err))
			}
			return
		}

		f, err := decodeFrame(data)
		if err != nil {
			t.log.Warn("decode frame error", zap.Error(err))
			continue
		}

		switch f.MsgType {
		case msgTypeAuthResp, msgTypeJoinGroupResp, msgTypeQuitGroupResp, msgTypeSendMsgResp:
			t.deliverResp(f)
		case msgTypePushBatch:
			t.handlePushBatch(f)
		case msgTypeGroupSystem:
			t.handleGroupSystem(f)
		case msgTypeConnStatus:
			t.handleConnStatus(f)
		default:
			t.log.Warn("unknown message type", zap.Uint32("msg_type", f.MsgType))
		}
	}
}

// deliverResp 按 seq 回填应答
func (t *WSTransport) deliverResp(f *frame) {
	t.mu.Lock()
	ch, ok := t.pending[f.Seq]
	t.mu.Unlock()
	if !ok {
		t.log.Debug("orphan response", zap.Uint64("seq", f.Seq))
		return
	}
	select {
	case ch <- f:
	default:
	}
}

// handlePushBatch 处理群消息批次推送
func (t *WSTransport) handlePushBatch(f *frame) {
	var batch pushBatch
	if err := msgpack.Unmarshal(f.Payload, &batch); err != nil {
		t.log.Warn("decode push batch failed", zap.Error(err))
		return
	}

	msgs := make([]RawMessage, 0, len(batch.Messages))
	for _, wm := range batch.Messages {
		elems := make([]Elem, 0, len(wm.Elems))
		for _, we := range wm.Elems {
			elems = append(elems, Elem{Type: we.Type, Content: we.Content, OpType: we.OpType})
		}
		msgs = append(msgs, RawMessage{
			From:        wm.From,
			SessionType: wm.SessionType,
			SessionID:   wm.SessionID,
			Seq:         wm.Seq,
			Timestamp:   wm.Timestamp,
			Elems:       elems,
		})
	}

	if l := t.currentListener(); l != nil {
		l.OnGroupMessages(msgs)
	}
}

// handleGroupSystem 处理群系统通知
func (t *WSTransport) handleGroupSystem(f *frame) {
	var notify groupSystemNotify
	if err := msgpack.Unmarshal(f.Payload, &notify); err != nil {
		t.log.Warn("decode group system notify failed", zap.Error(err))
		return
	}
	if l := t.currentListener(); l != nil {
		l.OnGroupSystem(notify.Op, notify.GroupID)
	}
}

// handleConnStatus 处理网关主动下发的连接状态
func (t *WSTransport) handleConnStatus(f *frame) {
	var notify connStatusNotify
	if err := msgpack.Unmarshal(f.Payload, &notify); err != nil {
		t.log.Warn("decode conn status notify failed", zap.Error(err))
		return
	}
	t.notifyConnStatus(notify.Code)
}

func (t *WSTransport) notifyConnStatus(code int) {
	if l := t.currentListener(); l != nil {
		l.OnConnStatus(code)
	}
}

func (t *WSTransport) currentListener() Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listener
}
