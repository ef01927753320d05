package chat

import (
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/qiminjie89/miniapp-sdk/pkg/metrics"
	"github.com/qiminjie89/miniapp-sdk/pkg/realtime"
)

// Manager 实现 realtime.Listener，由传输层在推送时回调。

// OnConnStatus 连接状态通知。已知状态码映射为 connect/disconnect 事件，
// 未知状态码记日志后忽略，不触发任何监听器。
func (m *Manager) OnConnStatus(code int) {
	switch code {
	case realtime.StatusOn:
		m.setConnState(Connected)
		metrics.ChatConnectionEvents.WithLabelValues("connect").Inc()
		if h := m.connectHandler(); h != nil {
			h()
		}
	case realtime.StatusOff:
		m.setConnState(Disconnected)
		metrics.ChatConnectionEvents.WithLabelValues("disconnect").Inc()
		m.log.Warn("connection lost")
		if h := m.disconnectHandler(); h != nil {
			h()
		}
	default:
		metrics.ChatConnectionEvents.WithLabelValues("unknown").Inc()
		m.log.Warn("unknown connection status", zap.Int("code", code))
	}
}

// OnGroupMessages 群消息批次。传输层按时间从新到旧交付，
// 这里倒序回放，让监听器按时间先后收到消息。
func (m *Manager) OnGroupMessages(batch []realtime.RawMessage) {
	for i := len(batch) - 1; i >= 0; i-- {
		m.handleMessage(batch[i])
	}
}

// OnGroupSystem 群系统通知（解散/回收/自定义等操作码）
func (m *Manager) OnGroupSystem(op int, groupID string) {
	m.log.Info("group system notify", zap.Int("op", op), zap.String("group_id", groupID))
	if h := m.groupSystemHandler(); h != nil {
		h(op, groupID)
	}
}

// handleMessage 解码单条消息并投递给监听器。只解码首个内容元素。
func (m *Manager) handleMessage(raw realtime.RawMessage) {
	if len(raw.Elems) == 0 {
		m.log.Debug("message without elements", zap.String("from", raw.From))
		return
	}

	elem := raw.Elems[0]
	body, err := decodeElem(elem)
	if err != nil {
		metrics.ChatMessagesReceived.WithLabelValues("unknown").Inc()
		m.log.Warn("decode message element failed",
			zap.String("type", elem.Type),
			zap.Error(err),
		)
		return
	}

	switch elem.Type {
	case realtime.ElemTypeText:
		metrics.ChatMessagesReceived.WithLabelValues("text").Inc()
	case realtime.ElemTypeGroupTip:
		metrics.ChatMessagesReceived.WithLabelValues("group_tip").Inc()
	}

	msg := Message{
		Body:      body,
		ChatType:  raw.SessionType,
		From:      raw.From,
		To:        raw.SessionID,
		Seq:       raw.Seq,
		Timestamp: raw.Timestamp,
	}

	if h := m.messageHandler(); h != nil {
		h(msg)
	}
}

var errUnknownElemType = errors.New("unknown element type")

// decodeElem 解码消息元素。TEXT 反转双重编码，GROUP_TIP 暴露操作码。
func decodeElem(elem realtime.Elem) (any, error) {
	switch elem.Type {
	case realtime.ElemTypeText:
		return decodeText(elem.Content)
	case realtime.ElemTypeGroupTip:
		return elem.OpType, nil
	default:
		return nil, errUnknownElemType
	}
}

// encodeText 两次 JSON 序列化出站载荷。
// 传输层会转义文本元素中的引号，单层编码无法原样到达对端。
func encodeText(body any) (string, error) {
	inner, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		return "", err
	}
	return string(outer), nil
}

// decodeText 反转 encodeText：先还原被转义成 &quot; 的引号，再两次反序列化
func decodeText(content string) (any, error) {
	unescaped := strings.ReplaceAll(content, "&quot;", `"`)

	var inner string
	if err := json.Unmarshal([]byte(unescaped), &inner); err != nil {
		return nil, err
	}

	var body any
	if err := json.Unmarshal([]byte(inner), &body); err != nil {
		return nil, err
	}
	return body, nil
}

func (m *Manager) messageHandler() MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onMessage
}

func (m *Manager) connectHandler() ConnHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onConnect
}

func (m *Manager) disconnectHandler() ConnHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onDisconnect
}

func (m *Manager) groupSystemHandler() GroupSystemHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onGroupSystem
}
