package realtime

import (
	"encoding/binary"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

/*
开发网关 WebSocket 消息帧格式：
+----------+----------+----------+------------------+
|  MsgType |   Seq    |  Length  |     Payload      |
|  4 bytes |  8 bytes |  4 bytes |   变长 (msgpack)  |
+----------+----------+----------+------------------+
*/

const (
	headerSize    = 16      // 4 + 8 + 4
	maxPayloadLen = 1 << 20 // 1MB
)

var (
	errPayloadTooLarge = errors.New("payload too large")
	errInvalidFrame    = errors.New("invalid frame")
)

// 客户端 → 网关
const (
	msgTypeAuth      uint32 = 0x0001 // 认证请求
	msgTypeJoinGroup uint32 = 0x0002 // 入群
	msgTypeQuitGroup uint32 = 0x0003 // 退群
	msgTypeSendMsg   uint32 = 0x0004 // 发送群消息
)

// 网关 → 客户端
const (
	msgTypeAuthResp      uint32 = 0x1001 // 认证应答
	msgTypeJoinGroupResp uint32 = 0x1002 // 入群应答
	msgTypeQuitGroupResp uint32 = 0x1003 // 退群应答
	msgTypeSendMsgResp   uint32 = 0x1004 // 发送应答
	msgTypePushBatch     uint32 = 0x1010 // 群消息批次推送
	msgTypeGroupSystem   uint32 = 0x1011 // 群系统通知
	msgTypeConnStatus    uint32 = 0x1012 // 连接状态通知
)

// frame 一个消息帧
type frame struct {
	MsgType uint32
	Seq     uint64
	Payload []byte
}

// encodeFrame 编码消息帧
func encodeFrame(f *frame) []byte {
	payloadLen := len(f.Payload)
	buf := make([]byte, headerSize+payloadLen)

	binary.BigEndian.PutUint32(buf[0:4], f.MsgType)
	binary.BigEndian.PutUint64(buf[4:12], f.Seq)
	binary.BigEndian.PutUint32(buf[12:16], uint32(payloadLen))

	if payloadLen > 0 {
		copy(buf[headerSize:], f.Payload)
	}

	return buf
}

// decodeFrame 解码消息帧
func decodeFrame(data []byte) (*frame, error) {
	if len(data) < headerSize {
		return nil, errInvalidFrame
	}

	msgType := binary.BigEndian.Uint32(data[0:4])
	seq := binary.BigEndian.Uint64(data[4:12])
	payloadLen := binary.BigEndian.Uint32(data[12:16])

	if payloadLen > maxPayloadLen {
		return nil, errPayloadTooLarge
	}

	expectedLen := headerSize + int(payloadLen)
	if len(data) < expectedLen {
		return nil, errInvalidFrame
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		copy(payload, data[headerSize:expectedLen])
	}

	return &frame{
		MsgType: msgType,
		Seq:     seq,
		Payload: payload,
	}, nil
}

// newFrame 编码 payload 并构造帧
func newFrame(msgType uint32, seq uint64, payload interface{}) (*frame, error) {
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &frame{MsgType: msgType, Seq: seq, Payload: data}, nil
}

// 帧载荷结构

type authReq struct {
	AppID       string `msgpack:"app_id"`
	AccountType int    `msgpack:"account_type"`
	Identifier  string `msgpack:"identifier"`
	UserSig     string `msgpack:"usersig"`
	Nick        string `msgpack:"nick"`
	ClientID    string `msgpack:"client_id"`
}

type authResp struct {
	Success bool   `msgpack:"success"`
	Code    int    `msgpack:"code"`
	Message string `msgpack:"message"`
}

type joinReq struct {
	GroupID string `msgpack:"group_id"`
}

type joinResp struct {
	JoinedStatus string `msgpack:"joined_status"`
	Code         int    `msgpack:"code"`
	Message      string `msgpack:"message"`
}

type quitReq struct {
	GroupID string `msgpack:"group_id"`
}

type quitResp struct {
	Success bool   `msgpack:"success"`
	Code    int    `msgpack:"code"`
	Message string `msgpack:"message"`
}

type sendReq struct {
	GroupID   string `msgpack:"group_id"`
	From      string `msgpack:"from"`
	Text      string `msgpack:"text"`
	Random    uint32 `msgpack:"random"`
	Timestamp int64  `msgpack:"timestamp"`
}

type sendResp struct {
	ActionStatus string `msgpack:"action_status"`
	Code         int    `msgpack:"code"`
	Message      string `msgpack:"message"`
}

type wireElem struct {
	Type    string `msgpack:"type"`
	Content string `msgpack:"content,omitempty"`
	OpType  int    `msgpack:"op_type,omitempty"`
}

type wireMessage struct {
	From        string     `msgpack:"from"`
	SessionType int        `msgpack:"session_type"`
	SessionID   string     `msgpack:"session_id"`
	Seq         uint64     `msgpack:"seq"`
	Timestamp   int64      `msgpack:"timestamp"`
	Elems       []wireElem `msgpack:"elems"`
}

type pushBatch struct {
	Messages []wireMessage `msgpack:"messages"` // 从新到旧
}

type groupSystemNotify struct {
	Op      int    `msgpack:"op"`
	GroupID string `msgpack:"group_id"`
}

type connStatusNotify struct {
	Code int `msgpack:"code"`
}
