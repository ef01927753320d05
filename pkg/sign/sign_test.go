package sign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Unix(1519877580, 0)

func TestSignAtDeterministic(t *testing.T) {
	params := map[string]any{
		"uid":     "10086",
		"app_id":  "wx1234567890",
		"version": "1.4.0",
		"scene":   1036,
	}

	a := SignAt(params, "testkey", "testsecret", fixedTime)
	b := SignAt(params, "testkey", "testsecret", fixedTime)
	assert.Equal(t, a["token"], b["token"])
	assert.Equal(t, a["timestamp"], b["timestamp"])
}

func TestSignAtAvalanche(t *testing.T) {
	base := map[string]any{"uid": "10086", "keyword": "golang"}

	orig := SignAt(base, "testkey", "testsecret", fixedTime)

	// 任一值改动一个字符，token 必须变化
	mutated := map[string]any{"uid": "10087", "keyword": "golang"}
	changed := SignAt(mutated, "testkey", "testsecret", fixedTime)
	assert.NotEqual(t, orig["token"], changed["token"])

	// 时间戳变化同样导致 token 变化
	later := SignAt(base, "testkey", "testsecret", fixedTime.Add(time.Second))
	assert.NotEqual(t, orig["token"], later["token"])

	// 密钥变化导致 token 变化
	otherSecret := SignAt(base, "testkey", "othersecret", fixedTime)
	assert.NotEqual(t, orig["token"], otherSecret["token"])
}

func TestSignAtEmptyParams(t *testing.T) {
	signed := SignAt(map[string]any{}, "testkey", "testsecret", fixedTime)

	require.Contains(t, signed, "token")
	assert.Len(t, signed["token"], 32)
	assert.Equal(t, "testkey", signed["appkey"])
	assert.Equal(t, "1519877580", signed["timestamp"])

	// nil 入参与空 map 等价
	nilSigned := SignAt(nil, "testkey", "testsecret", fixedTime)
	assert.Equal(t, signed["token"], nilSigned["token"])
}

func TestSignAtDropsNilValues(t *testing.T) {
	withNil := SignAt(map[string]any{"uid": "1", "share_id": nil}, "k", "s", fixedTime)
	without := SignAt(map[string]any{"uid": "1"}, "k", "s", fixedTime)

	assert.Equal(t, without["token"], withNil["token"])
	assert.NotContains(t, withNil, "share_id")
}

func TestSignAtMergesOriginalParams(t *testing.T) {
	signed := SignAt(map[string]any{"uid": "10086", "scene": 1036}, "k", "s", fixedTime)

	assert.Equal(t, "10086", signed["uid"])
	assert.Equal(t, 1036, signed["scene"])
	assert.Contains(t, signed, "token")
	assert.Contains(t, signed, "appkey")
	assert.Contains(t, signed, "timestamp")
}

// 展开序列不保留 key/value 边界，"a"+"bc" 与 "ab"+"c" 拼接结果一致。
// 这是与后端约定的算法的既有特性，在此固化防止实现走样。
func TestSignAtBoundaryFree(t *testing.T) {
	a := SignAt(map[string]any{"a": "bc"}, "k", "s", fixedTime)
	b := SignAt(map[string]any{"ab": "c"}, "k", "s", fixedTime)
	assert.Equal(t, a["token"], b["token"])
}

func TestTokenSortsCharacters(t *testing.T) {
	// 字符排序后拼接，顺序不同但字符集相同的输入产生相同 token
	assert.Equal(t, Token("abc"), Token("cba"))
	assert.NotEqual(t, Token("abc"), Token("abd"))
}

func TestEncodeURIComponentEscapeSet(t *testing.T) {
	// JS encodeURIComponent 的保留字符原样通过
	assert.Equal(t, "abc-_.!~*'()123", encodeURIComponent("abc-_.!~*'()123"))
	// 空格、加号、斜杠等需要转义，十六进制为大写
	assert.Equal(t, "a%20b", encodeURIComponent("a b"))
	assert.Equal(t, "%2B%2F%3D%26", encodeURIComponent("+/=&"))
	// 非 ASCII 按 UTF-8 字节逐个转义
	assert.Equal(t, "%E4%B8%AD", encodeURIComponent("中"))
}
