// Package sign 实现业务网关的请求签名算法
//
// 算法与后端约定一致，不可变动：
//  1. 丢弃值为 nil 的参数
//  2. 按 key 升序展开为 key、value 交替的序列
//  3. 追加固定尾部: timestamp、<unix秒>、appkey、<appKey>、<secretKey>
//  4. 全部拼接成一个字符串并转小写
//  5. 按 JS encodeURIComponent 规则做百分号编码，再次转小写
//  6. 对字符串的单个字符按码点升序排序后重新拼接
//  7. 取 MD5 十六进制值作为 token
package sign

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Sign 对 params 签名，返回合并了 token、appkey、timestamp 的完整参数集。
// params 中值为 nil 的项不参与签名也不出现在结果里。
func Sign(params map[string]any, appKey, secretKey string) map[string]any {
	return SignAt(params, appKey, secretKey, time.Now())
}

// SignAt 以指定时间签名，时间固定时结果确定，供测试与重放校验使用。
func SignAt(params map[string]any, appKey, secretKey string, now time.Time) map[string]any {
	timestamp := strconv.FormatInt(now.Unix(), 10)

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2+5)
	for _, k := range keys {
		pairs = append(pairs, k, formatValue(params[k]))
	}
	pairs = append(pairs, "timestamp", timestamp, "appkey", appKey, secretKey)

	token := Token(strings.Join(pairs, ""))

	signed := make(map[string]any, len(keys)+3)
	for _, k := range keys {
		signed[k] = params[k]
	}
	signed["token"] = token
	signed["appkey"] = appKey
	signed["timestamp"] = timestamp
	return signed
}

// Token 对已拼接的签名串做规范化并计算 MD5 token。
func Token(joined string) string {
	encoded := strings.ToLower(encodeURIComponent(strings.ToLower(joined)))

	// 编码后只剩 ASCII，按字节排序等价于按码点排序
	chars := []byte(encoded)
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })

	sum := md5.Sum(chars)
	return hex.EncodeToString(sum[:])
}

// formatValue 按 JS String() 的规则把标量转成字符串参与签名
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

const uriUnreserved = "-_.!~*'()"

// encodeURIComponent 复刻 JS 同名函数的转义集：
// A-Z a-z 0-9 - _ . ! ~ * ' ( ) 保留，其余按 UTF-8 字节转 %XX。
func encodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z',
			c >= 'a' && c <= 'z',
			c >= '0' && c <= '9',
			strings.IndexByte(uriUnreserved, c) >= 0:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0x0f])
		}
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"
