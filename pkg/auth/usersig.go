// Package auth 提供实时消息身份凭证（usersig）相关功能
//
// 正式环境的 usersig 由业务后端签发，客户端只透传；
// 本包同时提供开发环境的本地签发与校验，供 chatcli 和测试使用。
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSig = errors.New("invalid usersig")
	ErrSigExpired = errors.New("usersig expired")
)

// SigClaims usersig 的 JWT claims
type SigClaims struct {
	UserID string `json:"user_id"`
	AppID  string `json:"app_id,omitempty"`
	jwt.RegisteredClaims
}

// SigIssuer usersig 签发与校验器
type SigIssuer struct {
	secretKey []byte
}

// NewSigIssuer 创建签发器
func NewSigIssuer(secretKey string) *SigIssuer {
	return &SigIssuer{secretKey: []byte(secretKey)}
}

// Issue 签发 usersig
func (i *SigIssuer) Issue(userID, appID string, expiry time.Duration) (string, error) {
	claims := &SigClaims{
		UserID: userID,
		AppID:  appID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secretKey)
}

// Verify 校验 usersig
func (i *SigIssuer) Verify(sig string) (*SigClaims, error) {
	token, err := jwt.ParseWithClaims(sig, &SigClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSig
		}
		return i.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSigExpired
		}
		return nil, ErrInvalidSig
	}

	claims, ok := token.Claims.(*SigClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSig
	}
	return claims, nil
}

// IsDevSig 判断是否开发环境 mock 凭证（空串或 dev_ 前缀）
func IsDevSig(sig string) bool {
	return sig == "" || (len(sig) >= 4 && sig[:4] == "dev_")
}

// VerifyOrMock 校验 usersig；开发环境凭证直接放行
func (i *SigIssuer) VerifyOrMock(sig, mockUserID string) (*SigClaims, error) {
	if IsDevSig(sig) {
		return &SigClaims{UserID: mockUserID}, nil
	}
	return i.Verify(sig)
}
