package login

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/miniapp-sdk/internal/api"
)

type fakePlatform struct {
	code       string
	profile    *Profile
	auth       *api.AuthPayload
	loginErr   error
	profileErr error
}

func (f *fakePlatform) Login(context.Context) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.code, nil
}

func (f *fakePlatform) UserProfile(context.Context) (*Profile, *api.AuthPayload, error) {
	if f.profileErr != nil {
		return nil, nil, f.profileErr
	}
	return f.profile, f.auth, nil
}

// fakeBackend 按路径分发的假网关传输层
type fakeBackend struct {
	mu         sync.Mutex
	loginCalls int
	vipCalls   int

	loginBody string
	vipBody   string
	vipStatus int

	release chan struct{} // 非 nil 时登录接口阻塞到其关闭
}

func (f *fakeBackend) Send(_ context.Context, url string, _ []byte) (*api.Response, error) {
	switch {
	case strings.Contains(url, "/login.do"):
		f.mu.Lock()
		f.loginCalls++
		release := f.release
		f.mu.Unlock()
		if release != nil {
			<-release
		}
		return &api.Response{ErrMsg: api.ErrMsgOK, StatusCode: 200, Data: []byte(f.loginBody)}, nil

	case strings.Contains(url, "/get_user_vip_info.do"):
		f.mu.Lock()
		f.vipCalls++
		f.mu.Unlock()
		status := f.vipStatus
		if status == 0 {
			status = 200
		}
		return &api.Response{ErrMsg: api.ErrMsgOK, StatusCode: status, Data: []byte(f.vipBody)}, nil
	}
	return &api.Response{ErrMsg: api.ErrMsgOK, StatusCode: 404}, nil
}

func (f *fakeBackend) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.vipCalls
}

const okLoginBody = `{"meta":{"state":"success"},"data":{"uid":"10086","uname":"backend-name","avatar_url":"https://cdn/a.png","version":"9.9.9"}}`
const okVipBody = `{"meta":{"state":"success"},"data":{"level":3}}`

func newTestCoordinator(backend *fakeBackend, platform Platform, waitTimeout time.Duration) *Coordinator {
	agent := api.NewAgent("https://backend", "k", "s", "wxapp001", "1.4.0", backend)
	return NewCoordinator(api.NewAPI(agent, "wxapp001"), platform, "1.4.0", waitTimeout)
}

func okPlatform() *fakePlatform {
	return &fakePlatform{
		code:    "code123",
		profile: &Profile{NickName: "platform-name", AvatarURL: "https://cdn/p.png"},
		auth:    &api.AuthPayload{Signature: "sig", EncryptedData: "enc", IV: "iv"},
	}
}

func TestGetUserSuccess(t *testing.T) {
	backend := &fakeBackend{loginBody: okLoginBody, vipBody: okVipBody}
	c := newTestCoordinator(backend, okPlatform(), 0)

	user, err := c.GetUser(context.Background(), false)
	require.NoError(t, err)

	// 后端返回的字段覆盖平台资料
	assert.Equal(t, "10086", user.UID)
	assert.Equal(t, "backend-name", user.NickName)
	assert.Equal(t, "https://cdn/a.png", user.AvatarURL)
	assert.JSONEq(t, `{"level":3}`, string(user.VIP))
	assert.False(t, c.InReview())
}

func TestGetUserCachedNoNetwork(t *testing.T) {
	backend := &fakeBackend{loginBody: okLoginBody, vipBody: okVipBody}
	c := newTestCoordinator(backend, okPlatform(), 0)

	first, err := c.GetUser(context.Background(), false)
	require.NoError(t, err)

	second, err := c.GetUser(context.Background(), false)
	require.NoError(t, err)
	assert.Same(t, first, second)

	loginCalls, vipCalls := backend.counts()
	assert.Equal(t, 1, loginCalls)
	assert.Equal(t, 1, vipCalls)
}

func TestGetUserRefreshRunsAgain(t *testing.T) {
	backend := &fakeBackend{loginBody: okLoginBody, vipBody: okVipBody}
	c := newTestCoordinator(backend, okPlatform(), 0)

	_, err := c.GetUser(context.Background(), false)
	require.NoError(t, err)

	_, err = c.GetUser(context.Background(), true)
	require.NoError(t, err)

	loginCalls, _ := backend.counts()
	assert.Equal(t, 2, loginCalls)
}

func TestGetUserSingleFlight(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{loginBody: okLoginBody, vipBody: okVipBody, release: release}
	c := newTestCoordinator(backend, okPlatform(), 5*time.Second)

	type outcome struct {
		user *User
		err  error
	}
	results := make(chan outcome, 2)

	go func() {
		u, err := c.GetUser(context.Background(), false)
		results <- outcome{u, err}
	}()

	// 等第一次登录进入在途
	require.Eventually(t, func() bool {
		n, _ := backend.counts()
		return n == 1
	}, time.Second, 5*time.Millisecond)

	go func() {
		u, err := c.GetUser(context.Background(), false)
		results <- outcome{u, err}
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)

	a := <-results
	b := <-results
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Equal(t, a.user.UID, b.user.UID)

	// 并发两次调用只执行了一次登录序列
	loginCalls, _ := backend.counts()
	assert.Equal(t, 1, loginCalls)
}

func TestGetUserWaitTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	backend := &fakeBackend{loginBody: okLoginBody, vipBody: okVipBody, release: release}
	c := newTestCoordinator(backend, okPlatform(), 30*time.Millisecond)

	go c.GetUser(context.Background(), false)

	require.Eventually(t, func() bool {
		n, _ := backend.counts()
		return n == 1
	}, time.Second, 5*time.Millisecond)

	_, err := c.GetUser(context.Background(), false)
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestGetUserNameRejected(t *testing.T) {
	backend := &fakeBackend{
		loginBody: `{"meta":{"state":"fail","code":"999","message":"名字不合法"}}`,
	}
	c := newTestCoordinator(backend, okPlatform(), 0)

	_, err := c.GetUser(context.Background(), false)
	require.Error(t, err)
	assert.True(t, IsNameRejected(err))
}

func TestGetUserBackendError(t *testing.T) {
	backend := &fakeBackend{
		loginBody: `{"meta":{"state":"fail","code":"500","message":"server busy"}}`,
	}
	c := newTestCoordinator(backend, okPlatform(), 0)

	_, err := c.GetUser(context.Background(), false)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.StatusBackendError, apiErr.Status)
	assert.Equal(t, "server busy", apiErr.Msg)

	// 失败后状态回到 Idle，可再次发起
	backend.loginBody = okLoginBody
	backend.vipBody = okVipBody
	_, err = c.GetUser(context.Background(), false)
	assert.NoError(t, err)
}

func TestGetUserVipEnrichmentFailureSwallowed(t *testing.T) {
	backend := &fakeBackend{loginBody: okLoginBody, vipStatus: 500}
	c := newTestCoordinator(backend, okPlatform(), 0)

	user, err := c.GetUser(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, user.VIP)
}

func TestGetUserInReview(t *testing.T) {
	backend := &fakeBackend{
		loginBody: `{"meta":{"state":"success"},"data":{"uid":"1","uname":"n","avatar_url":"a","version":"1.4.0"}}`,
	}
	c := newTestCoordinator(backend, okPlatform(), 0)

	_, err := c.GetUser(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, c.InReview())
}

func TestGetUserNeedPhoneCaptured(t *testing.T) {
	backend := &fakeBackend{
		loginBody: `{"meta":{"state":"success"},"data":{"uid":"1","uname":"n","need_phone":1,"open_id":"oid123"}}`,
	}
	c := newTestCoordinator(backend, okPlatform(), 0)

	_, err := c.GetUser(context.Background(), false)
	require.NoError(t, err)

	binding := c.PendingPhoneBinding()
	require.NotNil(t, binding)
	assert.Equal(t, "1", binding.UID)
	assert.Equal(t, "oid123", binding.OpenID)
}

func TestAuthDeniedClassification(t *testing.T) {
	platform := okPlatform()
	platform.profileErr = errors.New("getUserInfo:fail auth deny")
	c := newTestCoordinator(&fakeBackend{}, platform, 0)

	_, err := c.GetUser(context.Background(), false)
	require.Error(t, err)
	assert.True(t, IsAuthDenied(err))
	assert.False(t, IsUnauthorized(err))

	// 完全未授权需要引导到手动授权流程
	platform.profileErr = errors.New("getUserInfo:fail scope unauthorized")
	_, err = c.GetUser(context.Background(), true)
	require.Error(t, err)
	assert.True(t, IsAuthDenied(err))
	assert.True(t, IsUnauthorized(err))
}

func TestPlatformLoginFailure(t *testing.T) {
	platform := okPlatform()
	platform.loginErr = errors.New("login:fail network")
	c := newTestCoordinator(&fakeBackend{}, platform, 0)

	_, err := c.GetUser(context.Background(), false)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.StatusPlatformLogin, apiErr.Status)
	assert.False(t, IsAuthDenied(err))
}
