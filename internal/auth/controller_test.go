package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/api"
	"github.com/aksea/PangGuai-Web/internal/auth"
	"github.com/aksea/PangGuai-Web/internal/config"
	"github.com/aksea/PangGuai-Web/internal/mocks"
	"github.com/aksea/PangGuai-Web/internal/notify"
	"github.com/aksea/PangGuai-Web/internal/session"
)

const (
	testPhone = "13800138000"
	waitUnit  = 40 * time.Millisecond
)

type fakeExchanger struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeExchanger) Login(ctx context.Context, phone, tok string) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tok)
	if f.err != nil {
		return session.Session{}, f.err
	}
	return session.Session{Token: "sess-" + tok[:8], UserID: "7"}, nil
}

func (f *fakeExchanger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeVerifier struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeVerifier) VerifyCode(ctx context.Context, phone, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func newController(t *testing.T, exchange *fakeExchanger) (*auth.Controller, *mocks.Notifier) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	notifier := mocks.NewNotifier()
	cfg := config.AuthConfig{
		WaitDeadline:  waitUnit,
		RedirectDelay: time.Millisecond,
	}
	ctl := auth.NewController(ctx, cfg, exchange, &fakeVerifier{}, notifier, zap.NewNop())
	ctl.SetPhone(testPhone)
	return ctl, notifier
}

func TestReportToken_IdempotentUnderRepetition(t *testing.T) {
	exchange := &fakeExchanger{}
	ctl, _ := newController(t, exchange)

	tok := strings.Repeat("a", 30)
	ctl.ReportToken(tok, "interceptor")
	ctl.ReportToken(tok, "interceptor")

	assert.Equal(t, 1, exchange.callCount())
}

func TestReportToken_DistinctTokensBothReported(t *testing.T) {
	exchange := &fakeExchanger{}
	ctl, _ := newController(t, exchange)

	ctl.ReportToken(strings.Repeat("a", 30), "interceptor")
	ctl.ReportToken(strings.Repeat("b", 30), "interceptor")

	assert.Equal(t, 2, exchange.callCount())
}

func TestReportToken_GatedOnPlausibilityAndPhone(t *testing.T) {
	exchange := &fakeExchanger{}
	ctl, _ := newController(t, exchange)

	ctl.ReportToken("short", "interceptor")
	assert.Equal(t, 0, exchange.callCount())

	ctl.SetPhone("12345")
	ctl.ReportToken(strings.Repeat("a", 30), "interceptor")
	assert.Equal(t, 0, exchange.callCount())
}

func TestSubmitCode_TimeoutExactlyOnce(t *testing.T) {
	exchange := &fakeExchanger{}
	ctl, notifier := newController(t, exchange)

	ctl.SubmitCode(context.Background(), "123456")
	require.True(t, ctl.Waiting())

	states := notifier.ControlStates(notify.ControlSubmitCode)
	require.NotEmpty(t, states)
	assert.Equal(t, notify.ControlDisabled, states[len(states)-1])

	time.Sleep(3 * waitUnit)

	assert.False(t, ctl.Waiting())
	timeouts := 0
	for _, msg := range notifier.Messages(notify.RegionAuth) {
		if strings.Contains(msg, "超时") {
			timeouts++
		}
	}
	assert.Equal(t, 1, timeouts)

	states = notifier.ControlStates(notify.ControlSubmitCode)
	assert.Equal(t, notify.ControlReady, states[len(states)-1])
}

func TestSubmitCode_CaptureSupersedesDeadline(t *testing.T) {
	exchange := &fakeExchanger{}
	ctl, notifier := newController(t, exchange)

	ctl.SubmitCode(context.Background(), "123456")
	require.True(t, ctl.Waiting())

	// Capture lands just before the deadline.
	time.Sleep(waitUnit / 2)
	ctl.ReportToken(strings.Repeat("c", 30), "interceptor")

	time.Sleep(3 * waitUnit)

	assert.Equal(t, 1, exchange.callCount())
	for _, msg := range notifier.Messages(notify.RegionAuth) {
		assert.NotContains(t, msg, "超时")
	}
}

func TestSubmitCode_ReentryCancelsPreviousTimer(t *testing.T) {
	exchange := &fakeExchanger{}
	ctl, notifier := newController(t, exchange)

	ctl.SubmitCode(context.Background(), "1234")
	time.Sleep(waitUnit / 2)
	ctl.SubmitCode(context.Background(), "5678")

	time.Sleep(3 * waitUnit)

	timeouts := 0
	for _, msg := range notifier.Messages(notify.RegionAuth) {
		if strings.Contains(msg, "超时") {
			timeouts++
		}
	}
	assert.Equal(t, 1, timeouts)
}

func TestSubmitCode_LocalValidation(t *testing.T) {
	exchange := &fakeExchanger{}
	ctl, notifier := newController(t, exchange)

	ctl.SubmitCode(context.Background(), "12")
	assert.False(t, ctl.Waiting())
	assert.Contains(t, notifier.LastMessage(notify.RegionAuth), "验证码")

	ctl.SetPhone("0000")
	ctl.SubmitCode(context.Background(), "123456")
	assert.False(t, ctl.Waiting())
	assert.Contains(t, notifier.LastMessage(notify.RegionAuth), "手机号")
}

func TestLogin_BusinessRefusalSurfacedEvenWhenSilent(t *testing.T) {
	exchange := &fakeExchanger{err: &api.BusinessError{Msg: "用户信息缺失"}}
	ctl, notifier := newController(t, exchange)

	ctl.Login(context.Background(), testPhone, strings.Repeat("d", 30), true)

	assert.Equal(t, "用户信息缺失", notifier.LastMessage(notify.RegionAuth))
}

func TestLogin_TransportFailureSilencedForCaptures(t *testing.T) {
	exchange := &fakeExchanger{err: &api.TransportError{Err: errors.New("dial refused")}}
	ctl, notifier := newController(t, exchange)

	before := len(notifier.Messages(notify.RegionAuth))
	ctl.Login(context.Background(), testPhone, strings.Repeat("e", 30), true)
	assert.Equal(t, before, len(notifier.Messages(notify.RegionAuth)))

	ctl.Login(context.Background(), testPhone, strings.Repeat("e", 30), false)
	assert.Contains(t, notifier.LastMessage(notify.RegionAuth), "登录失败")
}

func TestLogin_SchedulesHandoffAfterDelay(t *testing.T) {
	exchange := &fakeExchanger{}
	ctl, _ := newController(t, exchange)

	done := make(chan session.Session, 1)
	ctl.OnAuthenticated(func(s session.Session) { done <- s })

	ctl.Login(context.Background(), testPhone, strings.Repeat("f", 30), false)

	select {
	case sess := <-done:
		assert.Equal(t, "7", sess.UserID)
	case <-time.After(time.Second):
		t.Fatal("handoff never fired")
	}
}

func TestValidPhone(t *testing.T) {
	assert.True(t, auth.ValidPhone("13912345678"))
	assert.True(t, auth.ValidPhone("19900000000"))
	assert.False(t, auth.ValidPhone("12912345678"))
	assert.False(t, auth.ValidPhone("1391234567"))
	assert.False(t, auth.ValidPhone("139123456789"))
	assert.False(t, auth.ValidPhone(""))
}
