package widget_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/config"
	"github.com/aksea/PangGuai-Web/internal/mocks"
	"github.com/aksea/PangGuai-Web/internal/notify"
	"github.com/aksea/PangGuai-Web/internal/widget"
)

func newWidget(t *testing.T, handler http.HandlerFunc, cooldown time.Duration) (*widget.Widget, *mocks.CaptureSink, *mocks.Notifier) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sink := &mocks.CaptureSink{}
	notifier := mocks.NewNotifier()
	cfg := config.WidgetConfig{
		SendURL:      srv.URL + "/sms/send",
		VerifyURL:    srv.URL + "/sms/verify",
		Timeout:      2 * time.Second,
		SendCooldown: cooldown,
	}
	return widget.New(cfg, sink, notifier, zap.NewNop()), sink, notifier
}

func TestSendCode_PostsFormAndRespectsCooldown(t *testing.T) {
	var gotPhone, gotDevice string
	w, _, _ := newWidget(t, func(rw http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPhone = r.PostFormValue("phone")
		gotDevice = r.PostFormValue("deviceId")
		rw.Header().Set("Content-Type", "application/json")
		rw.Write([]byte(`{"code":0}`))
	}, time.Minute)

	require.NoError(t, w.SendCode(context.Background(), "13800000000"))
	assert.Equal(t, "13800000000", gotPhone)
	assert.NotEmpty(t, gotDevice)

	// Second send inside the window is refused locally, no request made.
	assert.ErrorIs(t, w.SendCode(context.Background(), "13800000000"), widget.ErrSendCooldown)
}

func TestVerifyCode_TokenReachesSinkThroughInterceptor(t *testing.T) {
	w, sink, _ := newWidget(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.Write([]byte(`{"code":0,"data":{"token":"widget-issued-token-0123456789"}}`))
	}, 0)

	require.NoError(t, w.VerifyCode(context.Background(), "13800000000", "123456"))
	captures := sink.Captures()
	require.Len(t, captures, 1)
	assert.Equal(t, "widget-issued-token-0123456789", captures[0].Token)
}

func TestVerifyCode_BusinessRefusalReachesNotifier(t *testing.T) {
	w, sink, notifier := newWidget(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.Write([]byte(`{"code":1002,"msg":"验证码错误"}`))
	}, 0)

	// The widget call itself still succeeds; the refusal surfaces via
	// the interceptor's notifier path.
	require.NoError(t, w.VerifyCode(context.Background(), "13800000000", "000000"))
	assert.Empty(t, sink.Captures())
	assert.Equal(t, "验证码错误", notifier.LastMessage(notify.RegionAuth))
}
