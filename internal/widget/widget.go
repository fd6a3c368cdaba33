// Package widget adapts the third-party verification-code widget. The
// widget is a black box: its two entry points are fire-and-forget, and
// every outcome is observed only through the interception layer wrapped
// around its network client.
package widget

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aksea/PangGuai-Web/internal/config"
	"github.com/aksea/PangGuai-Web/internal/intercept"
	"github.com/aksea/PangGuai-Web/internal/notify"
)

// ErrSendCooldown is returned when a resend is attempted inside the
// cooldown window.
var ErrSendCooldown = fmt.Errorf("verification code already sent, wait before resending")

// Widget drives the third-party verification flow. Responses are never
// interpreted here; the interceptor installed on the client does that.
type Widget struct {
	cfg      config.WidgetConfig
	client   *http.Client
	sendGate *rate.Limiter
	deviceID string
	log      *zap.Logger
}

// New builds the widget adapter and installs the interceptor on its
// network client exactly once.
func New(cfg config.WidgetConfig, sink intercept.CaptureSink, notifier notify.Notifier, logger *zap.Logger) *Widget {
	client := &http.Client{Timeout: cfg.Timeout}
	intercept.Install(client, sink, notifier, logger)

	cooldown := cfg.SendCooldown
	gate := rate.NewLimiter(rate.Inf, 1)
	if cooldown > 0 {
		gate = rate.NewLimiter(rate.Every(cooldown), 1)
	}

	return &Widget{
		cfg:      cfg,
		client:   client,
		sendGate: gate,
		deviceID: uuid.NewString(),
		log:      logger.Named("widget"),
	}
}

// SendCode asks the widget to deliver a verification code. Fire and
// forget: a nil error means only that the request was handed off.
func (w *Widget) SendCode(ctx context.Context, phone string) error {
	if !w.sendGate.Allow() {
		return ErrSendCooldown
	}

	w.log.Info("Requesting verification code", zap.String("phone", maskPhone(phone)))
	return w.post(ctx, w.cfg.SendURL, url.Values{
		"phone":    {phone},
		"deviceId": {w.deviceID},
	})
}

// VerifyCode submits the code. The token the widget eventually issues is
// picked up by the interceptor, never returned here.
func (w *Widget) VerifyCode(ctx context.Context, phone, code string) error {
	w.log.Info("Submitting verification code", zap.String("phone", maskPhone(phone)))
	return w.post(ctx, w.cfg.VerifyURL, url.Values{
		"phone":    {phone},
		"code":     {code},
		"deviceId": {w.deviceID},
	})
}

func (w *Widget) post(ctx context.Context, target string, form url.Values) error {
	if target == "" {
		return fmt.Errorf("widget endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building widget request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := w.client.Do(req)
	if err != nil {
		// Already surfaced to the user by the interceptor.
		return fmt.Errorf("widget call failed: %w", err)
	}
	// The interceptor already consumed and closed the wire body; this
	// closes only its in-memory replacement.
	resp.Body.Close()
	return nil
}

func maskPhone(phone string) string {
	if len(phone) < 7 {
		return "***"
	}
	return phone[:3] + "****" + phone[len(phone)-4:]
}
