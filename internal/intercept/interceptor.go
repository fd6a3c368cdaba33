package intercept

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/notify"
	"github.com/aksea/PangGuai-Web/internal/token"
)

// CaptureSink receives tokens harvested from the widget's traffic. The
// bootstrap controller implements it.
type CaptureSink interface {
	ReportToken(tok, source string)
}

// Source tag attached to passively captured tokens.
const SourceInterceptor = "interceptor"

// Interceptor is an http.RoundTripper middleware over the third-party
// widget's network client. It observes every response the widget
// produces, harvests token-shaped values, and surfaces business errors —
// without ever blocking the widget itself.
type Interceptor struct {
	transport http.RoundTripper
	sink      CaptureSink
	notifier  notify.Notifier
	logger    *zap.Logger
}

// NewInterceptor creates the middleware. A nil transport falls back to
// http.DefaultTransport.
func NewInterceptor(transport http.RoundTripper, sink CaptureSink, notifier notify.Notifier, logger *zap.Logger) *Interceptor {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Interceptor{
		transport: transport,
		sink:      sink,
		notifier:  notifier,
		logger:    logger.Named("intercept"),
	}
}

// Install wraps a client's transport exactly once. Re-installing over an
// already-wrapped client is a no-op, so a page re-entry cannot stack
// observers and report the same response twice.
func Install(client *http.Client, sink CaptureSink, notifier notify.Notifier, logger *zap.Logger) *Interceptor {
	if existing, ok := client.Transport.(*Interceptor); ok {
		return existing
	}
	ic := NewInterceptor(client.Transport, sink, notifier, logger)
	client.Transport = ic
	return ic
}

// RoundTrip executes the request and inspects the outcome. Errors are
// surfaced to the user but always handed back to the widget untouched.
func (ic *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := ic.transport.RoundTrip(req)
	if err != nil {
		ic.logger.Debug("Widget transport error", zap.String("url", req.URL.String()), zap.Error(err))
		ic.notifier.Message(notify.RegionAuth, "网络错误，请稍后重试")
		ic.notifier.SetControl(notify.ControlSubmitCode, notify.ControlReady)
		return resp, err
	}

	ic.observe(req, resp)
	return resp, nil
}

// observe reads the response body, restores it for the widget, and runs
// the capture and business-error paths. The two are independent: an
// error message in the same body as a token must surface either way.
func (ic *Interceptor) observe(req *http.Request, resp *http.Response) {
	if resp.Body == nil {
		return
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		ic.logger.Warn("Failed to read widget response body", zap.Error(err))
		resp.Body = io.NopCloser(bytes.NewReader(nil))
		return
	}
	// Restore the body for the widget's own consumption.
	resp.Body = io.NopCloser(bytes.NewReader(body))

	payload, ok := decodePayload(resp.Header.Get("Content-Type"), body)
	if !ok {
		return
	}

	if tok, found := token.Extract(payload, token.DefaultMaxDepth); found {
		ic.logger.Info("Token captured from widget traffic",
			zap.String("url", req.URL.String()),
			zap.Int("token_len", len(tok)))
		ic.sink.ReportToken(tok, SourceInterceptor)
	}

	if code, msg, isErr := businessError(payload); isErr {
		ic.logger.Debug("Widget reported business error",
			zap.Int64("code", code), zap.String("msg", msg))
		if msg == "" {
			msg = "验证失败，请重试"
		}
		ic.notifier.Message(notify.RegionAuth, msg)
		ic.notifier.SetControl(notify.ControlSubmitCode, notify.ControlReady)
	}
}

// decodePayload decodes JSON-looking bodies into the generic shapes the
// extractor walks. Non-JSON bodies are ignored rather than guessed at.
func decodePayload(contentType string, body []byte) (any, bool) {
	if len(body) == 0 {
		return nil, false
	}
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "json") {
		return nil, false
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// businessError pulls a non-zero code and its message out of the widget's
// response envelope, if the body has one.
func businessError(payload any) (int64, string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0, "", false
	}

	raw, present := m["code"]
	if !present {
		return 0, "", false
	}
	num, ok := raw.(float64)
	if !ok || num == 0 {
		return 0, "", false
	}

	msg, _ := m["msg"].(string)
	return int64(num), msg, true
}
