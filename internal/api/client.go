package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/config"
	"github.com/aksea/PangGuai-Web/internal/session"
)

// Client talks to the first-party backend. It owns bearer-auth injection
// and the 401 teardown path; everything else is thin request plumbing.
type Client struct {
	http  *resty.Client
	poll  *resty.Client
	store *session.Store
	log   *zap.Logger

	// onUnauthorized fires after the session has been cleared by a 401,
	// so the owning page can redirect to the unauthenticated entry.
	onUnauthorized func()
}

// NewClient builds the backend client. Retries live in exactly one place:
// the retryable transport under the background polling client, which only
// ever issues idempotent GETs. User-initiated calls are single-shot, so a
// transport failure surfaces inline instead of being silently replayed.
func NewClient(cfg config.BackendConfig, store *session.Store, logger *zap.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWait
	retryClient.RetryWaitMax = 4 * cfg.RetryWait
	retryClient.Logger = nil

	ua := cfg.UserAgent
	if ua == "" {
		ua = "PangGuai-Client/2.0 (Go)"
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", ua)

	poll := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", ua).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	return &Client{
		http:  rc,
		poll:  poll,
		store: store,
		log:   logger.Named("api"),
	}
}

// OnUnauthorized registers the redirect hook fired after a 401 teardown.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// UserAgent returns the UA string reported to the backend on login.
func (c *Client) UserAgent() string {
	return c.http.Header.Get("User-Agent")
}

// BaseURL exposes the backend base for the websocket dialer.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.authorize(c.http.R().SetContext(ctx))
}

// pollRequest rides the retrying transport. Only for idempotent reads.
func (c *Client) pollRequest(ctx context.Context) *resty.Request {
	return c.authorize(c.poll.R().SetContext(ctx))
}

func (c *Client) authorize(req *resty.Request) *resty.Request {
	if sess, ok := c.store.Load(); ok {
		req.SetHeader("Authorization", "Bearer "+sess.Token)
	}
	return req
}

// check maps a response onto the error taxonomy. A 401 anywhere clears
// the local session before the caller sees the error.
func (c *Client) check(resp *resty.Response, err error) error {
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		c.log.Warn("Backend rejected session, clearing local credentials")
		c.store.Clear()
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return ErrUnauthorized
	}

	if resp.IsError() {
		var detail detailEnvelope
		_ = json.Unmarshal(resp.Body(), &detail)
		return &BusinessError{Status: resp.StatusCode(), Msg: detail.Detail}
	}

	return nil
}

func decodeLogin(body []byte) (session.Session, error) {
	var env loginEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return session.Session{}, fmt.Errorf("decoding login response: %w", err)
	}

	sess := session.Session{
		Token:  env.Data.SessionToken,
		UserID: env.Data.UID.String(),
	}
	if !sess.Valid() {
		msg := env.Msg
		if msg == "" {
			msg = "login exchange returned no session"
		}
		return session.Session{}, &BusinessError{Msg: msg}
	}
	return sess, nil
}

// Login exchanges a captured opaque token plus phone number for a
// first-party session and persists it.
func (c *Client) Login(ctx context.Context, phone, token string) (session.Session, error) {
	resp, err := c.request(ctx).
		SetBody(map[string]string{"phone": phone, "token": token, "ua": c.UserAgent()}).
		Post("/api/login")
	if err := c.check(resp, err); err != nil {
		return session.Session{}, err
	}

	sess, err := decodeLogin(resp.Body())
	if err != nil {
		return session.Session{}, err
	}
	if err := c.store.Save(sess); err != nil {
		return session.Session{}, err
	}
	c.log.Info("Session established", zap.String("uid", sess.UserID))
	return sess, nil
}

// CheckPhone asks the backend whether a stored credential already exists
// for the phone number.
func (c *Client) CheckPhone(ctx context.Context, phone string) (string, error) {
	resp, err := c.request(ctx).
		SetBody(map[string]string{"phone": phone}).
		Post("/auth/check")
	if err := c.check(resp, err); err != nil {
		return "", err
	}

	var env checkEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return "", fmt.Errorf("decoding check response: %w", err)
	}
	return env.Status, nil
}

// QuickLogin re-establishes a session from a credential the backend still
// holds, skipping the verification widget.
func (c *Client) QuickLogin(ctx context.Context, phone string) (session.Session, error) {
	resp, err := c.request(ctx).
		SetBody(map[string]string{"phone": phone}).
		Post("/auth/quick_login")
	if err := c.check(resp, err); err != nil {
		return session.Session{}, err
	}

	sess, err := decodeLogin(resp.Body())
	if err != nil {
		return session.Session{}, err
	}
	if err := c.store.Save(sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// UserStatus fetches the task/account snapshot. refresh requests the
// expensive balance-refresh variant.
func (c *Client) UserStatus(ctx context.Context, refresh bool) (UserStatus, error) {
	req := c.pollRequest(ctx)
	if refresh {
		req.SetQueryParam("refresh", "1")
	}
	resp, err := req.Get("/api/user/status")
	if err := c.check(resp, err); err != nil {
		return UserStatus{}, err
	}

	var status UserStatus
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return UserStatus{}, fmt.Errorf("decoding status response: %w", err)
	}
	return status, nil
}

// StartTask asks the backend to launch the remote task.
func (c *Client) StartTask(ctx context.Context, opts TaskOptions) error {
	resp, err := c.request(ctx).
		SetBody(opts).
		Post("/api/task/start")
	return c.check(resp, err)
}

// StopTask asks the backend to interrupt the running task.
func (c *Client) StopTask(ctx context.Context) error {
	resp, err := c.request(ctx).Post("/api/task/stop")
	if err := c.check(resp, err); err != nil {
		return err
	}

	var ack ackEnvelope
	if err := json.Unmarshal(resp.Body(), &ack); err == nil && ack.Msg != "" {
		c.log.Info("Stop acknowledged", zap.String("msg", ack.Msg))
	}
	return nil
}

// Tables lists the backend's tables. Thin pass-through, no interpretation.
func (c *Client) Tables(ctx context.Context) ([]string, error) {
	resp, err := c.request(ctx).Get("/admin/db/tables")
	if err := c.check(resp, err); err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(resp.Body(), &names); err != nil {
		return nil, fmt.Errorf("decoding table list: %w", err)
	}
	return names, nil
}

// Table dumps up to limit rows of one table. Thin pass-through.
func (c *Client) Table(ctx context.Context, name string, limit int) (TableDump, error) {
	resp, err := c.request(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		Get("/admin/db/table/" + name)
	if err := c.check(resp, err); err != nil {
		return TableDump{}, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return TableDump{}, fmt.Errorf("decoding table dump: %w", err)
	}
	return TableDump{Name: name, Rows: rows}, nil
}

// WaitHealthy blocks until the backend answers /health or the context
// ends. Used by the dashboard on startup.
func (c *Client) WaitHealthy(ctx context.Context, probeEvery time.Duration) error {
	ticker := time.NewTicker(probeEvery)
	defer ticker.Stop()

	for {
		resp, err := c.poll.R().SetContext(ctx).Get("/health")
		if err == nil && resp.IsSuccess() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
