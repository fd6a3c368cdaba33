// Package auth owns the credential bootstrap flow: passively captured
// tokens are validated, deduplicated and exchanged for a first-party
// session, while the wait-for-token machine governs the manual
// verification-code path.
package auth

import (
	"context"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/api"
	"github.com/aksea/PangGuai-Web/internal/config"
	"github.com/aksea/PangGuai-Web/internal/notify"
	"github.com/aksea/PangGuai-Web/internal/session"
	"github.com/aksea/PangGuai-Web/internal/token"
)

var (
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
	codePattern  = regexp.MustCompile(`^\d{4,8}$`)
)

// ValidPhone reports whether s is an 11-digit mobile number in the
// 13x-19x ranges the backend accepts.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// Exchanger is the backend login exchange. *api.Client implements it.
type Exchanger interface {
	Login(ctx context.Context, phone, tok string) (session.Session, error)
}

// Verifier is the widget's verification entry point. *widget.Widget
// implements it.
type Verifier interface {
	VerifyCode(ctx context.Context, phone, code string) error
}

// Controller holds the auth page's mutable state: the entered phone, the
// single-slot capture dedup and the pending verification deadline. One
// instance exists per auth flow and dies with it.
type Controller struct {
	cfg      config.AuthConfig
	exchange Exchanger
	verifier Verifier
	notifier notify.Notifier
	log      *zap.Logger

	// pageCtx bounds every background action to the auth page lifetime.
	pageCtx context.Context

	mu           sync.Mutex
	phone        string
	lastReported string
	waiting      bool
	waitTimer    *time.Timer

	onAuthenticated func(session.Session)
}

// NewController creates the auth flow controller. pageCtx is cancelled
// when the auth page is torn down.
func NewController(pageCtx context.Context, cfg config.AuthConfig, exchange Exchanger, verifier Verifier, notifier notify.Notifier, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		exchange: exchange,
		verifier: verifier,
		notifier: notifier,
		log:      logger.Named("auth"),
		pageCtx:  pageCtx,
	}
}

// OnAuthenticated registers the dashboard hand-off, invoked after the
// redirect delay once a session is persisted.
func (c *Controller) OnAuthenticated(fn func(session.Session)) {
	c.onAuthenticated = fn
}

// SetPhone records the currently entered phone number. Passive captures
// are ignored until it matches the accepted format.
func (c *Controller) SetPhone(phone string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phone = phone
}

// ReportToken is the capture entry point, fed by the interception layer
// and by any manual paste path. It gates on plausibility, phone format
// and the single-slot dedup before bootstrapping.
func (c *Controller) ReportToken(tok, source string) {
	c.mu.Lock()
	phone := c.phone

	if !token.Plausible(tok) || !ValidPhone(phone) {
		c.mu.Unlock()
		return
	}
	if tok == c.lastReported {
		// Same value intercepted again; a re-login storm helps nobody.
		c.mu.Unlock()
		c.log.Debug("Duplicate token capture ignored", zap.String("source", source))
		return
	}
	c.lastReported = tok
	c.mu.Unlock()

	c.log.Info("Accepting captured token", zap.String("source", source))
	c.notifier.Message(notify.RegionAuth, "已捕获登录令牌，正在登录...")
	c.Login(c.pageCtx, phone, tok, true)
}

// Login runs the session exchange. silent suppresses validation noise
// for passively captured tokens; backend refusals are always surfaced.
func (c *Controller) Login(ctx context.Context, phone, tok string, silent bool) {
	if !ValidPhone(phone) {
		if !silent {
			c.notifier.Message(notify.RegionAuth, "请输入正确的手机号")
		}
		return
	}
	if tok == "" {
		if !silent {
			c.notifier.Message(notify.RegionAuth, "登录令牌为空")
		}
		return
	}

	// An out-of-band capture supersedes any in-flight manual wait; the
	// deadline must die before the exchange, not after.
	c.cancelWait()

	sess, err := c.exchange.Login(ctx, phone, tok)
	if err != nil {
		if msg, ok := api.IsBusiness(err); ok {
			c.notifier.Message(notify.RegionAuth, msg)
		} else if !silent {
			c.notifier.Message(notify.RegionAuth, "登录失败，请稍后重试")
		} else {
			c.log.Warn("Silent login exchange failed", zap.Error(err))
		}
		c.notifier.SetControl(notify.ControlSubmitCode, notify.ControlReady)
		return
	}

	c.notifier.Message(notify.RegionAuth, "登录成功，正在进入控制台...")

	// Short fixed delay so the success message gets its moment.
	redirect := c.cfg.RedirectDelay
	handoff := c.onAuthenticated
	if handoff == nil {
		return
	}
	time.AfterFunc(redirect, func() {
		if c.pageCtx.Err() != nil {
			return
		}
		handoff(sess)
	})
}

// SubmitCode validates the phone and code locally, enters Waiting, and
// fires the widget's verification entry point. The eventual token comes
// back through ReportToken or not at all.
func (c *Controller) SubmitCode(ctx context.Context, code string) {
	c.mu.Lock()
	phone := c.phone
	c.mu.Unlock()

	if !ValidPhone(phone) {
		c.notifier.Message(notify.RegionAuth, "请输入正确的手机号")
		return
	}
	if !codePattern.MatchString(code) {
		c.notifier.Message(notify.RegionAuth, "请输入4-8位数字验证码")
		return
	}

	c.notifier.SetControl(notify.ControlSubmitCode, notify.ControlDisabled)
	c.armWait()

	go func() {
		if err := c.verifier.VerifyCode(ctx, phone, code); err != nil {
			// The interceptor has already told the user what happened.
			c.log.Debug("Widget verification call failed", zap.Error(err))
		}
	}()
}

// Waiting reports whether a verification deadline is currently pending.
func (c *Controller) Waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

// armWait starts the verification deadline. Entering Waiting while
// already Waiting first cancels the previous timer, so at most one is
// ever live.
func (c *Controller) armWait() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.waitTimer != nil {
		c.waitTimer.Stop()
	}
	c.waiting = true
	c.waitTimer = time.AfterFunc(c.cfg.WaitDeadline, c.waitExpired)
}

// cancelWait silently leaves Waiting, used by superseding captures.
func (c *Controller) cancelWait() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.waitTimer != nil {
		c.waitTimer.Stop()
		c.waitTimer = nil
	}
	c.waiting = false
}

// waitExpired is the TimedOut transition.
func (c *Controller) waitExpired() {
	c.mu.Lock()
	if !c.waiting {
		// A capture superseded us between firing and locking.
		c.mu.Unlock()
		return
	}
	c.waiting = false
	c.waitTimer = nil
	c.mu.Unlock()

	c.log.Info("Verification wait deadline elapsed")
	c.notifier.Message(notify.RegionAuth, "验证超时，请检查验证码后重试")
	c.notifier.SetControl(notify.ControlSubmitCode, notify.ControlReady)
}
