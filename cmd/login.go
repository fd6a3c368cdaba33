// File: cmd/login.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/api"
	"github.com/aksea/PangGuai-Web/internal/auth"
	"github.com/aksea/PangGuai-Web/internal/session"
	"github.com/aksea/PangGuai-Web/internal/widget"
)

var loginPhone string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Bootstrap a session from the verification widget.",
	Long: "Runs the credential capture flow: the verification widget does its " +
		"own opaque dance; this client only observes its traffic, harvests " +
		"the token it produces, and exchanges it for a session.",
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginPhone, "phone", "", "mobile number (11 digits, 13x-19x)")
}

// captureRelay breaks the construction cycle between the widget (which
// needs a capture sink) and the controller (which needs the widget).
type captureRelay struct {
	ctl *auth.Controller
}

func (r *captureRelay) ReportToken(tok, source string) {
	if r.ctl != nil {
		r.ctl.ReportToken(tok, source)
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	comps, err := buildComponents()
	if err != nil {
		return err
	}
	logger := comps.Logger

	if sess, ok := comps.Store.Load(); ok {
		fmt.Printf("已登录 (uid=%s)，如需重新登录请先执行 pangguai logout\n", sess.UserID)
		return nil
	}

	reader := bufio.NewScanner(os.Stdin)

	phone := strings.TrimSpace(loginPhone)
	if phone == "" {
		fmt.Print("手机号: ")
		if !reader.Scan() {
			return fmt.Errorf("no phone number provided")
		}
		phone = strings.TrimSpace(reader.Text())
	}
	if !auth.ValidPhone(phone) {
		return fmt.Errorf("invalid phone number %q", phone)
	}

	pageCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	relay := &captureRelay{}
	w := widget.New(comps.Config.Widget, relay, comps.Notifier, logger)
	ctl := auth.NewController(pageCtx, comps.Config.Auth, comps.API, w, comps.Notifier, logger)
	relay.ctl = ctl
	ctl.SetPhone(phone)

	authed := make(chan session.Session, 1)
	ctl.OnAuthenticated(func(s session.Session) {
		select {
		case authed <- s:
		default:
		}
	})

	// A credential the backend still holds skips the widget entirely.
	switch status, err := comps.API.CheckPhone(pageCtx, phone); {
	case err == nil && status == api.PhoneValid:
		if sess, err := comps.API.QuickLogin(pageCtx, phone); err == nil {
			fmt.Printf("登录成功 (uid=%s)\n", sess.UserID)
			return nil
		}
		logger.Info("Quick login failed, falling back to verification flow")
	case err != nil:
		if api.IsTransport(err) {
			return fmt.Errorf("backend unreachable: %w", err)
		}
		logger.Debug("Phone check inconclusive", zap.Error(err))
	}

	if err := w.SendCode(pageCtx, phone); err != nil {
		logger.Warn("Sending verification code failed", zap.Error(err))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		for reader.Scan() {
			lines <- strings.TrimSpace(reader.Text())
		}
	}()

	fmt.Println("验证码已发送。输入验证码提交，r 重发，q 退出:")
	for {
		select {
		case sess := <-authed:
			fmt.Printf("登录成功 (uid=%s)，运行 pangguai dashboard 进入控制台\n", sess.UserID)
			return nil

		case <-pageCtx.Done():
			return pageCtx.Err()

		case line, ok := <-lines:
			if !ok || line == "q" {
				return nil
			}
			switch line {
			case "":
			case "r":
				if err := w.SendCode(pageCtx, phone); err != nil {
					fmt.Println("发送过于频繁，请稍后再试")
				}
			default:
				ctl.SubmitCode(pageCtx, line)
			}
		}
	}
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Destroy the local session.",
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents()
		if err != nil {
			return err
		}
		comps.Store.Clear()
		fmt.Println("已退出登录")
		return nil
	},
}
