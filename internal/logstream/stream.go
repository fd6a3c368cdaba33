// Package logstream maintains the persistent log channel for the
// dashboard. The channel is expected to drop; the one answer to every
// kind of drop is the same fixed-delay redial, forever.
package logstream

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/config"
	"github.com/aksea/PangGuai-Web/internal/notify"
)

// SentinelUID is dialed when no user id is available, mirroring the
// unauthenticated placeholder the backend tolerates.
const SentinelUID = "0"

// serverStampPattern matches a bracketed timestamp prefix the server may
// have already rendered into a line.
var serverStampPattern = regexp.MustCompile(`^\[[^\]]*\]\s*`)

// Stream is one dashboard's log channel.
type Stream struct {
	url      string
	delay    time.Duration
	notifier notify.Notifier
	log      *zap.Logger

	// now is swappable so tests can pin the rendered prefix.
	now func() time.Time
}

// New builds the stream for a user id against the backend base URL. The
// websocket scheme mirrors the HTTP base's scheme.
func New(cfg config.LogsConfig, baseURL, uid string, notifier notify.Notifier, logger *zap.Logger) *Stream {
	if uid == "" {
		uid = SentinelUID
	}

	wsBase := baseURL
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(baseURL, "http://")
	}

	return &Stream{
		url:      strings.TrimRight(wsBase, "/") + "/ws/logs/" + uid,
		delay:    cfg.ReconnectDelay,
		notifier: notifier,
		log:      logger.Named("logstream"),
		now:      time.Now,
	}
}

// Run dials, consumes, and redials until ctx ends. There is no backoff
// growth and no retry cap; the surrounding page lifetime bounds the loop.
func (s *Stream) Run(ctx context.Context) error {
	for {
		if err := s.connectOnce(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
}

// connectOnce opens one channel and consumes it until it drops.
func (s *Stream) connectOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.log.Debug("Log channel dial failed", zap.Error(err))
		s.notifier.SetConnected(false)
		return err
	}
	defer conn.Close()

	s.notifier.SetConnected(true)
	s.notifier.AppendLog(s.render("日志通道已连接"))

	// Tear the read loop down with the page.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.log.Debug("Log channel closed", zap.Error(err))
			s.notifier.SetConnected(false)
			return err
		}
		s.notifier.AppendLog(s.render(string(data)))
	}
}

// render strips any server-side timestamp prefix and applies the local
// one, so lines carry exactly one stamp no matter who sent them.
func (s *Stream) render(line string) string {
	line = serverStampPattern.ReplaceAllString(line, "")
	return fmt.Sprintf("[%s] %s", s.now().Format("15:04:05"), line)
}
