// File: cmd/dashboard.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/api"
	"github.com/aksea/PangGuai-Web/internal/logstream"
	"github.com/aksea/PangGuai-Web/internal/notify"
	"github.com/aksea/PangGuai-Web/internal/poller"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Watch and control the remote task.",
	RunE:  runDashboard,
}

// pollerHandle owns the lifecycle of the single polling loop. Restarting
// it (after a task start) cancels the previous loop first, so the
// one-outstanding-fetch invariant holds across restarts too.
type pollerHandle struct {
	pageCtx context.Context
	poll    *poller.Poller
	wg      *sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *pollerHandle) restart(forceActive bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		// Cancellation alone is not enough: the old loop may be mid-fetch,
		// so wait for it to drain before the next loop issues its first.
		h.cancel()
		<-h.done
	}
	ctx, cancel := context.WithCancel(h.pageCtx)
	done := make(chan struct{})
	h.cancel = cancel
	h.done = done

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer close(done)
		_ = h.poll.Run(ctx, forceActive)
	}()
}

func runDashboard(cmd *cobra.Command, args []string) error {
	comps, err := buildComponents()
	if err != nil {
		return err
	}
	logger := comps.Logger

	sess, ok := comps.Store.Load()
	if !ok {
		return fmt.Errorf("not logged in, run `pangguai login` first")
	}

	pageCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Any 401 tears the page down and sends the user back to login.
	comps.API.OnUnauthorized(func() {
		comps.Notifier.Message(notify.RegionDashboard, "会话已过期，请重新登录")
		cancel()
	})

	var wg sync.WaitGroup

	handle := &pollerHandle{
		pageCtx: pageCtx,
		poll:    poller.New(comps.Config.Poller, comps.API, comps.Notifier, logger),
		wg:      &wg,
	}
	handle.restart(false)

	stream := logstream.New(comps.Config.Logs, comps.API.BaseURL(), sess.UserID, comps.Notifier, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = stream.Run(pageCtx)
	}()

	fmt.Println("控制台已启动。命令: start | stop | q")
	runDashboardInput(pageCtx, comps, handle)

	cancel()
	wg.Wait()
	return nil
}

func runDashboardInput(ctx context.Context, comps *Components, handle *pollerHandle) {
	reader := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for reader.Scan() {
			lines <- strings.TrimSpace(reader.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || line == "q" {
				return
			}
			switch line {
			case "":
			case "start":
				startTask(ctx, comps, handle)
			case "stop":
				stopTask(ctx, comps, lines)
			default:
				fmt.Println("未知命令。可用: start | stop | q")
			}
		}
	}
}

func startTask(ctx context.Context, comps *Components, handle *pollerHandle) {
	comps.Notifier.SetControl(notify.ControlStartTask, notify.ControlDisabled)

	err := comps.API.StartTask(ctx, api.TaskOptions{General: true, Alipay: true})
	if err != nil {
		comps.Notifier.SetControl(notify.ControlStartTask, notify.ControlReady)
		if msg, ok := api.IsBusiness(err); ok {
			comps.Notifier.Message(notify.RegionDashboard, msg)
		} else {
			comps.Notifier.Message(notify.RegionDashboard, "启动失败，请稍后重试")
		}
		return
	}

	comps.Notifier.Message(notify.RegionDashboard, "任务已启动")
	// Re-enter polling primed as active so the first cycles come fast.
	handle.restart(true)
}

func stopTask(ctx context.Context, comps *Components, lines <-chan string) {
	fmt.Print("确认停止任务? [y/N]: ")
	select {
	case <-ctx.Done():
		return
	case answer, ok := <-lines:
		if !ok || !strings.EqualFold(answer, "y") {
			fmt.Println("已取消")
			return
		}
	}

	// The control stays disabled for the duration of the stop call.
	comps.Notifier.SetControl(notify.ControlStopTask, notify.ControlDisabled)
	defer comps.Notifier.SetControl(notify.ControlStopTask, notify.ControlReady)

	if err := comps.API.StopTask(ctx); err != nil {
		if msg, ok := api.IsBusiness(err); ok {
			comps.Notifier.Message(notify.RegionDashboard, msg)
		} else {
			comps.Notifier.Message(notify.RegionDashboard, "停止失败，请稍后重试")
		}
		return
	}
	comps.Notifier.Message(notify.RegionDashboard, "停止指令已发送")
	comps.Logger.Info("Stop requested", zap.String("component", "dashboard"))
}
