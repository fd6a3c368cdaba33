// Package poller tracks the remote task lifecycle with a single
// sequential fetch loop, adapting its own cadence to what it observes.
package poller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/api"
	"github.com/aksea/PangGuai-Web/internal/config"
	"github.com/aksea/PangGuai-Web/internal/notify"
)

// StatusFetcher is the poller's view of the backend. *api.Client
// implements it.
type StatusFetcher interface {
	UserStatus(ctx context.Context, refresh bool) (api.UserStatus, error)
}

// policy is the poller's only memory between steps: whether the previous
// snapshot was active, and whether the next idle poll owes an expensive
// balance refresh. Mutated by the step function alone.
type policy struct {
	wasActive          bool
	refreshBalanceNext bool
}

// Poller runs the adaptive status loop. One instance per dashboard view.
type Poller struct {
	cfg      config.PollerConfig
	fetch    StatusFetcher
	notifier notify.Notifier
	log      *zap.Logger

	policy policy
}

// New creates a poller.
func New(cfg config.PollerConfig, fetch StatusFetcher, notifier notify.Notifier, logger *zap.Logger) *Poller {
	return &Poller{
		cfg:      cfg,
		fetch:    fetch,
		notifier: notifier,
		log:      logger.Named("poller"),
	}
}

// Run executes the polling loop until ctx ends or the session dies.
// forceActive primes the policy as if the previous snapshot were active,
// used right after a task start so the first cycles come fast and no
// refresh fires mid-spin-up.
//
// Steps are strictly sequential: the next fetch is scheduled only after
// the current one resolves, so two outstanding fetches cannot exist.
func (p *Poller) Run(ctx context.Context, forceActive bool) error {
	p.policy = policy{wasActive: forceActive}

	for {
		interval := p.step(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// step performs one fetch-and-render cycle and returns the delay before
// the next one.
func (p *Poller) step(ctx context.Context) time.Duration {
	refresh := !p.policy.wasActive && p.policy.refreshBalanceNext

	status, err := p.fetch.UserStatus(ctx, refresh)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) || ctx.Err() != nil {
			// Session teardown is handled by the client's 401 hook; the
			// loop just stops pestering the backend until ctx dies.
			return p.cfg.ErrorInterval
		}
		// Transient failure: back off and retry the same step with the
		// policy untouched. The loop never terminates on error.
		p.log.Warn("Status fetch failed, backing off", zap.Error(err))
		return p.cfg.ErrorInterval
	}

	active := api.TaskActive(status.TaskStatus)

	// A task that just finished earns the next idle poll a balance
	// refresh; a step that spent the refresh clears the debt.
	if p.policy.wasActive && !active {
		p.policy.refreshBalanceNext = true
	}
	if refresh {
		p.policy.refreshBalanceNext = false
	}
	p.policy.wasActive = active

	p.render(status, active)

	if active {
		return p.cfg.ActiveInterval
	}
	return p.cfg.IdleInterval
}

// render pushes the snapshot to the user surface verbatim.
func (p *Poller) render(status api.UserStatus, active bool) {
	p.notifier.SetStatus(status.TaskStatus)

	if active {
		p.notifier.SetControl(notify.ControlStartTask, notify.ControlDisabled)
		p.notifier.SetControl(notify.ControlStopTask, notify.ControlReady)
	} else {
		p.notifier.SetControl(notify.ControlStartTask, notify.ControlReady)
		p.notifier.SetControl(notify.ControlStopTask, notify.ControlDisabled)
	}
}
