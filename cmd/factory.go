// File: cmd/factory.go
package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/api"
	"github.com/aksea/PangGuai-Web/internal/config"
	"github.com/aksea/PangGuai-Web/internal/notify"
	"github.com/aksea/PangGuai-Web/internal/observability"
	"github.com/aksea/PangGuai-Web/internal/session"
)

// Components holds the services shared by every command: the session
// store, the backend client and the user surface. Flow-specific pieces
// (widget, controller, poller, stream) are built by their own commands.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    *session.Store
	API      *api.Client
	Notifier notify.Notifier
}

// buildComponents wires the common dependency graph.
func buildComponents() (*Components, error) {
	cfg := config.Get()
	logger := observability.GetLogger()

	store, err := session.NewStore(cfg.Session.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	notifier := notify.NewConsole(logger)
	client := api.NewClient(cfg.Backend, store, logger)

	return &Components{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		API:      client,
		Notifier: notifier,
	}, nil
}
