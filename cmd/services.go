package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xvierd/thirdtime/internal/adapters/clock"
	"github.com/xvierd/thirdtime/internal/adapters/git"
	"github.com/xvierd/thirdtime/internal/adapters/httpapi"
	"github.com/xvierd/thirdtime/internal/adapters/notification"
	"github.com/xvierd/thirdtime/internal/adapters/storage"
	"github.com/xvierd/thirdtime/internal/config"
	"github.com/xvierd/thirdtime/internal/cycle"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/logging"
	"github.com/xvierd/thirdtime/internal/ports"
	"github.com/xvierd/thirdtime/internal/services"
)

// appDeps groups the dependencies every command can use.
type appDeps struct {
	config  *config.Config
	logger  *slog.Logger
	storage ports.Storage
}

// app is populated by initializeServices().
var app appDeps

// initializeServices loads configuration and sets up logging. Storage is
// opened on demand by the commands that need it.
func initializeServices() error {
	var err error
	if configPath != "" {
		app.config, err = config.LoadFile(configPath)
	} else {
		app.config, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.logger = logging.New(app.config.Log, os.Stderr)
	slog.SetDefault(app.logger)
	return nil
}

// cleanupServices closes all resources.
func cleanupServices() error {
	if app.storage != nil {
		err := app.storage.Close()
		app.storage = nil
		return err
	}
	return nil
}

// openStorage opens the history database once.
func openStorage() (ports.Storage, error) {
	if app.storage != nil {
		return app.storage, nil
	}
	path := dbPath
	if path == "" {
		path = config.GetDBPath(app.config)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.storage = store
	return store, nil
}

// controlAddr is the address of the control API.
func controlAddr() string {
	if apiAddr != "" {
		return apiAddr
	}
	return app.config.Server.Addr
}

// newClient returns a controller for the cycle hosted by another process.
func newClient() *httpapi.Client {
	return httpapi.NewClient(controlAddr())
}

// host owns a running cycle and everything subscribed to it.
type host struct {
	machine  *cycle.Machine
	cycle    *services.CycleService
	history  *services.HistoryService
	events   *services.EventLogger
	notifier *notification.Notifier
	closers  []func()
}

// newHost builds a cycle on the real clock with persistence, logging and
// desktop notifications attached.
func newHost() (*host, error) {
	store, err := openStorage()
	if err != nil {
		return nil, err
	}

	machine, err := cycle.New(app.config.CycleConfig(), clock.NewReal(), cycle.WithLogger(app.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create cycle: %w", err)
	}

	h := &host{
		machine:  machine,
		history:  services.NewHistoryService(store),
		notifier: notification.New(app.config.Notifications, app.logger),
	}
	h.cycle = services.NewCycleService(machine, store, git.NewDetector(), app.logger)
	h.cycle.SetPresetResolver(func(query string) (time.Duration, bool) {
		p, ok := app.config.MatchPreset(query)
		return p.Duration, ok
	})
	h.events = services.NewEventLogger(machine, app.logger)
	h.closers = append(h.closers, machine.Subscribe(h.notifier.HandleEvent))
	return h, nil
}

// subscribe attaches fn to cycle events until the host closes.
func (h *host) subscribe(fn func(domain.Event)) {
	h.closers = append(h.closers, h.machine.Subscribe(fn))
}

// serveAPI runs the control API until ctx is done. It returns immediately
// when the server is disabled.
func (h *host) serveAPI(ctx context.Context) error {
	if !app.config.Server.Enabled {
		return nil
	}
	router := httpapi.NewRouter(h.cycle, h.history, httpapi.RouterOptions{
		AllowedOrigins: app.config.Server.AllowedOrigins,
		Logger:         app.logger,
	})
	return httpapi.NewServer(controlAddr(), router, app.logger).ListenAndServe(ctx)
}

// Close detaches the notifier and other subscribers, then stops the cycle
// so the interrupted interval is still persisted and logged.
func (h *host) Close() {
	for _, c := range h.closers {
		c()
	}
	h.cycle.Close()
	h.events.Close()
}
