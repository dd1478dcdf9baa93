// Package app wires configuration, motion libraries, the movement loop and
// the web server into one locomotion service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/internal/config"
	"github.com/teslashibe/go-locomotion/internal/log"
	"github.com/teslashibe/go-locomotion/pkg/motion"
	"github.com/teslashibe/go-locomotion/pkg/movement"
	"github.com/teslashibe/go-locomotion/pkg/watch"
	"github.com/teslashibe/go-locomotion/pkg/web"
)

// App is a running locomotion service.
type App struct {
	cfg *config.Config

	manager *movement.Manager
	server  *web.Server
	watcher *watch.Watcher

	// Steering installed at startup, if any.
	Steering movement.Steering

	logger *slog.Logger
}

// New validates cfg and returns an uninitialised app.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{cfg: cfg, logger: log.For("app")}, nil
}

// Init loads the libraries and builds the engine, loop and server.
func (a *App) Init() error {
	sel, err := LoadSelecter(a.cfg.Library, a.cfg.Character)
	if err != nil {
		return err
	}

	opts := a.movementOptions()
	gen, err := motion.NewGenerator(sel, opts.Generator)
	if err != nil {
		return err
	}

	a.manager = movement.NewManager(gen, movement.PublisherFunc(a.publish), opts)
	a.server = web.NewServer(a.cfg.Server.Port, a.manager)
	a.server.SetLibraries(sel)

	if a.cfg.Server.Watch {
		dirs := append([]string{a.cfg.Library.Idle}, a.cfg.Library.Modes...)
		a.watcher, err = watch.New(dirs...)
		if err != nil {
			return fmt.Errorf("watch libraries: %w", err)
		}
	}

	a.logger.Info("locomotion initialised",
		"modes", sel.Modes(),
		"idle_segments", sel.IdleLibrary().Len(),
		"rate", a.manager.Rate())
	return nil
}

func (a *App) movementOptions() movement.Options {
	ch := a.cfg.Character
	return movement.Options{
		HalfLife:      a.cfg.Blend.HalfLife,
		HandleContact: a.cfg.Blend.HandleContact,
		UnlockRadius:  a.cfg.Blend.UnlockRadius,
		Generator: motion.GeneratorOptions{
			StartPosition:            vec(ch.StartPosition),
			StartDirection:           vec(ch.StartDirection),
			ContactVelocityThreshold: ch.ContactVelocityThreshold,
			ContactJoints:            ch.ContactJoints,
		},
	}
}

func (a *App) publish(u movement.Update) error {
	return a.server.Publish(u)
}

// Run serves until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+a.cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the service on ln until ctx is cancelled or the server fails.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if a.manager == nil {
		return errors.New("app not initialised")
	}

	if a.Steering != nil {
		a.manager.SetSteering(a.Steering)
	}
	go a.manager.Run()

	if a.watcher != nil {
		go a.watchLibraries(ctx)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Serve(ln) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// watchLibraries reloads the libraries whenever a clip changes.
func (a *App) watchLibraries(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case paths, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			a.logger.Info("motion clips changed, reloading", "files", len(paths))
			a.reload()
		case err, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
			a.logger.Warn("library watch error", "error", err)
		}
	}
}

func (a *App) reload() {
	sel, err := LoadSelecter(a.cfg.Library, a.cfg.Character)
	if err != nil {
		a.logger.Error("library reload failed, keeping current libraries", "error", err)
		return
	}
	a.manager.Reload(sel)
	a.server.SetLibraries(sel)
}

// Manager returns the movement loop.
func (a *App) Manager() *movement.Manager {
	return a.manager
}

// Server returns the web server.
func (a *App) Server() *web.Server {
	return a.server
}

// Shutdown stops the loop, the watcher and the server.
func (a *App) Shutdown() {
	if a.manager != nil {
		a.manager.Stop()
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.logger.Warn("watcher close failed", "error", err)
		}
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- a.server.Shutdown() }()
		select {
		case err := <-done:
			if err != nil {
				a.logger.Warn("server shutdown failed", "error", err)
			}
		case <-ctx.Done():
			a.logger.Warn("server shutdown timed out")
		}
	}
	a.logger.Info("locomotion stopped")
}

func vec(v [3]float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
