// Package cli wires configuration, host adapters and the engine into the
// runnable application used by the ussdpilot commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/ngabopay/ussdpilot"
	"github.com/ngabopay/ussdpilot/internal/config"
	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/adapters/adb"
	"github.com/ngabopay/ussdpilot/pkg/adapters/memory"
	"github.com/ngabopay/ussdpilot/pkg/adapters/process"
	redisstore "github.com/ngabopay/ussdpilot/pkg/adapters/redis"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/executor"
	"github.com/ngabopay/ussdpilot/pkg/observability"
	"github.com/ngabopay/ussdpilot/pkg/persistence/middleware"
	"github.com/ngabopay/ussdpilot/pkg/ports"
	"github.com/ngabopay/ussdpilot/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// NewLogger builds the application logger from cfg, writing to w.
func NewLogger(w io.Writer, cfg config.Log) *slog.Logger {
	return logging.NewWithFormat(w, logging.ParseLevel(cfg.Level), cfg.Format)
}

// Host is the device side the engine runs against.
type Host struct {
	Device string
	Dialer ports.Dialer
	Feed   ports.SnapshotFeed
}

// ADBHost returns a host driving the device named in cfg through adb.
func ADBHost(cfg config.Device, logger *slog.Logger) Host {
	runner := process.ADB(cfg.ADBPath, cfg.Serial, process.WithLogger(logger))
	dev := adb.NewDevice(runner,
		adb.WithLogger(logger),
		adb.WithDumpPath(cfg.DumpPath),
		adb.WithActionTimeout(cfg.ActionTimeout),
	)
	name := cfg.Serial
	if name == "" {
		name = "default"
	}
	return Host{
		Device: name,
		Dialer: dev,
		Feed:   dev.Feed(adb.WithPollInterval(cfg.PollInterval)),
	}
}

// App is a configured engine bound to its host, ready to run.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Engine  *ussdpilot.Engine
	Runner  *ussdpilot.Runner
	Host    Host
	Store   ports.ResultStore
	Metrics *prometheus.Registry

	release registry.ReleaseFunc
	closers []func() error
}

// BuildOptions carries the collaborators a command shares with the App.
type BuildOptions struct {
	// Registry guards the device. Nil creates a private one, leased through
	// redis when the redis backend is configured.
	Registry *registry.Registry

	// Hooks are added after the metrics hooks.
	Hooks []domain.LifecycleHooks
}

// Build assembles an App: result store, device guard, metrics and engine.
func Build(ctx context.Context, cfg config.Config, host Host, logger *slog.Logger, opts BuildOptions) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	app := &App{Config: cfg, Logger: logger, Host: host}

	regOpts := []registry.Option{registry.WithLogger(logger)}
	switch strings.ToLower(cfg.Store.Backend) {
	case config.StoreRedis:
		opt, err := backend.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid store.redis_url: %w", err)
		}
		client := backend.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		app.Store = redisstore.NewFromClient(client,
			redisstore.WithPrefix(cfg.Store.Prefix),
			redisstore.WithTTL(cfg.Store.TTL),
		)
		regOpts = append(regOpts, registry.WithLocker(redisstore.NewLocker(client, cfg.Store.Prefix), cfg.Store.LeaseTTL))
		app.closers = append(app.closers, client.Close)
	default:
		app.Store = memory.NewStore()
	}
	mws, err := cfg.Store.Middleware()
	if err != nil {
		app.closeAll()
		return nil, err
	}
	app.Store = middleware.Chain(app.Store, mws...)

	app.Metrics = prometheus.NewRegistry()
	app.Metrics.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(app.Metrics)

	engOpts := []ussdpilot.Option{
		ussdpilot.WithLogger(logger),
		ussdpilot.WithDevice(host.Device),
		ussdpilot.WithResultStore(app.Store),
		ussdpilot.WithTimeouts(cfg.Engine.SingleShotTimeout, cfg.Engine.StepsTimeout),
		ussdpilot.WithSettleDelay(cfg.Engine.SettleDelay),
		ussdpilot.WithStallPolicy(executor.StallPolicy(cfg.Engine.StallPolicy)),
		ussdpilot.WithProfile(cfg.Profile.WithDefaults()),
		ussdpilot.WithLifecycleHooks(metrics.Hooks()),
	}
	for _, h := range opts.Hooks {
		engOpts = append(engOpts, ussdpilot.WithLifecycleHooks(h))
	}
	eng, err := ussdpilot.New(host.Dialer, engOpts...)
	if err != nil {
		app.closeAll()
		return nil, err
	}
	app.Engine = eng

	reg := opts.Registry
	if reg == nil {
		reg = registry.New(regOpts...)
	}
	release, err := reg.Register(ctx, host.Device, eng)
	if err != nil {
		_ = eng.Close(ctx)
		app.closeAll()
		return nil, err
	}
	app.release = release

	app.Runner = ussdpilot.NewRunner(eng)
	app.Runner.Logger = logger
	if len(cfg.Device.Packages) > 0 {
		pkgs := slices.Clone(cfg.Device.Packages)
		app.Runner.Filter = func(pkg string) bool { return slices.Contains(pkgs, pkg) }
	}

	logger.Info("engine ready", "device", host.Device, "profile", eng.Classifier().Profile().ID(), "store", cfg.Store.Backend)
	return app, nil
}

// Run pumps the host feed into the engine until ctx is done.
func (a *App) Run(ctx context.Context) error {
	err := a.Runner.Run(ctx, a.Host.Feed)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops the engine, releases the device and closes the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.release != nil {
		errs = append(errs, a.release(ctx))
	}
	errs = append(errs, a.closeAll())
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
