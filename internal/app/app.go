package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"irbridge/internal/access"
	"irbridge/internal/bridge"
	"irbridge/internal/config"
	"irbridge/internal/eventbus"
	"irbridge/internal/ircmd"
	"irbridge/internal/metrics"
	"irbridge/internal/runtime/supervisor"
	"irbridge/internal/state"
	"irbridge/internal/storage"
	kit "irbridge/internal/transport"
	telegram "irbridge/internal/transport/telegram/adapter"
	"irbridge/internal/transport/telegram/router"
	logx "irbridge/pkg/logx"
	"irbridge/pkg/mqtt"
	"irbridge/pkg/systemd"
	"irbridge/pkg/tgui"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Store
	state   *state.Manager
	gate    *access.Gate
	hub     *mqtt.Hub
	adapter *telegram.Adapter
	bridge  *bridge.Bridge
	metrics *metrics.Metrics
	ops     *metrics.Server

	cmdm    *router.CommandManager
	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	timeouts, err := cfg.Timeouts()
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: timeouts.Poll}, bootLog)
	if err != nil {
		return nil, err
	}

	// Apply warns when the Telegram sink is enabled without a target, so the
	// target is set between a sink-less bootstrap and the final Apply.
	logCfg := mapLogConfig(cfg)
	boot := logCfg
	boot.Telegram.Enabled = false
	logSvc, log := logx.New(boot, ad)
	logSvc.SetTelegramTarget(cfg.Telegram.AdminChatID)
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	sc, err := StorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		return nil, err
	}
	log.Info("state storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	st := state.New(store, state.Options{
		Admin:         func() int64 { return cfgm.Get().Telegram.AdminChatID },
		Devices:       func() []string { return cfgm.Get().DeviceNames() },
		SaveRetries:   cfg.State.SaveRetries,
		OnSaveFailure: m.StateSaveFailed,
	}, log)
	gate := access.NewGate(st)

	bus := eventbus.New()
	hub := mqtt.NewHub(mapDevices(cfg), mapMQTTOptions(cfg), log,
		mqtt.WithMessageHandler(func(in mqtt.Inbound) {
			bus.Publish(eventbus.Event{
				Type: eventbus.TypeDeviceMessage,
				Data: eventbus.DeviceMessage{Device: in.Device, Topic: in.Topic, Payload: in.Payload},
			})
		}),
		mqtt.WithStateHandler(func(device string, connected bool, err error) {
			ds := eventbus.DeviceState{Device: device, Connected: connected}
			if err != nil {
				ds.Err = err.Error()
			}
			bus.Publish(eventbus.Event{Type: eventbus.TypeDeviceState, Data: ds})
		}),
	)

	var topts []ircmd.Option
	if cfg.Commands.StrictCron {
		topts = append(topts, ircmd.WithCronCheck(ircmd.CheckCron))
	}

	b := bridge.New(bridge.Deps{
		State:      st,
		Gate:       gate,
		Translator: ircmd.NewTranslator(topts...),
		Publisher:  hub,
		Sender:     ad,
		Status:     hub,
		Auditor:    store,
		Observer:   m,
		Tokens:     tgui.NewTokenStore(0, 0),
		Logger:     log,
	})

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		state:   st,
		gate:    gate,
		hub:     hub,
		adapter: ad,
		bridge:  b,
		metrics: m,
		ops:     metrics.NewServer(m, log),
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app context ends, after a fatal error or Stop.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.metrics.WatchSupervisor(a.sup)
	cfg := a.cfgm.Get()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		_, err := StorageConfig(c)
		return err
	})

	timeouts, err := cfg.Timeouts()
	if err != nil {
		return err
	}
	a.cmdm = router.NewCommandManager(a.log.With(logx.String("comp", "router")), a.adapter, a.gate, router.Options{
		Workers:    cfg.Commands.Workers,
		Timeout:    timeouts.Command,
		Sanitize:   bridge.Sanitize,
		Supervisor: a.sup,
		OnReject: func(_ *router.Request, need router.Access) {
			if need == router.AccessAuthorized {
				a.metrics.AuthRejected()
			}
		},
	})
	a.cmdm.SetRegistry(a.bridge.Commands(), a.bridge.Callbacks())

	if err := a.hub.Connect(a.sup.Context()); err != nil {
		// paho keeps retrying in the background; the bridge starts anyway.
		a.log.Warn("mqtt not fully connected at startup", logx.Err(err))
	}

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.ops.Reconfigure(a.sup.Context(), mapMetricsConfig(cfg))

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})
	a.sup.GoRestart("bridge.inbound", func(c context.Context) error {
		return a.bridge.Run(c, a.bus)
	}, supervisor.WithMaxRestarts(20), supervisor.WithFatalOnFinalError(true))
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		if err := systemd.Watchdog(c); err != nil {
			a.log.Warn("systemd watchdog disabled", logx.Err(err))
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if ok, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	_, _ = systemd.Status(fmt.Sprintf("bridging %d device(s)", len(cfg.Devices)))

	a.log.Info("app started",
		logx.String("devices", strings.Join(cfg.DeviceNames(), ",")),
		logx.String("current", a.state.Snapshot(ctx).Device),
	)
	return nil
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	_, _ = systemd.Reloading()
	defer func() { _, _ = systemd.Ready() }()

	a.logs.SetTelegramTarget(next.Telegram.AdminChatID)
	a.logs.Apply(mapLogConfig(next))
	a.ops.Reconfigure(ctx, mapMetricsConfig(next))

	if secs := restartSections(prev, next); len(secs) > 0 {
		a.log.Warn("config sections changed; restart required for them to take effect",
			logx.String("sections", strings.Join(secs, ",")))
	}
	if prev.Telegram.AdminChatID != next.Telegram.AdminChatID {
		a.log.Info("administrator changed", logx.Int64("admin", next.Telegram.AdminChatID))
	}
	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	a.sup.Cancel()

	// step bounds one shutdown stage so a stuck component cannot stall the rest.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		if limit <= 0 {
			a.log.Warn("stop step skipped, no time left", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("metrics", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("mqtt", 2*time.Second, func(context.Context) error { a.hub.Close(); return nil })
	step("state", time.Second, func(c context.Context) error { return a.state.Flush(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
