// Package app wires the services together and owns the update dispatch loop.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gatebot/internal/config"
	"gatebot/internal/daily"
	"gatebot/internal/energy"
	"gatebot/internal/intake"
	"gatebot/internal/moderation"
	"gatebot/internal/netprobe"
	"gatebot/internal/scheduler"
	"gatebot/internal/state"
	"gatebot/internal/storage"
	kit "gatebot/internal/transport"
	telegram "gatebot/internal/transport/telegram"
	"gatebot/internal/weather"
	logx "gatebot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	bot   *telegram.Adapter
	store *state.Store
	audit storage.Store
	sched *scheduler.Service

	pipe  *intake.Pipeline
	mod   *moderation.Service
	probe *netprobe.Service
	wx    *weather.Service
	dly   *daily.Service

	updates chan kit.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	controlChatID int64
	introText     string
}

const introText = "Hi! Send a message - text, photo, video or document. It goes to the channel after moderation."

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Telegram.ControlChatID == 0 {
		return nil, fmt.Errorf("telegram.control_chat_id is required")
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	bot, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: config.ParseDuration(cfg.Telegram.PollTimeout, 10*time.Second),
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap logging with the Telegram sink disabled, point the sink at the
	// control chat, then apply the final config. Avoids a spurious warning
	// about a missing target during startup.
	baseLogCfg := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    false,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
	logs, log := logx.New(baseLogCfg, bot)
	logs.SetTelegramTarget(cfg.Telegram.ControlChatID)
	finalLogCfg := baseLogCfg
	finalLogCfg.Telegram.Enabled = cfg.Logging.Telegram.Enabled
	logs.Apply(finalLogCfg)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store := state.Open(cfg.State.Path, mapRetention(cfg.State, cfg.Moderation), log.With(logx.String("comp", "state")))

	var audit storage.Store
	if cfg.Audit != nil {
		audit, err = storage.Open(storage.Config{
			Driver:      cfg.Audit.Driver,
			Path:        cfg.Audit.Path,
			BusyTimeout: config.ParseDuration(cfg.Audit.BusyTimeout, 0),
		}, log.With(logx.String("comp", "audit")))
		if err != nil {
			return nil, err
		}
		if audit != nil {
			log.Info("audit store enabled", logx.String("driver", cfg.Audit.Driver))
		}
	}

	sched := scheduler.New(log.With(logx.String("comp", "scheduler")), cfg.Daily.Timezone)

	pipe := intake.New(intake.Config{
		ControlChatID:    cfg.Telegram.ControlChatID,
		UncheckChannelID: cfg.Telegram.UncheckChannelID,
		QuietPeriod:      config.ParseDuration(cfg.Intake.QuietPeriod, intake.DefaultQuietPeriod),
	}, bot, store, sched, log.With(logx.String("comp", "intake")))
	pipe.SetEnergyModel(mapEnergyModel(cfg.Energy))
	pipe.SetAudit(audit)

	mod := moderation.New(moderation.Config{
		ControlChatID:     cfg.Telegram.ControlChatID,
		ApprovedChannelID: cfg.Telegram.ApprovedChannelID,
	}, bot, store, log.With(logx.String("comp", "moderation")))
	mod.SetAudit(audit)
	pipe.SetControlRefresh(mod.RefreshControl)

	a := &App{
		cfgm:          cfgm,
		logs:          logs,
		log:           log,
		bot:           bot,
		store:         store,
		audit:         audit,
		sched:         sched,
		pipe:          pipe,
		mod:           mod,
		controlChatID: cfg.Telegram.ControlChatID,
		introText:     introText,
	}

	if cfg.Netprobe.Enabled {
		a.probe = netprobe.New(config.ParseDuration(cfg.Netprobe.Interval, netprobe.DefaultInterval),
			log.With(logx.String("comp", "netprobe")))
		pipe.SetRTTSource(a.probe)
	}
	if cfg.Weather.Enabled {
		a.wx = weather.New(weather.Config{
			APIKey:        cfg.Weather.APIKey,
			Lat:           cfg.Weather.Lat,
			Lon:           cfg.Weather.Lon,
			CityLabel:     cfg.Weather.CityLabel,
			MinC:          cfg.Weather.MinC,
			MaxC:          cfg.Weather.MaxC,
			Interval:      config.ParseDuration(cfg.Weather.Interval, weather.DefaultInterval),
			TitleTemplate: cfg.Weather.TitleTemplate,
			ChannelID:     cfg.Telegram.UncheckChannelID,
		}, bot, store, cfg.Weather.Timezone, log.With(logx.String("comp", "weather")))
	}
	a.dly = daily.New(daily.Config{
		Morning:     cfg.Daily.Morning,
		Evening:     cfg.Daily.Evening,
		MorningText: cfg.Daily.MorningText,
		EveningText: cfg.Daily.EveningText,
		ChannelID:   cfg.Telegram.UncheckChannelID,
	}, bot, store, log.With(logx.String("comp", "daily")))

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.sched.Start(runCtx)
	a.updates = make(chan kit.Update, 128)
	if err := a.bot.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.dispatch(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.applyConfigUpdates(runCtx)
	}()

	if a.probe != nil {
		a.probe.Start(a.sched)
	}
	if a.wx != nil {
		a.wx.Start(a.sched)
	}

	cfg := a.cfgm.Get()
	if cfg != nil && cfg.Daily.Enabled {
		// Config turns daily on at boot; a persisted operator "off" can be
		// restored through /daily_off.
		if err := a.dly.SetEnabled(true); err != nil {
			a.log.Error("state save failed on daily seed", logx.Err(err))
		}
	}
	if err := a.dly.Schedule(a.sched); err != nil {
		a.log.Warn("daily schedule rejected", logx.Err(err))
	}

	a.mod.RefreshControl(runCtx)
	a.log.Info("bot is running")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	_ = a.bot.Stop(ctx)
	_ = a.sched.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := a.store.Save(); err != nil {
		a.log.Error("final state save failed", logx.Err(err))
	}
	if a.audit != nil {
		_ = a.audit.Close()
	}
	_ = a.logs.Close()
	return nil
}

// applyConfigUpdates pushes reloaded logging settings to the log service.
// Everything else requires a restart.
func (a *App) applyConfigUpdates(ctx context.Context) {
	sub := a.cfgm.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-sub:
			if cfg == nil {
				continue
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
				Telegram: logx.TelegramConfig{
					Enabled:    cfg.Logging.Telegram.Enabled,
					MinLevel:   cfg.Logging.Telegram.MinLevel,
					RatePerSec: cfg.Logging.Telegram.RatePerSec,
				},
			})
			a.log.Info("logging config applied")
		}
	}
}

func mapRetention(sc config.StateConfig, mc config.ModerationConfig) state.Retention {
	return state.Retention{
		HistoryMaxAge:     config.ParseDuration(sc.HistoryMaxAge, 0),
		HistoryMaxPerUser: sc.HistoryMaxPerUser,
		MaxTrackedUsers:   sc.MaxTrackedUsers,
		LedgerMaxAge:      config.ParseDuration(sc.LedgerMaxAge, 0),
		MediaGroupMaxAge:  config.ParseDuration(sc.MediaGroupMaxAge, 0),
		ReachCap:          sc.ReachCap,
		PendingMaxAge:     config.ParseDuration(mc.PendingMaxAge, 0),
		HourlyInterval:    config.ParseDuration(sc.HourlyInterval, 0),
		WeeklyInterval:    config.ParseDuration(sc.WeeklyInterval, 0),
	}
}

func mapEnergyModel(ec config.EnergyConfig) energy.Model {
	m := energy.DefaultModel()
	if ec.Overhead > 0 {
		m.Overhead = ec.Overhead
	}
	if ec.EncryptionOverhead > 0 {
		m.EncryptionOverhead = ec.EncryptionOverhead
	}
	if ec.RetryRate > 0 {
		m.RetryRate = ec.RetryRate
	}
	if ec.ServerNetworkW > 0 {
		m.ServerNetworkW = ec.ServerNetworkW
	}
	if ec.ServerShare > 0 {
		m.ServerShare = ec.ServerShare
	}
	for name, p := range ec.Profiles {
		net := energy.Network(strings.ToLower(strings.TrimSpace(name)))
		if net == "" || net == energy.NetworkAuto {
			continue
		}
		m.Profiles[net] = energy.Profile{
			RadioW:       p.RadioW,
			CPUW:         p.CPUW,
			TailS:        p.TailS,
			CapacityMbps: p.CapacityMbps,
		}
	}
	return m
}
