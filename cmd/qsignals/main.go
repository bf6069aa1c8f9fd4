package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/evdnx/qsignals/config"
	"github.com/evdnx/qsignals/executor"
	"github.com/evdnx/qsignals/feed"
	"github.com/evdnx/qsignals/indicators"
	"github.com/evdnx/qsignals/logger"
	"github.com/evdnx/qsignals/runner"
	"github.com/evdnx/qsignals/store"
	"github.com/evdnx/qsignals/strategy"
)

const maxBars = 500

func main() {
	configPath := flag.String("config", "qsignals.yaml", "path to the YAML config file")
	flag.Parse()

	app := fx.New(
		fx.Supply(configPath),
		fx.Provide(
			func(path *string) (*config.StrategyConfig, error) {
				return config.Load(*path)
			},
			newLogger,
			newStore,
			executor.NewPaperExecutor,
			func(cfg *config.StrategyConfig) *indicators.Provider {
				return indicators.NewProvider(cfg.Symbol.ChartTimeframe, cfg.ATR.Periods, maxBars)
			},
			func(cfg *config.StrategyConfig, paper *executor.PaperExecutor, p *indicators.Provider,
				st store.CooldownStore, l logger.Logger) (*strategy.Engine, error) {
				return strategy.NewEngine(*cfg, paper, p, st, l)
			},
			func(cfg *config.StrategyConfig, l logger.Logger) *feed.Client {
				return feed.NewClient(cfg.Host.FeedURL, cfg.Symbol.Name, cfg.Timeframes(), l)
			},
			func(cfg *config.StrategyConfig, eng *strategy.Engine, p *indicators.Provider,
				paper *executor.PaperExecutor, l logger.Logger) *runner.Runner {
				return runner.New(cfg, eng, p, paper, l)
			},
		),
		fx.Invoke(register),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}

func newLogger(cfg *config.StrategyConfig) (logger.Logger, error) {
	lc := cfg.Host.Log
	return logger.NewZapLogger(logger.Options{
		Level:      lc.Level,
		File:       lc.File,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
		Compress:   lc.Compress,
	})
}

func newStore(lc fx.Lifecycle, cfg *config.StrategyConfig, l logger.Logger) (store.CooldownStore, error) {
	var st store.CooldownStore = store.NewNoopStore()
	if cfg.Host.SQLitePath != "" {
		s, err := store.NewSQLiteStore(cfg.Host.SQLitePath, l)
		if err != nil {
			return nil, err
		}
		st = s
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return st.Close() }})
	return st, nil
}

func register(lc fx.Lifecycle, sd fx.Shutdowner, cfg *config.StrategyConfig, l logger.Logger,
	fc *feed.Client, r *runner.Runner) error {

	if cfg.Host.FeedURL == "" {
		return errors.New("host.feed_url is required")
	}

	sched := cron.New(cron.WithSeconds())
	if cfg.Host.StatusCron != "" {
		if _, err := sched.AddFunc(cfg.Host.StatusCron, r.RequestStatus); err != nil {
			return err
		}
	}

	var srv *http.Server
	if cfg.Host.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Addr: cfg.Host.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan feed.Event, 256)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := fc.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
					l.Error("feed_stopped", logger.Err(err))
				}
			}()
			go func() {
				if err := r.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
					l.Error("runner_stopped", logger.Err(err))
					_ = sd.Shutdown()
				}
			}()
			if srv != nil {
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						l.Error("metrics_server_failed", logger.Err(err))
					}
				}()
			}
			sched.Start()
			l.Info("qsignals_running",
				logger.String("feed", cfg.Host.FeedURL),
				logger.String("metrics", cfg.Host.MetricsAddr),
			)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			<-sched.Stop().Done()
			cancel()
			if srv != nil {
				if err := srv.Shutdown(stopCtx); err != nil {
					return err
				}
			}
			l.Info("qsignals_stopped")
			return nil
		},
	})
	return nil
}
