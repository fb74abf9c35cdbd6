package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/sluice"
	"github.com/aretw0/sluice/pkg/adapters/notify"
	"github.com/aretw0/sluice/pkg/adapters/process"
	"github.com/aretw0/sluice/pkg/adapters/redis"
	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/observability"
	"github.com/aretw0/sluice/pkg/ports"
)

// app wires the engine from the loaded configuration.
type app struct {
	engine   *sluice.Engine
	executor *process.Executor
	metrics  *observability.Metrics
	closers  []func() error
}

func newApp(hooks ...domain.LifecycleHooks) (*app, error) {
	jobs, err := process.LoadJobs(cfg.JobsFile)
	if err != nil {
		return nil, err
	}
	a := &app{
		executor: process.NewExecutor(
			process.WithRegistry(jobs),
			process.WithStateDir(cfg.StateDir),
			process.WithLogger(logger),
		),
		metrics: observability.NewMetrics(),
	}
	a.closers = append(a.closers, a.executor.Close)

	var notifier ports.Notifier = notify.NewLog(logger)
	if cfg.SMTP.Host != "" {
		notifier = notify.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From,
			notify.WithCredentials(cfg.SMTP.Username, cfg.SMTP.Password))
	}

	hooks = append([]domain.LifecycleHooks{a.metrics.Hooks()}, hooks...)
	opts := []sluice.Option{
		sluice.WithExecutor(a.executor),
		sluice.WithNotifier(notifier),
		sluice.WithLogger(logger),
		sluice.WithLifecycleHooks(observability.Combine(hooks...)),
		sluice.WithPollInterval(cfg.PollInterval),
		sluice.WithWaitInterval(cfg.WaitInterval),
	}

	if cfg.RedisURL != "" {
		store, err := redis.New(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		opts = append(opts,
			sluice.WithStore(store),
			sluice.WithLocker(redis.NewLocker(store.Client(), redis.DefaultPrefix)),
			sluice.WithAbortSignal(redis.NewAbortSignal(store.Client(), redis.DefaultPrefix)),
		)
		logger.Debug("using redis backend", "url", cfg.RedisURL)
	}

	engine, err := sluice.New(cfg.Dir, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init engine: %w", err)
	}
	a.engine = engine
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
