package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tube-curator/internal/curation"
)

type videoSweeper interface {
	Sweep(ctx context.Context) (curation.SweepResult, error)
}

type sweepTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) sweepTicker

func startVideoValidationWorker(ctx context.Context, logger *slog.Logger, validator videoSweeper, interval time.Duration) func() {
	return startVideoValidationWorkerWithTicker(ctx, logger, validator, interval, func(d time.Duration) sweepTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

func startVideoValidationWorkerWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	validator videoSweeper,
	interval time.Duration,
	newTicker tickerFactory,
) func() {
	if validator == nil || interval <= 0 {
		return func() {}
	}
	workerCtx, cancel := context.WithCancel(ctx)
	ticker := newTicker(interval)
	done := make(chan struct{})
	go func() {
		defer func() {
			ticker.Stop()
			close(done)
		}()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C():
				if _, err := validator.Sweep(workerCtx); err != nil && logger != nil {
					logger.Error("video validation sweep failed", "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
