package internal

import (
	"context"
	"errors"
	mathrand "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

func jitterSleep(ctx context.Context, max time.Duration) {
	if max <= 0 {
		return
	}
	ms := mathrand.Int64N(max.Milliseconds() + 1)
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Startup reconnects every persisted session when restore is enabled.
func Startup(ctx context.Context, svc *Services) {
	log.Print(nil).Info("Running Startup Tasks")

	cfg := svc.Config.Startup
	if !cfg.Restore {
		log.Print(nil).Info("Startup restore disabled; sessions reconnect on request")
		return
	}

	ids, err := svc.Store.List()
	if err != nil {
		log.Print(nil).WithError(err).Error("Failed to list persisted sessions")
		return
	}

	maxConcurrent := cfg.Concurrency
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	timeout := svc.Config.Client.AuthTimeout * 2

	var reconnected, unpaired, failed int64
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			jitterSleep(ctx, cfg.JitterMax)
			entry := log.Session(id, "startup")

			reconnectCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			ok, err := svc.Controller.Reconnect(reconnectCtx, id)
			switch {
			case errors.Is(err, session.ErrPairingRequired):
				entry.Warn("Persisted session is not paired, skipping restore")
				atomic.AddInt64(&unpaired, 1)
			case err != nil:
				entry.WithError(err).Warn("Failed to restore session")
				atomic.AddInt64(&failed, 1)
			case ok:
				atomic.AddInt64(&reconnected, 1)
			}
		}()
	}

	wg.Wait()
	log.Print(nil).
		WithField("sessions", len(ids)).
		WithField("reconnected", reconnected).
		WithField("unpaired", unpaired).
		WithField("failed", failed).
		WithField("concurrency", maxConcurrent).
		Info("Startup reconnect pass complete")
}
