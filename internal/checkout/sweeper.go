package checkout

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const sweepBatch = 100

// Sweeper periodically releases PENDING orders older than TTL.
type Sweeper struct {
	service  *Service
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(service *Service, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		service:  service,
		ttl:      ttl,
		interval: interval,
		logger:   service.logger.Named("sweeper"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("sweeper started", zap.Duration("ttl", w.ttl), zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if n, err := w.Sweep(ctx); err != nil {
				w.logger.Error("sweep failed", zap.Error(err))
			} else if n > 0 {
				w.logger.Info("released abandoned orders", zap.Int("count", n))
			}
		}
	}
}

// Sweep releases one batch of stale orders and returns how many were released.
func (w *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := w.service.clock().Add(-w.ttl)
	stale, err := w.service.store.ListStalePending(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, order := range stale {
		if ctx.Err() != nil {
			return released, ctx.Err()
		}
		log := w.logger.With(zap.String("orderId", order.ID.Hex()))
		if order.PaymentSessionID != "" {
			if err := w.service.payments.ExpireSession(ctx, order.PaymentSessionID); err != nil {
				log.Warn("could not expire payment session", zap.Error(err))
			}
		}
		ok, err := w.service.ReleaseOrder(ctx, order.ID, ReasonAbandoned)
		if err != nil {
			log.Error("release failed", zap.Error(err))
			continue
		}
		if ok {
			released++
		}
	}
	return released, nil
}
