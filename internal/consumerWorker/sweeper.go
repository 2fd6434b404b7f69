package consumerWorker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tourbook/internal/model"
)

const (
	DefaultSweepInterval = time.Minute
	DefaultSweepBatch    = 100
)

type StaleLister interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Registration, error)
}

// Sweeper periodically settles pending registrations whose expiry message was lost.
type Sweeper struct {
	lister     StaleLister
	reconciler *Reconciler
	log        *zerolog.Logger
	interval   time.Duration
	batch      int
	staleAfter time.Duration
	now        func() time.Time
}

func NewSweeper(lister StaleLister, reconciler *Reconciler, log *zerolog.Logger, interval time.Duration, batch int, staleAfter time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Sweeper{
		lister:     lister,
		reconciler: reconciler,
		log:        log,
		interval:   interval,
		batch:      batch,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("pending registration sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("pending registration sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep handles one batch and returns how many registrations changed state.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.lister.ListStalePending(ctx, s.now().Add(-s.staleAfter), s.batch)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, reg := range stale {
		if reg.TransactionID != "" {
			if err := s.reconciler.Settle(ctx, reg.ID, reg.TransactionID, reg.TotalPrice); err != nil {
				s.log.Error().Err(err).Int64("registration_id", reg.ID).Msg("failed to settle stale registration")
				continue
			}
			settled++
			continue
		}
		expired, err := s.reconciler.Expire(ctx, reg.ID)
		if err != nil {
			s.log.Error().Err(err).Int64("registration_id", reg.ID).Msg("failed to expire stale registration")
			continue
		}
		if expired {
			settled++
		}
	}

	if settled > 0 {
		s.log.Info().Int("count", settled).Msg("stale pending registrations settled")
	}
	return settled, nil
}
