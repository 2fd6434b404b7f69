package consumerWorker

import (
	"context"

	"github.com/rs/zerolog"

	"tourbook/internal/rabbit"
)

type Reader struct {
	broker     rabbit.Broker
	reconciler *Reconciler
	log        *zerolog.Logger
	done       chan struct{}
	cancel     context.CancelFunc
}

func NewReader(broker rabbit.Broker, reconciler *Reconciler, log *zerolog.Logger) *Reader {
	return &Reader{
		broker:     broker,
		reconciler: reconciler,
		log:        log,
		done:       make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.log.Info().Msg("registration reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			return r.reconciler.Handle(cctx, body)
		}

		if err := r.broker.Consume(handler); err != nil {
			r.log.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		r.log.Info().Msg("registration reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
