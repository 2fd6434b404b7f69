package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"tourbook/internal/dto"
	"tourbook/internal/gateway"
	"tourbook/internal/model"
	"tourbook/internal/repo"
)

type Store interface {
	GetEventByID(ctx context.Context, id int64) (*model.Event, error)
	GetRegistrationByID(ctx context.Context, id int64) (*model.Registration, error)
	ConfirmRegistration(ctx context.Context, id int64, transactionID string) error
	ExpireIfPendingTx(ctx context.Context, id int64) (bool, error)
}

type Refunder interface {
	Refund(ctx context.Context, referenceNumber string, amount float64) (*gateway.ChargeResult, error)
}

type Notifier interface {
	SendConfirmation(ctx context.Context, reg *model.Registration, event *model.Event) error
}

// Reconciler settles registrations whose payment and record went out of step.
type Reconciler struct {
	store    Store
	refunder Refunder
	notifier Notifier
	log      *zerolog.Logger
}

func NewReconciler(store Store, refunder Refunder, notifier Notifier, log *zerolog.Logger) *Reconciler {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Reconciler{store: store, refunder: refunder, notifier: notifier, log: log}
}

// Handle processes one broker message. A returned error asks for redelivery,
// so malformed or unknown messages are logged and dropped instead.
func (r *Reconciler) Handle(ctx context.Context, body []byte) error {
	var msg dto.RegistrationOperateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		r.log.Error().Err(err).Str("body", string(body)).Msg("dropping undecodable message")
		return nil
	}

	r.log.Info().
		Str("kind", msg.Kind).
		Int64("registration_id", msg.RegistrationID).
		Msg("received registration message")

	switch msg.Kind {
	case dto.MessageReservationExpire:
		_, err := r.Expire(ctx, msg.RegistrationID)
		return err
	case dto.MessageRegistrationReconcile:
		return r.Settle(ctx, msg.RegistrationID, msg.TransactionID, msg.Amount)
	case dto.MessageRegistrationConfirmed:
		r.notify(ctx, msg.RegistrationID)
		return nil
	default:
		r.log.Warn().Str("kind", msg.Kind).Msg("dropping message of unknown kind")
		return nil
	}
}

// Expire marks a never-charged pending registration as expired.
func (r *Reconciler) Expire(ctx context.Context, id int64) (bool, error) {
	expired, err := r.store.ExpireIfPendingTx(ctx, id)
	if errors.Is(err, model.ErrRegistrationNotFound) {
		r.log.Warn().Int64("registration_id", id).Msg("registration to expire does not exist")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("expire registration %d: %w", id, err)
	}
	if expired {
		r.log.Info().Int64("registration_id", id).Msg("pending registration expired")
	}
	return expired, nil
}

// Settle confirms a charged registration. When the record can no longer be
// confirmed the charge is refunded.
func (r *Reconciler) Settle(ctx context.Context, id int64, transactionID string, amount float64) error {
	err := r.store.ConfirmRegistration(ctx, id, transactionID)
	switch {
	case err == nil:
		r.log.Info().Int64("registration_id", id).Str("transaction_id", transactionID).Msg("registration reconciled")
		r.notify(ctx, id)
		return nil
	case errors.Is(err, repo.ErrNotPending), errors.Is(err, model.ErrRegistrationNotFound):
		return r.refund(ctx, id, transactionID, amount)
	default:
		return fmt.Errorf("confirm registration %d: %w", id, err)
	}
}

func (r *Reconciler) refund(ctx context.Context, id int64, transactionID string, amount float64) error {
	if transactionID == "" {
		r.log.Error().Int64("registration_id", id).Msg("cannot refund a charge without a transaction id")
		return nil
	}

	res, err := r.refunder.Refund(ctx, transactionID, amount)
	if err != nil {
		return fmt.Errorf("refund %s: %w", transactionID, err)
	}
	if !res.Approved() {
		r.log.Error().
			Int64("registration_id", id).
			Str("transaction_id", transactionID).
			Str("status", res.Status).
			Str("error", res.ErrorMessage).
			Msg("refund was not approved, manual follow-up required")
		return nil
	}

	r.log.Warn().
		Int64("registration_id", id).
		Str("transaction_id", transactionID).
		Str("refund_reference", res.ReferenceNumber).
		Float64("amount", amount).
		Msg("charge refunded, registration could not be confirmed")
	return nil
}

func (r *Reconciler) notify(ctx context.Context, id int64) {
	reg, err := r.store.GetRegistrationByID(ctx, id)
	if err != nil {
		r.log.Error().Err(err).Int64("registration_id", id).Msg("failed to load registration for notification")
		return
	}
	event, err := r.store.GetEventByID(ctx, reg.EventID)
	if err != nil {
		r.log.Warn().Err(err).Int64("event_id", reg.EventID).Msg("event of confirmed registration is gone")
		event = nil
	}
	if err := r.notifier.SendConfirmation(ctx, reg, event); err != nil {
		r.log.Warn().Err(err).Int64("registration_id", id).Msg("failed to send confirmation")
	}
}
