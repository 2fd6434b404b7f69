package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tourbook/internal/dto"
)

// Publisher turns registration follow-ups into messages on the broker.
type Publisher struct {
	broker Broker
	now    func() time.Time
}

func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker, now: time.Now}
}

func (p *Publisher) ScheduleExpiry(ctx context.Context, registrationID, eventID int64, after time.Duration) error {
	return p.publish(ctx, dto.RegistrationOperateMessage{
		Kind:           dto.MessageReservationExpire,
		RegistrationID: registrationID,
		EventID:        eventID,
		ExpireAt:       p.now().Add(after),
	}, after)
}

func (p *Publisher) RequestReconcile(ctx context.Context, registrationID int64, transactionID string, amount float64) error {
	return p.publish(ctx, dto.RegistrationOperateMessage{
		Kind:           dto.MessageRegistrationReconcile,
		RegistrationID: registrationID,
		TransactionID:  transactionID,
		Amount:         amount,
	}, 0)
}

func (p *Publisher) NotifyConfirmed(ctx context.Context, registrationID int64) error {
	return p.publish(ctx, dto.RegistrationOperateMessage{
		Kind:           dto.MessageRegistrationConfirmed,
		RegistrationID: registrationID,
	}, 0)
}

func (p *Publisher) publish(ctx context.Context, msg dto.RegistrationOperateMessage, delay time.Duration) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Kind, err)
	}
	return p.broker.Publish(ctx, payload, delay)
}
