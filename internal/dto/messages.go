package dto

import "time"

const (
	MessageReservationExpire     = "reservation.expire"
	MessageRegistrationReconcile = "registration.reconcile"
	MessageRegistrationConfirmed = "registration.confirmed"
)

// RegistrationOperateMessage is the single envelope published to the
// registrations exchange. Kind selects how the consumer handles it.
type RegistrationOperateMessage struct {
	Kind           string    `json:"kind"`
	RegistrationID int64     `json:"registration_id"`
	EventID        int64     `json:"event_id,omitempty"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	Amount         float64   `json:"amount,omitempty"`
	ExpireAt       time.Time `json:"expire_at,omitempty"`
}
