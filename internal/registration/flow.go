package registration

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tourbook/internal/gateway"
	"tourbook/internal/model"
)

type State string

const (
	StateCollectingInfo State = "collecting-info"
	StateVerifyingCard  State = "verifying-card"
	StateChargingCard   State = "charging-card"
	StatePersisting     State = "persisting"
	StateComplete       State = "complete"
	StateError          State = "error"
)

const (
	DefaultReservationTimeout = 15 * time.Minute

	msgNoAdult        = "at least one traveler must be 18 or older"
	msgNoPrimaryAdult = "could not find an adult traveler"
	msgVerifyFailed   = "card verification failed"
	msgChargeFailed   = "payment failed"
	msgReserveFailed  = "registration could not be started, no payment was taken"
	msgSaveFailed     = "registration could not be saved, please contact support"
	dateOfBirthLayout = "2006-01-02"
)

type Payments interface {
	Verify(ctx context.Context, req *gateway.VerifyRequest) (*gateway.VerifyResult, error)
	Charge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResult, error)
}

// Recorder is the durable side of a registration: a pending reservation is
// written before any money moves, stamped with the charge reference once the
// card is charged, then confirmed or failed.
type Recorder interface {
	ReservePending(ctx context.Context, reg *model.Registration) (int64, error)
	RecordCharge(ctx context.Context, id int64, transactionID string) error
	ConfirmRegistration(ctx context.Context, id int64, transactionID string) error
	MarkRegistrationFailed(ctx context.Context, id int64, reason string) error
}

// Scheduler hands follow-up work to the background reconciler.
type Scheduler interface {
	ScheduleExpiry(ctx context.Context, registrationID, eventID int64, after time.Duration) error
	RequestReconcile(ctx context.Context, registrationID int64, transactionID string, amount float64) error
	NotifyConfirmed(ctx context.Context, registrationID int64) error
}

type Flow struct {
	payments           Payments
	recorder           Recorder
	scheduler          Scheduler
	log                *zerolog.Logger
	reservationTimeout time.Duration
	now                func() time.Time
}

func NewFlow(payments Payments, recorder Recorder, scheduler Scheduler, log *zerolog.Logger, reservationTimeout time.Duration) *Flow {
	if reservationTimeout <= 0 {
		reservationTimeout = DefaultReservationTimeout
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Flow{
		payments:           payments,
		recorder:           recorder,
		scheduler:          scheduler,
		log:                log,
		reservationTimeout: reservationTimeout,
		now:                time.Now,
	}
}

// Attempt is the outcome of one submission together with the states it went through.
type Attempt struct {
	State        State
	Err          error
	Message      string
	TotalPrice   float64
	Registration *model.Registration
	Verify       *gateway.VerifyResult
	Charge       *gateway.ChargeResult
	history      []State
}

func (a *Attempt) History() []State {
	return append([]State(nil), a.history...)
}

func (a *Attempt) moveTo(s State) {
	a.State = s
	a.history = append(a.history, s)
}

func (a *Attempt) fail(err error, msg string) *Attempt {
	a.Err = err
	a.Message = msg
	a.moveTo(StateError)
	return a
}

// Submit runs verify, reserve, charge and confirm for one registration form.
// It never retries and never returns a nil Attempt.
func (f *Flow) Submit(ctx context.Context, event *model.Event, form *Form, card gateway.Card) *Attempt {
	a := &Attempt{}
	a.moveTo(StateCollectingInfo)
	a.TotalPrice = form.TotalPrice(event.PricePerPerson)

	if len(form.Travelers) != form.Participants {
		return a.fail(fmt.Errorf("%w: %d travelers for %d participants", model.ErrValidation, len(form.Travelers), form.Participants),
			"traveler details must be provided for every participant")
	}
	if !model.HasAdult(form.Travelers) {
		return a.fail(model.ErrNoAdultTraveler, msgNoAdult)
	}
	primary, ok := form.PrimaryAdult()
	if !ok {
		return a.fail(model.ErrNoAdultTraveler, msgNoPrimaryAdult)
	}

	a.moveTo(StateVerifyingCard)
	verify, err := f.payments.Verify(ctx, &gateway.VerifyRequest{
		Card:           card,
		BillingAddress: form.Address,
		BillingZip:     form.ZipCode,
	})
	if err != nil {
		return a.fail(err, msgVerifyFailed)
	}
	a.Verify = verify
	if !verify.Approved() {
		return a.fail(fmt.Errorf("%w: verify status %q", model.ErrPaymentDeclined, verify.Status),
			orDefault(verify.ErrorMessage, msgVerifyFailed))
	}

	reg := f.buildRegistration(event, form, primary, a.TotalPrice)
	id, err := f.recorder.ReservePending(ctx, reg)
	if err != nil {
		f.log.Error().Err(err).Int64("event_id", event.ID).Msg("failed to reserve registration")
		return a.fail(fmt.Errorf("%w: %v", model.ErrPersistence, err), msgReserveFailed)
	}
	reg.ID = id
	a.Registration = reg
	if err := f.scheduler.ScheduleExpiry(ctx, id, event.ID, f.reservationTimeout); err != nil {
		f.log.Warn().Err(err).Int64("registration_id", id).Msg("failed to schedule reservation expiry")
	}

	a.moveTo(StateChargingCard)
	charge, err := f.payments.Charge(ctx, &gateway.ChargeRequest{
		Card:           card,
		BillingAddress: form.Address,
		BillingZip:     form.ZipCode,
		Amount:         a.TotalPrice,
		EventName:      event.Name,
		FullName:       form.FullName,
		Email:          primary.Email,
		Phone:          primary.Phone,
		Address:        form.Address,
		City:           form.City,
		State:          form.State,
		ZipCode:        form.ZipCode,
		Country:        form.Country,
	})
	if err != nil {
		f.markFailed(ctx, id, err.Error())
		return a.fail(err, msgChargeFailed)
	}
	a.Charge = charge
	if !charge.Approved() {
		f.markFailed(ctx, id, orDefault(charge.ErrorMessage, charge.Status))
		return a.fail(fmt.Errorf("%w: charge status %q", model.ErrPaymentDeclined, charge.Status),
			orDefault(charge.ErrorMessage, msgChargeFailed))
	}
	reg.TransactionID = charge.ReferenceNumber
	if err := f.recorder.RecordCharge(ctx, id, charge.ReferenceNumber); err != nil {
		f.log.Error().
			Err(err).
			Int64("registration_id", id).
			Str("transaction_id", charge.ReferenceNumber).
			Msg("failed to record charge on pending registration")
	}

	a.moveTo(StatePersisting)
	if err := f.recorder.ConfirmRegistration(ctx, id, charge.ReferenceNumber); err != nil {
		f.log.Error().
			Err(err).
			Int64("registration_id", id).
			Str("transaction_id", charge.ReferenceNumber).
			Msg("charge succeeded but registration was not confirmed")
		if rerr := f.scheduler.RequestReconcile(ctx, id, charge.ReferenceNumber, a.TotalPrice); rerr != nil {
			f.log.Error().Err(rerr).Int64("registration_id", id).Msg("failed to request reconciliation")
		}
		return a.fail(fmt.Errorf("%w: %v", model.ErrPersistence, err), msgSaveFailed)
	}
	reg.Status = model.RegistrationConfirmed

	if err := f.scheduler.NotifyConfirmed(ctx, id); err != nil {
		f.log.Warn().Err(err).Int64("registration_id", id).Msg("failed to publish confirmation notice")
	}
	f.log.Info().
		Int64("registration_id", id).
		Int64("event_id", event.ID).
		Float64("total_price", a.TotalPrice).
		Msg("registration completed")

	a.moveTo(StateComplete)
	return a
}

func (f *Flow) markFailed(ctx context.Context, id int64, reason string) {
	if err := f.recorder.MarkRegistrationFailed(ctx, id, reason); err != nil {
		f.log.Error().Err(err).Int64("registration_id", id).Msg("failed to mark registration as failed")
	}
}

func (f *Flow) buildRegistration(event *model.Event, form *Form, primary model.Traveler, total float64) *model.Registration {
	reg := &model.Registration{
		EventID:              event.ID,
		FullName:             form.FullName,
		Email:                primary.Email,
		Phone:                primary.Phone,
		Address:              form.Address,
		City:                 form.City,
		State:                form.State,
		ZipCode:              form.ZipCode,
		Country:              form.Country,
		EmergencyContact:     form.EmergencyContact,
		EmergencyPhone:       form.EmergencyPhone,
		SpecialRequirements:  form.SpecialRequirements,
		NumberOfParticipants: form.Participants,
		TotalPrice:           total,
		Travelers:            append([]model.Traveler(nil), form.Travelers...),
		TravelersSummary:     TravelersSummary(form.Travelers),
		Status:               model.RegistrationPending,
		RegistrationDate:     f.now(),
	}
	if dob, err := time.Parse(dateOfBirthLayout, form.DateOfBirth); err == nil {
		reg.DateOfBirth = &dob
	}
	return reg
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
