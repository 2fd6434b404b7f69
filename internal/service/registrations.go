package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/wb-go/wbf/ginext"

	"tourbook/internal/dto"
	"tourbook/internal/model"
	"tourbook/internal/registration"
	"tourbook/pkg/validator"
)

// CreateRegistration records a registration that was paid for elsewhere.
func (s *service) CreateRegistration(ctx *ginext.Context) {
	var req dto.CreateRegistrationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx.Request.Context(), req); verr != nil {
		validationFailed(ctx, verr)
		return
	}
	if !model.HasAdult(req.Travelers) {
		dto.BadResponseError(ctx, dto.NoAdultTraveler, model.ErrNoAdultTraveler.Error())
		return
	}
	if len(req.Travelers) != req.Participants {
		dto.BadResponseError(ctx, dto.ValidationFailed,
			fmt.Sprintf("expected %d travelers, got %d", req.Participants, len(req.Travelers)))
		return
	}
	// The payment already went through, so an unknown event never blocks the record.
	if _, err := s.repo.GetEventByID(ctx.Request.Context(), req.EventID); err != nil {
		s.log.Warn().Err(err).
			Int64("event_id", req.EventID).
			Str("transaction_id", req.TransactionID).
			Msg("recording paid registration for an event that could not be found")
	}

	reg := &model.Registration{
		EventID:              req.EventID,
		FullName:             req.FullName,
		Email:                req.PrimaryContact.Email,
		Phone:                req.PrimaryContact.Phone,
		Address:              req.Address,
		City:                 req.City,
		State:                req.State,
		ZipCode:              req.ZipCode,
		Country:              req.Country,
		EmergencyContact:     req.EmergencyContact,
		EmergencyPhone:       req.EmergencyPhone,
		SpecialRequirements:  req.SpecialRequirements,
		NumberOfParticipants: req.Participants,
		TotalPrice:           req.TotalPrice,
		TransactionID:        req.TransactionID,
		Travelers:            req.Travelers,
		TravelersSummary:     req.TravelersSummary,
		RegistrationDate:     s.now(),
	}
	if reg.TravelersSummary == "" {
		reg.TravelersSummary = registration.TravelersSummary(req.Travelers)
	}
	if req.RegistrationDate != nil {
		reg.RegistrationDate = *req.RegistrationDate
	}
	if req.DateOfBirth != "" {
		dob, err := parseDate(req.DateOfBirth)
		if err != nil {
			dto.FieldBadFormatError(ctx, "date_of_birth")
			return
		}
		reg.DateOfBirth = &dob
	}

	id, err := s.repo.CreateRegistration(ctx.Request.Context(), reg)
	if err != nil {
		s.log.Error().Err(err).
			Int64("event_id", req.EventID).
			Str("transaction_id", req.TransactionID).
			Msg("failed to save paid registration")
		dto.PersistenceError(ctx, dto.SaveFailedDesc)
		return
	}
	if err := s.scheduler.NotifyConfirmed(ctx.Request.Context(), id); err != nil {
		s.log.Warn().Err(err).Int64("registration_id", id).Msg("failed to publish confirmation notice")
	}

	s.log.Info().Int64("registration_id", id).Int64("event_id", reg.EventID).Msg("registration recorded")
	dto.SuccessCreatedResponse(ctx, reg)
}

// Checkout runs verify, charge and record for one submitted form.
func (s *service) Checkout(ctx *ginext.Context) {
	var req dto.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx.Request.Context(), req); verr != nil {
		validationFailed(ctx, verr)
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), req.EventID)
	if err != nil {
		s.failure(ctx, err, "Error fetching event")
		return
	}

	key, err := s.claim(ctx, "checkout")
	if err != nil {
		s.log.Warn().Int64("event_id", req.EventID).Msg("duplicate checkout submission rejected")
		s.failure(ctx, err, dto.DuplicateDesc)
		return
	}

	started := time.Now()
	attempt := s.flow.Submit(ctx.Request.Context(), event, &req.Form, req.Card)
	s.log.Info().
		Int64("event_id", event.ID).
		Str("state", string(attempt.State)).
		Str("card_last4", req.Card.Last4()).
		Dur("took", time.Since(started)).
		Msg("checkout finished")

	if attempt.State != registration.StateComplete {
		if key != "" && !attempt.Charge.Approved() {
			s.cache.Release(ctx.Request.Context(), key)
		}
		s.failure(ctx, attempt.Err, attempt.Message)
		return
	}

	dto.SuccessCreatedResponse(ctx, dto.CheckoutResponse{
		State:        attempt.State,
		TotalPrice:   attempt.TotalPrice,
		Registration: attempt.Registration,
		History:      attempt.History(),
	})
}

func (s *service) GetRegistration(ctx *ginext.Context) {
	id, ok := parseID(ctx)
	if !ok {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid registration ID")
		return
	}

	reg, err := s.repo.GetRegistrationByID(ctx.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, model.ErrRegistrationNotFound) {
			s.log.Error().Err(err).Int64("registration_id", id).Msg("failed to get registration")
		}
		s.failure(ctx, err, "Error fetching registration")
		return
	}
	dto.SuccessResponse(ctx, reg)
}
