package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wb-go/wbf/ginext"

	"tourbook/internal/dto"
	"tourbook/internal/model"
	"tourbook/pkg/validator"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// eventFromRequest binds and validates an event body. It writes the error
// response itself and returns false when the body is unusable.
func (s *service) eventFromRequest(ctx *ginext.Context) (*model.Event, bool) {
	var req dto.EventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse event request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return nil, false
	}
	if verr := validator.Validate(ctx.Request.Context(), req); verr != nil {
		s.log.Warn().Err(verr).Msg("event validation failed")
		validationFailed(ctx, verr)
		return nil, false
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		dto.FieldBadFormatError(ctx, "start_date")
		return nil, false
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		dto.FieldBadFormatError(ctx, "end_date")
		return nil, false
	}

	e := &model.Event{
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		PricePerPerson: req.PricePerPerson,
		CoverImage:     req.CoverImage,
		StartDate:      start,
		EndDate:        end,
		MinAge:         req.MinAge,
		MaxAge:         req.MaxAge,
	}
	if e.MaxAge == 0 {
		e.MaxAge = model.DefaultMaxAge
	}
	if link := strings.TrimSpace(req.PaymentLink); link != "" {
		e.PaymentLink = &link
	}

	if e.EndDate.Before(e.StartDate) {
		s.log.Warn().Str("name", e.Name).Time("start_date", e.StartDate).Time("end_date", e.EndDate).
			Msg("event ends before it starts, accepted as submitted")
	}
	if e.MinAge > e.MaxAge {
		s.log.Warn().Str("name", e.Name).Int("min_age", e.MinAge).Int("max_age", e.MaxAge).
			Msg("event min age exceeds max age, accepted as submitted")
	}
	return e, true
}

func (s *service) ListEvents(ctx *ginext.Context) {
	if events, ok := s.cache.GetEvents(ctx.Request.Context()); ok {
		dto.SuccessResponse(ctx, events)
		return
	}

	events, err := s.repo.GetAllEvents(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list events")
		dto.InternalServerError(ctx)
		return
	}
	s.cache.SetEvents(ctx.Request.Context(), events)
	dto.SuccessResponse(ctx, events)
}

func (s *service) GetEvent(ctx *ginext.Context) {
	id, ok := parseID(ctx)
	if !ok {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid event ID")
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, model.ErrEventNotFound) {
			s.log.Error().Err(err).Int64("event_id", id).Msg("failed to get event")
		}
		s.failure(ctx, err, "Error fetching event")
		return
	}
	dto.SuccessResponse(ctx, event)
}

func (s *service) CreateEvent(ctx *ginext.Context) {
	event, ok := s.eventFromRequest(ctx)
	if !ok {
		return
	}

	id, err := s.repo.CreateEvent(ctx.Request.Context(), event)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create event in DB")
		s.failure(ctx, err, "Error creating event")
		return
	}
	s.cache.InvalidateEvents(ctx.Request.Context())

	s.log.Info().Int64("event_id", id).Str("name", event.Name).Msg("event created successfully")
	dto.SuccessCreatedResponse(ctx, event)
}

func (s *service) UpdateEvent(ctx *ginext.Context) {
	id, ok := parseID(ctx)
	if !ok {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Event ID is required")
		return
	}
	event, ok := s.eventFromRequest(ctx)
	if !ok {
		return
	}
	event.ID = id

	if err := s.repo.UpdateEvent(ctx.Request.Context(), event); err != nil {
		if !errors.Is(err, model.ErrEventNotFound) {
			s.log.Error().Err(err).Int64("event_id", id).Msg("failed to update event")
		}
		s.failure(ctx, err, "Error updating event")
		return
	}
	s.cache.InvalidateEvents(ctx.Request.Context())

	s.log.Info().Int64("event_id", id).Msg("event updated successfully")
	dto.SuccessResponse(ctx, event)
}

func (s *service) DeleteEvent(ctx *ginext.Context) {
	id, ok := parseID(ctx)
	if !ok {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Event ID is required")
		return
	}

	if err := s.repo.DeleteEvent(ctx.Request.Context(), id); err != nil {
		if !errors.Is(err, model.ErrEventNotFound) {
			s.log.Error().Err(err).Int64("event_id", id).Msg("failed to delete event")
		}
		s.failure(ctx, err, "Error deleting event")
		return
	}
	s.cache.InvalidateEvents(ctx.Request.Context())

	s.log.Info().Int64("event_id", id).Msg("event deleted")
	dto.SuccessResponse(ctx, map[string]int64{"id": id})
}

func (s *service) UploadEventCover(ctx *ginext.Context) {
	s.storeUpload(ctx, s.gallery.SaveCover)
}
