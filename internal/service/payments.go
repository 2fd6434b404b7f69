package service

import (
	"errors"
	"time"

	"github.com/wb-go/wbf/ginext"

	"tourbook/internal/dto"
	"tourbook/internal/gateway"
	"tourbook/internal/model"
)

// VerifyCard forwards a card check and returns the gateway's answer as is.
func (s *service) VerifyCard(ctx *ginext.Context) {
	var req gateway.VerifyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	res, err := s.gateway.Verify(ctx.Request.Context(), &req)
	if err != nil {
		s.failure(ctx, err, "Error verifying card")
		return
	}
	dto.SuccessResponse(ctx, res)
}

// ChargeCard forwards a charge and returns the gateway's answer as is.
func (s *service) ChargeCard(ctx *ginext.Context) {
	var req gateway.ChargeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	key, err := s.claim(ctx, "charge")
	if err != nil {
		s.failure(ctx, err, dto.DuplicateDesc)
		return
	}

	res, err := s.gateway.Charge(ctx.Request.Context(), &req)
	if err != nil {
		if key != "" {
			s.cache.Release(ctx.Request.Context(), key)
		}
		s.failure(ctx, err, "Error processing payment")
		return
	}
	if !res.Approved() && key != "" {
		s.cache.Release(ctx.Request.Context(), key)
	}
	dto.SuccessResponse(ctx, res)
}

func (s *service) GeneratePaymentLink(ctx *ginext.Context) {
	var req dto.PaymentLinkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	linkReq := &gateway.LinkRequest{
		EventName:   req.EventName,
		Description: req.Description,
		Price:       req.Price,
	}
	var ok bool
	if linkReq.StartDate, ok = optionalDate(ctx, "start_date", req.StartDate); !ok {
		return
	}
	if linkReq.EndDate, ok = optionalDate(ctx, "end_date", req.EndDate); !ok {
		return
	}

	res, err := s.gateway.GenerateLink(ctx.Request.Context(), linkReq)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrValidation):
			dto.BadResponseError(ctx, dto.ValidationFailed, validationDesc(err))
		default:
			s.log.Error().Err(err).Str("event_name", req.EventName).Msg("failed to generate payment link")
			s.failure(ctx, err, linkFailureDesc(err))
		}
		return
	}

	s.log.Info().Str("event_name", req.EventName).Bool("test_mode", res.TestMode).Msg("payment link generated")
	dto.SuccessResponse(ctx, res)
}

// linkFailureDesc carries the gateway's own explanation through to the caller.
func linkFailureDesc(err error) string {
	const desc = "Failed to generate payment link"
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.Detail != "" {
		return desc + ": " + gwErr.Detail
	}
	return desc
}

func optionalDate(ctx *ginext.Context, field, value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	t, err := parseDate(value)
	if err != nil {
		dto.FieldBadFormatError(ctx, field)
		return nil, false
	}
	return &t, true
}
