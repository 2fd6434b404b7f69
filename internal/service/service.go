package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"tourbook/internal/auth"
	"tourbook/internal/cache"
	"tourbook/internal/dto"
	"tourbook/internal/gallery"
	"tourbook/internal/gateway"
	"tourbook/internal/model"
	"tourbook/internal/registration"
	"tourbook/internal/repo"
	"tourbook/pkg/validator"
)

const IdempotencyHeader = "Idempotency-Key"

type Service interface {
	Login(ctx *ginext.Context)
	Health(ctx *ginext.Context)

	ListEvents(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	CreateEvent(ctx *ginext.Context)
	UpdateEvent(ctx *ginext.Context)
	DeleteEvent(ctx *ginext.Context)
	UploadEventCover(ctx *ginext.Context)

	ListPhotos(ctx *ginext.Context)
	UploadPhoto(ctx *ginext.Context)
	DeletePhoto(ctx *ginext.Context)

	VerifyCard(ctx *ginext.Context)
	ChargeCard(ctx *ginext.Context)
	GeneratePaymentLink(ctx *ginext.Context)

	CreateRegistration(ctx *ginext.Context)
	Checkout(ctx *ginext.Context)
	GetRegistration(ctx *ginext.Context)
}

// PaymentGateway is the subset of the payment client the handlers call.
type PaymentGateway interface {
	Verify(ctx context.Context, req *gateway.VerifyRequest) (*gateway.VerifyResult, error)
	Charge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResult, error)
	GenerateLink(ctx context.Context, req *gateway.LinkRequest) (*gateway.LinkResult, error)
}

type Deps struct {
	Repo      repo.Repository
	Gateway   PaymentGateway
	Flow      *registration.Flow
	Scheduler registration.Scheduler
	Cache     cache.Cache
	Gallery   *gallery.Storage
	Auth      *auth.Checker
	Log       *zerolog.Logger
}

type service struct {
	repo      repo.Repository
	gateway   PaymentGateway
	flow      *registration.Flow
	scheduler registration.Scheduler
	cache     cache.Cache
	gallery   *gallery.Storage
	auth      *auth.Checker
	log       *zerolog.Logger
	now       func() time.Time
}

func NewService(d Deps) Service {
	c := d.Cache
	if c == nil {
		c = cache.Noop{}
	}
	return &service{
		repo:      d.Repo,
		gateway:   d.Gateway,
		flow:      d.Flow,
		scheduler: d.Scheduler,
		cache:     c,
		gallery:   d.Gallery,
		auth:      d.Auth,
		log:       d.Log,
		now:       time.Now,
	}
}

func (s *service) Health(ctx *ginext.Context) {
	resp := dto.HealthResponse{Status: "ok", Services: map[string]string{}}
	status := http.StatusOK

	if err := s.repo.Ping(ctx.Request.Context()); err != nil {
		s.log.Error().Err(err).Msg("database health check failed")
		resp.Services["postgres"] = "down"
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		resp.Services["postgres"] = "up"
	}
	if err := s.cache.Ping(ctx.Request.Context()); err != nil {
		resp.Services["redis"] = "down"
		resp.Status = "degraded"
	} else {
		resp.Services["redis"] = "up"
	}

	ctx.JSON(status, dto.Response{Status: "ok", Data: resp})
}

func parseID(ctx *ginext.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// validationFailed writes the envelope for a failed validator.Validate call.
func validationFailed(ctx *ginext.Context, err error) {
	var fe *validator.FieldError
	if errors.As(err, &fe) && fe.Msg == validator.ErrFieldRequired {
		dto.BadResponseError(ctx, dto.ValidationFailed, fe.Error())
		return
	}
	dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
}

// failure maps a domain error onto the response envelope.
func (s *service) failure(ctx *ginext.Context, err error, desc string) {
	var gwErr *gateway.Error
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		dto.UnauthorizedError(ctx)
	case errors.Is(err, model.ErrNoAdultTraveler):
		dto.BadResponseError(ctx, dto.NoAdultTraveler, desc)
	case errors.Is(err, model.ErrValidation):
		dto.BadResponseError(ctx, dto.ValidationFailed, desc)
	case errors.Is(err, model.ErrEventNotFound):
		dto.EventNotFoundError(ctx)
	case errors.Is(err, model.ErrRegistrationNotFound):
		dto.RegistrationNotFoundError(ctx)
	case errors.Is(err, model.ErrDuplicateSubmission):
		dto.DuplicateSubmissionError(ctx)
	case errors.Is(err, model.ErrPaymentDeclined):
		dto.PaymentDeclinedError(ctx, desc)
	case errors.As(err, &gwErr):
		dto.GatewayFailure(ctx, gwErr.StatusCode, desc)
	case errors.Is(err, model.ErrGateway):
		dto.GatewayFailure(ctx, 0, desc)
	case errors.Is(err, model.ErrPersistence):
		dto.PersistenceError(ctx, desc)
	default:
		dto.InternalServerError(ctx)
	}
}

// claim guards a payment submission with the optional idempotency key.
// It returns the claimed key, or "" when the request carries none.
func (s *service) claim(ctx *ginext.Context, scope string) (string, error) {
	key := ctx.GetHeader(IdempotencyHeader)
	if key == "" {
		return "", nil
	}
	key = scope + ":" + key
	first, err := s.cache.Claim(ctx.Request.Context(), key)
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scope).Msg("idempotency check unavailable, accepting request")
		return "", nil
	}
	if !first {
		return "", model.ErrDuplicateSubmission
	}
	return key, nil
}
