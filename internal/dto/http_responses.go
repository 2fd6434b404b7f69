package dto

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat       = "FIELD_BADFORMAT"
	FieldIncorrect       = "FIELD_INCORRECT"
	ValidationFailed     = "VALIDATION_FAILED"
	ServiceUnavailable   = "SERVICE_UNAVAILABLE"
	Unauthorized         = "UNAUTHORIZED"
	EventNotFound        = "EVENT_NOT_FOUND"
	RegistrationNotFound = "REGISTRATION_NOT_FOUND"
	PhotoNotFound        = "PHOTO_NOT_FOUND"
	GatewayError         = "GATEWAY_ERROR"
	PersistenceFailed    = "PERSISTENCE_FAILED"
	DuplicateSubmission  = "DUPLICATE_SUBMISSION"
	PaymentDeclined      = "PAYMENT_DECLINED"
	NoAdultTraveler      = "NO_ADULT_TRAVELER"

	InternalError    = "Service is currently unavailable. Please try again later."
	SaveFailedDesc   = "Error saving your registration. Please contact support."
	DuplicateDesc    = "This request was already submitted"
	UnauthorizedDesc = "Unauthorized"
)

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func ErrorResponse(c *ginext.Context, status int, code, desc string) {
	c.AbortWithStatusJSON(status, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *ginext.Context) {
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, InternalError)
}

func UnauthorizedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusUnauthorized, Unauthorized, UnauthorizedDesc)
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

func EventNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, EventNotFound, "Event not found")
}

func RegistrationNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, RegistrationNotFound, "Registration not found")
}

func PhotoNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, PhotoNotFound, "File not found")
}

func DuplicateSubmissionError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, DuplicateSubmission, DuplicateDesc)
}

func PaymentDeclinedError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusPaymentRequired, PaymentDeclined, desc)
}

func PersistenceError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusInternalServerError, PersistenceFailed, desc)
}

// GatewayFailure reports an upstream payment API failure. Upstream 4xx/5xx
// statuses are passed through, anything else becomes 502.
func GatewayFailure(c *ginext.Context, upstreamStatus int, desc string) {
	status := http.StatusBadGateway
	if upstreamStatus >= 400 && upstreamStatus <= 599 {
		status = upstreamStatus
	}
	ErrorResponse(c, status, GatewayError, desc)
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}
