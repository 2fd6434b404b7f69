package model

import "errors"

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrValidation           = errors.New("validation failed")
	ErrEventNotFound        = errors.New("event not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrGateway              = errors.New("payment gateway error")
	ErrPersistence          = errors.New("persistence failed")
	ErrDuplicateSubmission  = errors.New("duplicate submission")
	ErrPaymentDeclined      = errors.New("payment declined")
	ErrNoAdultTraveler      = errors.New("at least one traveler must be 18 or older")
)
