package dto

import (
	"time"

	"tourbook/internal/gateway"
	"tourbook/internal/model"
	"tourbook/internal/registration"
)

// EventRequest is the body of both event create and update.
type EventRequest struct {
	Name           string  `json:"name" validate:"required,notblank"`
	Description    string  `json:"description" validate:"required,notblank"`
	PricePerPerson float64 `json:"price_per_person" validate:"required,gte=0"`
	CoverImage     string  `json:"cover_image" validate:"required,notblank"`
	PaymentLink    string  `json:"payment_link" validate:"omitempty,url"`
	StartDate      string  `json:"start_date" validate:"required"`
	EndDate        string  `json:"end_date" validate:"required"`
	MinAge         int     `json:"min_age" validate:"gte=0"`
	MaxAge         int     `json:"max_age" validate:"gte=0"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PaymentLinkRequest struct {
	EventName   string  `json:"event_name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
}

type PrimaryContact struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// CreateRegistrationRequest is a registration that has already been paid for.
type CreateRegistrationRequest struct {
	EventID             int64            `json:"event_id" validate:"required,gt=0"`
	FullName            string           `json:"full_name" validate:"required,notblank,max=255"`
	PrimaryContact      PrimaryContact   `json:"primary_contact"`
	Address             string           `json:"address"`
	City                string           `json:"city"`
	State               string           `json:"state"`
	ZipCode             string           `json:"zip_code"`
	Country             string           `json:"country"`
	DateOfBirth         string           `json:"date_of_birth"`
	EmergencyContact    string           `json:"emergency_contact"`
	EmergencyPhone      string           `json:"emergency_phone"`
	SpecialRequirements string           `json:"special_requirements"`
	Participants        int              `json:"participants" validate:"required,gt=0"`
	TotalPrice          float64          `json:"total_price" validate:"gte=0"`
	TransactionID       string           `json:"transaction_id" validate:"required,notblank"`
	Travelers           []model.Traveler `json:"travelers" validate:"required"`
	TravelersSummary    string           `json:"travelers_summary"`
	RegistrationDate    *time.Time       `json:"registration_date"`
}

// CheckoutRequest runs the whole verify, charge and record sequence server side.
type CheckoutRequest struct {
	EventID int64             `json:"event_id" validate:"required,gt=0"`
	Form    registration.Form `json:"form"`
	Card    gateway.Card      `json:"card"`
}

type CheckoutResponse struct {
	State        registration.State   `json:"state"`
	Message      string               `json:"message,omitempty"`
	TotalPrice   float64              `json:"total_price"`
	Registration *model.Registration  `json:"registration,omitempty"`
	History      []registration.State `json:"history"`
}

type DeletePhotoRequest struct {
	Filename string `json:"filename"`
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}
