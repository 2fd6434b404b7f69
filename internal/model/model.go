package model

import "time"

const (
	RegistrationPending   = "pending"
	RegistrationConfirmed = "confirmed"
	RegistrationFailed    = "failed"
	RegistrationExpired   = "expired"
)

const (
	DefaultMinAge = 0
	DefaultMaxAge = 99
)

type Event struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	PricePerPerson float64   `db:"price_per_person" json:"price_per_person"`
	CoverImage     string    `db:"cover_image" json:"cover_image"`
	PaymentLink    *string   `db:"payment_link" json:"payment_link,omitempty"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	MinAge         int       `db:"min_age" json:"min_age"`
	MaxAge         int       `db:"max_age" json:"max_age"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Traveler is one entry of a registration's party. It is stored inside the
// registration row, never on its own.
type Traveler struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	IsAdult bool   `json:"is_adult"`
}

type Registration struct {
	ID                   int64      `db:"id" json:"id"`
	EventID              int64      `db:"event_id" json:"event_id"`
	FullName             string     `db:"full_name" json:"full_name"`
	Email                string     `db:"email" json:"email"`
	Phone                string     `db:"phone" json:"phone"`
	Address              string     `db:"address" json:"address"`
	City                 string     `db:"city" json:"city"`
	State                string     `db:"state" json:"state"`
	ZipCode              string     `db:"zip_code" json:"zip_code"`
	Country              string     `db:"country" json:"country"`
	DateOfBirth          *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	EmergencyContact     string     `db:"emergency_contact" json:"emergency_contact"`
	EmergencyPhone       string     `db:"emergency_phone" json:"emergency_phone"`
	SpecialRequirements  string     `db:"special_requirements" json:"special_requirements"`
	NumberOfParticipants int        `db:"number_of_participants" json:"number_of_participants"`
	TotalPrice           float64    `db:"total_price" json:"total_price"`
	TransactionID        string     `db:"transaction_id" json:"transaction_id"`
	Travelers            []Traveler `db:"travelers" json:"travelers"`
	TravelersSummary     string     `db:"travelers_summary" json:"travelers_summary"`
	Status               string     `db:"status" json:"status"`
	FailureReason        string     `db:"failure_reason" json:"failure_reason,omitempty"`
	RegistrationDate     time.Time  `db:"registration_date" json:"registration_date"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// HasAdult reports whether at least one traveler is marked as an adult.
func HasAdult(travelers []Traveler) bool {
	for _, t := range travelers {
		if t.IsAdult {
			return true
		}
	}
	return false
}
