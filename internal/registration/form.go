package registration

import (
	"fmt"
	"strings"

	"tourbook/internal/model"
)

// Form is the visitor-supplied part of a registration before payment.
type Form struct {
	FullName            string           `json:"full_name"`
	Address             string           `json:"address"`
	City                string           `json:"city"`
	State               string           `json:"state"`
	ZipCode             string           `json:"zip_code"`
	Country             string           `json:"country"`
	DateOfBirth         string           `json:"date_of_birth"`
	EmergencyContact    string           `json:"emergency_contact"`
	EmergencyPhone      string           `json:"emergency_phone"`
	SpecialRequirements string           `json:"special_requirements"`
	Participants        int              `json:"participants"`
	Travelers           []model.Traveler `json:"travelers"`
}

func NewForm() *Form {
	f := &Form{}
	f.SetParticipants(1)
	return f
}

// SetParticipants regenerates the traveler list with n empty entries,
// discarding whatever was entered before.
func (f *Form) SetParticipants(n int) {
	if n < 1 {
		n = 1
	}
	f.Participants = n
	f.Travelers = make([]model.Traveler, n)
}

func (f *Form) TotalPrice(pricePerPerson float64) float64 {
	return pricePerPerson * float64(f.Participants)
}

// PrimaryAdult returns the first traveler marked as an adult.
func (f *Form) PrimaryAdult() (model.Traveler, bool) {
	for _, t := range f.Travelers {
		if t.IsAdult {
			return t, true
		}
	}
	return model.Traveler{}, false
}

func TravelersSummary(travelers []model.Traveler) string {
	parts := make([]string, 0, len(travelers))
	for i, t := range travelers {
		if t.IsAdult {
			parts = append(parts, fmt.Sprintf("Traveler %d: Adult (%s, %s)", i+1, t.Email, t.Phone))
			continue
		}
		parts = append(parts, fmt.Sprintf("Traveler %d: Minor", i+1))
	}
	return strings.Join(parts, "; ")
}
