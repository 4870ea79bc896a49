package models

import "frontdesk/internal/clock"

// DailyToken is a clinic's queue-number counter. CurrentValue restarts at 1
// on the first issuance of each LastIssuedDate.
type DailyToken struct {
	ClinicID       string     `json:"clinic_id"`
	CurrentValue   int        `json:"current_value"`
	LastIssuedDate clock.Date `json:"last_issued_date"`
}
