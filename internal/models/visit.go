package models

import (
	"time"

	"frontdesk/internal/clock"
)

// VisitState is the position of a visit in the front-desk flow.
type VisitState string

const (
	VisitArrived      VisitState = "arrived"
	VisitAskedToWait  VisitState = "asked_to_wait"
	VisitCalledInside VisitState = "called_inside"
	VisitInProgress   VisitState = "in_progress"
	VisitExited       VisitState = "exited"
)

// Valid reports whether s is one of the known states.
func (s VisitState) Valid() bool {
	switch s {
	case VisitArrived, VisitAskedToWait, VisitCalledInside, VisitInProgress, VisitExited:
		return true
	}
	return false
}

// Terminal reports whether no further action is accepted in s.
func (s VisitState) Terminal() bool {
	return s == VisitExited
}

// Visit is one patient's single-day encounter at a clinic.
type Visit struct {
	ID             string     `json:"id"`
	ClinicID       string     `json:"clinic_id"`
	DoctorID       string     `json:"doctor_id"`
	Token          int        `json:"token"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	DOB            string     `json:"dob"` // YYYY-MM-DD, as entered at the desk
	ArrivalTime    time.Time  `json:"arrival_time"`
	State          VisitState `json:"state"`
	AskedToWaitAt  *time.Time `json:"asked_to_wait_at"`
	CalledInsideAt *time.Time `json:"called_inside_at"`
	InProgressAt   *time.Time `json:"in_progress_at"`
	ExitedAt       *time.Time `json:"exited_at"`
}

// ArrivalDay returns the clinic-local day the visit belongs to.
func (v *Visit) ArrivalDay() clock.Date {
	return clock.DateOf(v.ArrivalTime)
}

// FullName joins first and last name.
func (v *Visit) FullName() string {
	if v.LastName == "" {
		return v.FirstName
	}
	if v.FirstName == "" {
		return v.LastName
	}
	return v.FirstName + " " + v.LastName
}

// Clone returns a copy that shares no timestamp pointers with v.
func (v Visit) Clone() Visit {
	v.AskedToWaitAt = cloneTime(v.AskedToWaitAt)
	v.CalledInsideAt = cloneTime(v.CalledInsideAt)
	v.InProgressAt = cloneTime(v.InProgressAt)
	v.ExitedAt = cloneTime(v.ExitedAt)
	return v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
