package models

import (
	"strings"

	dErrors "timeclock/pkg/domain-errors"
)

// RegisterRequest is the self-registration form submitted at the kiosk.
type RegisterRequest struct {
	EmployeeID   string `json:"employeeId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Normalize trims whitespace and strips separators people type into phone numbers.
func (r *RegisterRequest) Normalize() {
	r.EmployeeID = strings.TrimSpace(r.EmployeeID)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Address = strings.TrimSpace(r.Address)
	r.Phone = strings.Map(func(c rune) rune {
		switch c {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return c
	}, strings.TrimSpace(r.Phone))
}

func (r *RegisterRequest) Validate() error {
	if r.EmployeeID == "" {
		return dErrors.New(dErrors.CodeValidation, "employee id is required")
	}
	if r.FirstName == "" {
		return dErrors.New(dErrors.CodeValidation, "first name is required")
	}
	if r.LastName == "" {
		return dErrors.New(dErrors.CodeValidation, "last name is required")
	}
	if r.Phone != "" && !ValidPhone(r.Phone) {
		return dErrors.New(dErrors.CodeValidation, "phone must be 7 to 15 digits with an optional leading +")
	}
	return nil
}

// ClockRequest is a clock-in/clock-out attempt from the kiosk.
type ClockRequest struct {
	Code     string    `json:"code"`
	Type     EventType `json:"type"`
	Evidence Evidence  `json:"evidence"`
	Image    string    `json:"image,omitempty"`
}

// SettingsUpdate carries optional changes; nil fields are left alone.
type SettingsUpdate struct {
	Online                  *bool `json:"online,omitempty"`
	RetentionWeeks          *int  `json:"retentionWeeks,omitempty"`
	SelfieRequired          *bool `json:"selfieRequired,omitempty"`
	StrongBiometricRequired *bool `json:"strongBiometricRequired,omitempty"`
}

func (u SettingsUpdate) Validate() error {
	if u.RetentionWeeks != nil && (*u.RetentionWeeks < 0 || *u.RetentionWeeks > MaxRetentionWeeks) {
		return dErrors.New(dErrors.CodeValidation, "retention weeks out of range")
	}
	return nil
}

// EventFilter narrows a manager event listing.
type EventFilter struct {
	EmployeeRef string
	Type        EventType
	Limit       int
}

// Matches reports whether ev passes the filter (Limit is applied by the caller).
func (f EventFilter) Matches(ev EventRecord) bool {
	if f.EmployeeRef != "" && ev.EmployeeRef != f.EmployeeRef {
		return false
	}
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	return true
}
