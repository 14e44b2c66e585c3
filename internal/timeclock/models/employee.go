package models

import (
	"regexp"
	"strings"
	"time"

	dErrors "timeclock/pkg/domain-errors"
)

// EmployeeStatus is the registration lifecycle state.
type EmployeeStatus string

const (
	EmployeeStatusPending  EmployeeStatus = "pending"
	EmployeeStatusActive   EmployeeStatus = "active"
	EmployeeStatusDisabled EmployeeStatus = "disabled"
)

// IsValid reports whether s is a known status.
func (s EmployeeStatus) IsValid() bool {
	switch s {
	case EmployeeStatusPending, EmployeeStatusActive, EmployeeStatusDisabled:
		return true
	}
	return false
}

// CanTransitionTo enforces pending→active, pending→disabled and active→disabled.
// Nothing returns to pending and disabled employees stay disabled.
func (s EmployeeStatus) CanTransitionTo(next EmployeeStatus) bool {
	switch s {
	case EmployeeStatusPending:
		return next == EmployeeStatusActive || next == EmployeeStatusDisabled
	case EmployeeStatusActive:
		return next == EmployeeStatusDisabled
	}
	return false
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// ValidPhone reports whether phone is digits with an optional leading '+',
// 7 to 15 digits in total.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NormalizeCode folds an employee code for comparison.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Employee is a person who may clock in at a kiosk.
//
// Invariants:
//   - ID is system-generated and stable
//   - EmployeeID (the human-entered code) is unique within OrgID+SiteID, case-insensitive
//   - Status starts at pending and moves only along CanTransitionTo
type Employee struct {
	ID           string         `json:"id"`
	OrgID        string         `json:"orgId"`
	SiteID       string         `json:"siteId"`
	EmployeeID   string         `json:"employeeId"`
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName"`
	Phone        string         `json:"phone,omitempty"`
	Address      string         `json:"address,omitempty"`
	Status       EmployeeStatus `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	ProfileImage string         `json:"profileImage,omitempty"`
}

// FullName is "First Last".
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

func (e Employee) IsActive() bool {
	return e.Status == EmployeeStatusActive
}

// NewEmployee builds a pending employee from an already-normalized request.
func NewEmployee(id string, scope Identity, req RegisterRequest, now time.Time) (*Employee, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "employee id cannot be empty")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &Employee{
		ID:           id,
		OrgID:        scope.OrgID,
		SiteID:       scope.SiteID,
		EmployeeID:   req.EmployeeID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Address:      req.Address,
		Status:       EmployeeStatusPending,
		CreatedAt:    now,
		ProfileImage: req.ProfileImage,
	}, nil
}

// Approve moves a pending employee to active.
func (e *Employee) Approve() error {
	return e.transition(EmployeeStatusActive)
}

// Disable moves a pending or active employee to disabled.
func (e *Employee) Disable() error {
	return e.transition(EmployeeStatusDisabled)
}

func (e *Employee) transition(next EmployeeStatus) error {
	if !e.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidState,
			"employee cannot move from "+string(e.Status)+" to "+string(next))
	}
	e.Status = next
	return nil
}
