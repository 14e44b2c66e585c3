package models

import (
	"time"

	dErrors "timeclock/pkg/domain-errors"
)

// EventType is the attendance action. Consecutive events of the same type are allowed.
type EventType string

const (
	EventTypeClockIn  EventType = "clock-in"
	EventTypeClockOut EventType = "clock-out"
)

func (t EventType) IsValid() bool {
	return t == EventTypeClockIn || t == EventTypeClockOut
}

// IdentificationMethod is how the employee identified at the kiosk.
type IdentificationMethod string

const (
	MethodEmployeeID  IdentificationMethod = "employeeId"
	MethodFingerprint IdentificationMethod = "fingerprint"
	MethodNFC         IdentificationMethod = "nfc"
	MethodQR          IdentificationMethod = "qr"
)

func (m IdentificationMethod) IsValid() bool {
	switch m {
	case MethodEmployeeID, MethodFingerprint, MethodNFC, MethodQR:
		return true
	}
	return false
}

// Presence is the strength of the presence confirmation.
type Presence string

const (
	PresenceStrong    Presence = "strong"
	PresenceWeak      Presence = "weak"
	PresenceSimulated Presence = "simulated"
)

func (p Presence) IsValid() bool {
	switch p {
	case PresenceStrong, PresenceWeak, PresenceSimulated:
		return true
	}
	return false
}

// Evidence is the audit descriptor attached to every event.
type Evidence struct {
	Method   IdentificationMethod `json:"method"`
	Presence Presence             `json:"presence"`
}

// WithDefaults fills an empty method/presence with employeeId/simulated.
func (e Evidence) WithDefaults() Evidence {
	if e.Method == "" {
		e.Method = MethodEmployeeID
	}
	if e.Presence == "" {
		e.Presence = PresenceSimulated
	}
	return e
}

func (e Evidence) Validate() error {
	if !e.Method.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid identification method: "+string(e.Method))
	}
	if !e.Presence.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid presence confirmation: "+string(e.Presence))
	}
	return nil
}

// EventRecord is a single clock-in or clock-out. It is created once and only
// its Image (retention purge) and Synced flag change afterwards.
type EventRecord struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	SiteID      string    `json:"siteId"`
	DeviceID    string    `json:"deviceId"`
	EmployeeRef string    `json:"employeeRef"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Evidence    Evidence  `json:"evidence"`
	Image       string    `json:"image,omitempty"`
	OfflineSeq  int64     `json:"offlineSeq"`
	Synced      bool      `json:"synced"`
}

func (e EventRecord) HasImage() bool {
	return e.Image != ""
}
