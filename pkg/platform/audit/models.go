package audit

import "time"

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers changes to who may clock in and to device policy.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers manager authentication and passcode handling.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine kiosk activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from service logic to capture manager and kiosk actions.
// It is transport-agnostic so stores can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Subject is the entity acted on: an employee id, event id or the device id.
	Subject   string `json:"subject,omitempty"`
	ActorID   string `json:"actorId,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
	// Client is a display name derived from the User-Agent, e.g. "Chrome on Android".
	Client string `json:"client,omitempty"`
}

type AuditEvent string

const (
	// Kiosk events
	EventEmployeeRegistered AuditEvent = "employee_registered"
	EventClockRecorded      AuditEvent = "clock_recorded"
	EventClockRejected      AuditEvent = "clock_rejected"

	// Manager events
	EventManagerLogin       AuditEvent = "manager_login"
	EventManagerLoginFailed AuditEvent = "manager_login_failed"
	EventEmployeeApproved   AuditEvent = "employee_approved"
	EventEmployeeDisabled   AuditEvent = "employee_disabled"
	EventEventsExported     AuditEvent = "events_exported"
	EventEventsSynced       AuditEvent = "events_synced"

	// Settings events
	EventSettingsUpdated  AuditEvent = "settings_updated"
	EventDeviceEnrolled   AuditEvent = "device_enrolled"
	EventDeviceUnenrolled AuditEvent = "device_unenrolled"
	EventPasscodeChanged  AuditEvent = "passcode_changed"
	EventImagesPurged     AuditEvent = "images_purged"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventEmployeeRegistered: CategoryCompliance,
	EventEmployeeApproved:   CategoryCompliance,
	EventEmployeeDisabled:   CategoryCompliance,
	EventSettingsUpdated:    CategoryCompliance,
	EventDeviceEnrolled:     CategoryCompliance,
	EventDeviceUnenrolled:   CategoryCompliance,
	EventImagesPurged:       CategoryCompliance,
	EventEventsExported:     CategoryCompliance,

	EventManagerLogin:       CategorySecurity,
	EventManagerLoginFailed: CategorySecurity,
	EventPasscodeChanged:    CategorySecurity,
	EventClockRejected:      CategorySecurity,

	EventClockRecorded: CategoryOperations,
	EventEventsSynced:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
