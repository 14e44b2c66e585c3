package models

import "time"

// Document is the persisted aggregate and the only unit of persistence.
// Every mutation produces a new full Document that overwrites the previous one.
type Document struct {
	Employees  []Employee     `json:"employees"`
	Events     []EventRecord  `json:"events"`
	Device     DeviceSettings `json:"device"`
	PendingSeq int64          `json:"pendingSeq"`
	Version    int64          `json:"version"`
}

// NewDocument returns a fresh aggregate for a new installation. The caller
// supplies the digest of the default admin passcode so that it is present
// before the document is ever observed.
func NewDocument(identity Identity, passcodeHash string) *Document {
	return &Document{
		Employees: []Employee{},
		Events:    []EventRecord{},
		Device: DeviceSettings{
			Enrolled:                true,
			OrgID:                   identity.OrgID,
			SiteID:                  identity.SiteID,
			DeviceID:                identity.DeviceID,
			RetentionWeeks:          DefaultRetentionWeeks,
			SelfieRequired:          true,
			StrongBiometricRequired: true,
			AdminPasscodeHash:       passcodeHash,
		},
		PendingSeq: 1,
	}
}

// Normalize replaces nil slices and a zero sequence left by older or hand-edited payloads.
func (d *Document) Normalize() {
	if d.Employees == nil {
		d.Employees = []Employee{}
	}
	if d.Events == nil {
		d.Events = []EventRecord{}
	}
	if d.PendingSeq < 1 {
		d.PendingSeq = 1
	}
}

// Clone returns a deep copy; slices are not shared with d.
func (d *Document) Clone() *Document {
	out := *d
	out.Employees = append(make([]Employee, 0, len(d.Employees)), d.Employees...)
	out.Events = append(make([]EventRecord, 0, len(d.Events)), d.Events...)
	return &out
}

// EmployeeIndex returns the position of the employee with the given internal id, or -1.
func (d *Document) EmployeeIndex(id string) int {
	for i := range d.Employees {
		if d.Employees[i].ID == id {
			return i
		}
	}
	return -1
}

// RetentionCutoff is the instant at or before which event images expire.
func (d *Document) RetentionCutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(d.Device.RetentionWeeks) * 7 * 24 * time.Hour)
}
