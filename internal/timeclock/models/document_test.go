package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentDefaults(t *testing.T) {
	doc := NewDocument(testScope, "digest")

	assert.Empty(t, doc.Employees)
	assert.NotNil(t, doc.Employees)
	assert.Empty(t, doc.Events)
	assert.Equal(t, int64(1), doc.PendingSeq)
	assert.True(t, doc.Device.Enrolled)
	assert.Equal(t, DefaultRetentionWeeks, doc.Device.RetentionWeeks)
	assert.True(t, doc.Device.SelfieRequired)
	assert.True(t, doc.Device.StrongBiometricRequired)
	assert.False(t, doc.Device.Online)
	assert.Equal(t, "digest", doc.Device.AdminPasscodeHash)
	assert.Equal(t, testScope, doc.Device.Identity())
}

func TestDocumentCloneIsDeep(t *testing.T) {
	doc := NewDocument(testScope, "digest")
	doc.Employees = append(doc.Employees, Employee{ID: "a", Status: EmployeeStatusPending})
	doc.Events = append(doc.Events, EventRecord{ID: "ev", Image: "data:image/jpeg;base64,xx"})

	clone := doc.Clone()
	clone.Employees[0].Status = EmployeeStatusActive
	clone.Events[0].Image = ""
	clone.Device.Online = true

	assert.Equal(t, EmployeeStatusPending, doc.Employees[0].Status)
	assert.True(t, doc.Events[0].HasImage())
	assert.False(t, doc.Device.Online)
}

func TestDocumentNormalize(t *testing.T) {
	doc := &Document{}
	doc.Normalize()
	assert.NotNil(t, doc.Employees)
	assert.NotNil(t, doc.Events)
	assert.Equal(t, int64(1), doc.PendingSeq)
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 3, 29, 12, 0, 0, 0, time.UTC)
	doc := NewDocument(testScope, "digest")

	doc.Device.RetentionWeeks = 2
	assert.Equal(t, now.AddDate(0, 0, -14), doc.RetentionCutoff(now))

	doc.Device.RetentionWeeks = 0
	assert.Equal(t, now, doc.RetentionCutoff(now))
}

func TestEvidence(t *testing.T) {
	ev := Evidence{}.WithDefaults()
	assert.Equal(t, MethodEmployeeID, ev.Method)
	assert.Equal(t, PresenceSimulated, ev.Presence)
	require.NoError(t, ev.Validate())

	assert.Error(t, Evidence{Method: "retina", Presence: PresenceStrong}.Validate())
	assert.Error(t, Evidence{Method: MethodQR, Presence: "maybe"}.Validate())
}

func TestEventFilter(t *testing.T) {
	ev := EventRecord{EmployeeRef: "e1", Type: EventTypeClockIn}

	assert.True(t, EventFilter{}.Matches(ev))
	assert.True(t, EventFilter{EmployeeRef: "e1", Type: EventTypeClockIn}.Matches(ev))
	assert.False(t, EventFilter{EmployeeRef: "e2"}.Matches(ev))
	assert.False(t, EventFilter{Type: EventTypeClockOut}.Matches(ev))
}
