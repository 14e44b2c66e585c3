// Package recorder appends attendance events to the kiosk document.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"timeclock/internal/timeclock/metrics"
	"timeclock/internal/timeclock/models"
	dErrors "timeclock/pkg/domain-errors"
)

// Updater applies a mutation to the persisted document atomically.
type Updater interface {
	Update(ctx context.Context, fn func(doc *models.Document) error) (*models.Document, error)
}

type Recorder struct {
	store   Updater
	clock   func() time.Time
	newID   func() string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Recorder)

func WithClock(clock func() time.Time) Option {
	return func(r *Recorder) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithIDGenerator replaces uuid generation for event ids.
func WithIDGenerator(fn func() string) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func New(store Updater, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		clock:  time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends a clock event for employee and persists the document.
//
// The employee is re-read from the current snapshot by id, so a status change
// made after the caller resolved the code is honored. The image is kept only
// when the device requires selfies.
func (r *Recorder) Record(
	ctx context.Context,
	employee models.Employee,
	eventType models.EventType,
	evidence models.Evidence,
	image string,
) (*models.EventRecord, error) {
	if !eventType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid event type: "+string(eventType))
	}
	evidence = evidence.WithDefaults()
	if err := evidence.Validate(); err != nil {
		return nil, err
	}

	var recorded models.EventRecord
	_, err := r.store.Update(ctx, func(doc *models.Document) error {
		if !doc.Device.Enrolled {
			return dErrors.New(dErrors.CodeNotEnrolled, "device is not enrolled")
		}
		idx := doc.EmployeeIndex(employee.ID)
		if idx < 0 {
			return dErrors.New(dErrors.CodeNotFound, "employee not found")
		}
		current := doc.Employees[idx]
		if !current.IsActive() {
			return dErrors.New(dErrors.CodeIneligible, "employee is "+string(current.Status))
		}

		recorded = models.EventRecord{
			ID:          r.newID(),
			OrgID:       doc.Device.OrgID,
			SiteID:      doc.Device.SiteID,
			DeviceID:    doc.Device.DeviceID,
			EmployeeRef: current.ID,
			Type:        eventType,
			Timestamp:   r.clock(),
			Evidence:    evidence,
			OfflineSeq:  doc.PendingSeq,
			Synced:      doc.Device.Online,
		}
		if doc.Device.SelfieRequired {
			recorded.Image = image
		}
		doc.PendingSeq++
		doc.Events = append(doc.Events, recorded)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.metrics.IncrementEventRecorded(eventType)
	r.logger.InfoContext(ctx, "attendance event recorded",
		"event_id", recorded.ID,
		"employee_ref", recorded.EmployeeRef,
		"type", recorded.Type,
		"offline_seq", recorded.OfflineSeq,
		"synced", recorded.Synced,
	)
	return &recorded, nil
}
