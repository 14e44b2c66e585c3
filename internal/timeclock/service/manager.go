package service

import (
	"context"
	"io"

	"timeclock/internal/timeclock/export"
	"timeclock/internal/timeclock/models"
	"timeclock/internal/timeclock/session"
	dErrors "timeclock/pkg/domain-errors"
	audit "timeclock/pkg/platform/audit"
)

// Login verifies the admin passcode and issues a manager session.
func (s *Service) Login(ctx context.Context, code string) (*session.Token, error) {
	doc, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.verifyPasscode(ctx, normalizePasscode(code), doc.Device.AdminPasscodeHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeRateLimited) {
			s.logAudit(ctx, audit.EventManagerLoginFailed, doc.Device.DeviceID, "reason", "locked_out")
			return nil, err
		}
		s.logAudit(ctx, audit.EventManagerLoginFailed, doc.Device.DeviceID, "reason", "invalid_passcode")
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid passcode")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify passcode")
	}
	token, err := s.sessions.Issue(doc.Device.DeviceID)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventManagerLogin, doc.Device.DeviceID)
	return token, nil
}

// ListEmployees returns employees in document order, optionally filtered by status.
func (s *Service) ListEmployees(ctx context.Context, status models.EmployeeStatus) ([]models.Employee, error) {
	if status != "" && !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown employee status: "+string(status))
	}
	doc, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Employee, 0, len(doc.Employees))
	for _, emp := range doc.Employees {
		if status == "" || emp.Status == status {
			out = append(out, emp)
		}
	}
	return out, nil
}

// Approve moves a pending employee to active.
func (s *Service) Approve(ctx context.Context, id string) (*models.Employee, error) {
	emp, err := s.transition(ctx, id, (*models.Employee).Approve)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventEmployeeApproved, emp.ID)
	return emp, nil
}

// Disable blocks a pending or active employee from clocking.
func (s *Service) Disable(ctx context.Context, id string) (*models.Employee, error) {
	emp, err := s.transition(ctx, id, (*models.Employee).Disable)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventEmployeeDisabled, emp.ID)
	return emp, nil
}

func (s *Service) transition(ctx context.Context, id string, apply func(*models.Employee) error) (*models.Employee, error) {
	var updated models.Employee
	_, err := s.update(ctx, "failed to update employee", func(doc *models.Document) error {
		idx := doc.EmployeeIndex(id)
		if idx < 0 {
			return dErrors.New(dErrors.CodeNotFound, "employee not found")
		}
		if err := apply(&doc.Employees[idx]); err != nil {
			return err
		}
		updated = doc.Employees[idx]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListEvents returns matching events newest first.
func (s *Service) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.EventRecord, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "type must be clock-in or clock-out")
	}
	if filter.Limit < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "limit must not be negative")
	}
	doc, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.EventRecord, 0)
	for i := len(doc.Events) - 1; i >= 0; i-- {
		if !filter.Matches(doc.Events[i]) {
			continue
		}
		out = append(out, doc.Events[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// ExportCSV writes every event as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	doc, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(w, doc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
	}
	s.logAudit(ctx, audit.EventEventsExported, doc.Device.DeviceID, "events", len(doc.Events))
	return nil
}

// Sync marks every unsynced event as synced. It is a local flip only; the
// device must be online.
func (s *Service) Sync(ctx context.Context) (int, error) {
	synced := 0
	_, err := s.update(ctx, "failed to sync events", func(doc *models.Document) error {
		if !doc.Device.Online {
			return dErrors.New(dErrors.CodeInvalidState, "device is offline")
		}
		synced = doc.MarkSynced()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if synced > 0 {
		s.logAudit(ctx, audit.EventEventsSynced, "", "count", synced)
	}
	return synced, nil
}

// Audit returns the most recent audit events, newest first.
func (s *Service) Audit(ctx context.Context, limit int) ([]audit.Event, error) {
	if s.auditPublisher == nil {
		return []audit.Event{}, nil
	}
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	events, err := s.auditPublisher.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, nil
}
