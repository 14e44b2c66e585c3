package service

import (
	"context"
	"errors"

	"timeclock/internal/timeclock/identity"
	"timeclock/internal/timeclock/models"
	dErrors "timeclock/pkg/domain-errors"
	audit "timeclock/pkg/platform/audit"
	"timeclock/pkg/platform/sentinel"
)

// Status reports enrollment and policy flags for the kiosk screen.
func (s *Service) Status(ctx context.Context) (*models.KioskStatus, error) {
	doc, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	status := doc.Status()
	return &status, nil
}

// Lookup resolves a code to an active employee in the device's scope.
func (s *Service) Lookup(ctx context.Context, code string) (*models.Employee, error) {
	doc, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	emp, err := s.resolveEligible(doc, code)
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// Clock records a clock-in or clock-out for the employee identified by req.Code.
func (s *Service) Clock(ctx context.Context, req models.ClockRequest) (*models.EventRecord, error) {
	if !req.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "type must be clock-in or clock-out")
	}
	evidence := req.Evidence.WithDefaults()
	if err := evidence.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if doc.Device.StrongBiometricRequired && evidence.Presence == models.PresenceWeak {
		return nil, dErrors.New(dErrors.CodeValidation, "strong presence confirmation is required on this device")
	}
	emp, err := s.resolveEligible(doc, req.Code)
	if err != nil {
		s.logAudit(ctx, audit.EventClockRejected, models.NormalizeCode(req.Code), "reason", err.Error())
		return nil, err
	}

	ev, err := s.recorder.Record(ctx, emp, req.Type, evidence, req.Image)
	if err != nil {
		s.logAudit(ctx, audit.EventClockRejected, emp.ID, "reason", err.Error())
		return nil, storeError(err, "failed to record event")
	}
	s.logAudit(ctx, audit.EventClockRecorded, emp.ID,
		"event_id", ev.ID,
		"type", string(ev.Type),
		"presence", string(ev.Evidence.Presence),
	)
	return ev, nil
}

// Register self-registers a new employee as pending.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.Employee, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var created models.Employee
	_, err := s.update(ctx, "failed to register employee", func(doc *models.Document) error {
		scope := doc.Device.Identity()
		if identity.CodeTaken(req.EmployeeID, scope.OrgID, scope.SiteID, "", doc.Employees) {
			return dErrors.New(dErrors.CodeConflict, "employee id is already registered")
		}
		emp, err := models.NewEmployee(s.newID(), scope, req, now(ctx))
		if err != nil {
			return err
		}
		doc.Employees = append(doc.Employees, *emp)
		created = *emp
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventEmployeeRegistered, created.ID, "employee_code", created.EmployeeID)
	return &created, nil
}

func (s *Service) resolveEligible(doc *models.Document, code string) (models.Employee, error) {
	if !doc.Device.Enrolled {
		return models.Employee{}, dErrors.New(dErrors.CodeNotEnrolled, "device is not enrolled")
	}
	emp, err := identity.Resolve(code, doc.Device.OrgID, doc.Device.SiteID, doc.Employees)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Employee{}, dErrors.New(dErrors.CodeNotFound, "employee not found")
	}
	if err != nil {
		return models.Employee{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve employee")
	}
	switch emp.Status {
	case models.EmployeeStatusPending:
		return models.Employee{}, dErrors.New(dErrors.CodeIneligible, "employee is not yet approved")
	case models.EmployeeStatusDisabled:
		return models.Employee{}, dErrors.New(dErrors.CodeIneligible, "employee is disabled")
	}
	return emp, nil
}
