package service_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"timeclock/internal/timeclock/models"
	"timeclock/internal/timeclock/ratelimit"
	"timeclock/internal/timeclock/recorder"
	"timeclock/internal/timeclock/service"
	"timeclock/internal/timeclock/session"
	"timeclock/internal/timeclock/store"
	dErrors "timeclock/pkg/domain-errors"
	audit "timeclock/pkg/platform/audit"
	"timeclock/pkg/platform/audit/publisher"
	"timeclock/pkg/platform/audit/store/memory"
	"timeclock/pkg/requestcontext"
)

var fixedNow = time.Date(2026, 3, 29, 9, 0, 0, 0, time.UTC)

const selfie = "data:image/jpeg;base64,AAAA"

// plainHasher keeps passcodes readable so tests avoid bcrypt cost.
type plainHasher struct{}

func (plainHasher) Hash(code string) (string, error) { return "plain:" + code, nil }

func (plainHasher) Verify(code, hash string) error {
	if hash == "" || hash != "plain:"+code {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid passcode")
	}
	return nil
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	backend *store.MemoryBackend
	store   *store.Store
	audit   *memory.InMemoryStore
	svc     *service.Service
	ids     int
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), fixedNow)
	s.ctx = requestcontext.WithClientMetadata(s.ctx, "10.0.0.5", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
	s.ids = 0

	s.backend = store.NewMemoryBackend()
	s.store = store.New(s.backend,
		store.WithPasscodeHasher(plainHasher{}.Hash),
		store.WithClock(func() time.Time { return fixedNow }),
	)
	rec := recorder.New(s.store, recorder.WithClock(func() time.Time { return fixedNow }))
	sessions := session.NewService("test-key")
	s.audit = memory.NewInMemoryStore()

	s.svc = service.New(s.store, rec, sessions,
		service.WithPasscodeHasher(plainHasher{}),
		service.WithAuditPublisher(publisher.NewPublisher(s.audit)),
		service.WithIDGenerator(func() string {
			s.ids++
			return "emp-" + string(rune('0'+s.ids))
		}),
	)
}

func (s *ServiceSuite) register(code string) *models.Employee {
	emp, err := s.svc.Register(s.ctx, models.RegisterRequest{
		EmployeeID: code,
		FirstName:  "Jane",
		LastName:   "Doe",
	})
	s.Require().NoError(err)
	return emp
}

func (s *ServiceSuite) registerActive(code string) *models.Employee {
	emp := s.register(code)
	approved, err := s.svc.Approve(s.ctx, emp.ID)
	s.Require().NoError(err)
	return approved
}

func (s *ServiceSuite) document() *models.Document {
	doc, err := s.store.Snapshot(s.ctx)
	s.Require().NoError(err)
	return doc
}

func (s *ServiceSuite) setOnline(online bool) {
	_, err := s.svc.UpdateSettings(s.ctx, models.SettingsUpdate{Online: &online})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestRegisterApproveClockIn() {
	emp := s.register("E1")
	s.Equal(models.EmployeeStatusPending, emp.Status)
	s.Equal(fixedNow, emp.CreatedAt)
	s.Equal(models.DefaultOrgID, emp.OrgID)

	approved, err := s.svc.Approve(s.ctx, emp.ID)
	s.Require().NoError(err)
	s.Equal(models.EmployeeStatusActive, approved.Status)

	ev, err := s.svc.Clock(s.ctx, models.ClockRequest{Code: "e1", Type: models.EventTypeClockIn})
	s.Require().NoError(err)
	s.Equal(int64(1), ev.OfflineSeq)
	s.Equal(models.EventTypeClockIn, ev.Type)

	doc := s.document()
	s.Require().Len(doc.Events, 1)
	s.Equal(int64(2), doc.PendingSeq)
	s.Equal(emp.ID, doc.Events[0].EmployeeRef)
}

func (s *ServiceSuite) TestRegisterValidation() {
	s.register("E1")

	s.Run("duplicate code in scope is rejected case-insensitively", func() {
		_, err := s.svc.Register(s.ctx, models.RegisterRequest{EmployeeID: " e1 ", FirstName: "J", LastName: "D"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing name", func() {
		_, err := s.svc.Register(s.ctx, models.RegisterRequest{EmployeeID: "E2", FirstName: "J"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("phone separators are stripped", func() {
		emp, err := s.svc.Register(s.ctx, models.RegisterRequest{
			EmployeeID: "E3", FirstName: "J", LastName: "D", Phone: "+1 (555) 010-2030",
		})
		s.Require().NoError(err)
		s.Equal("+15550102030", emp.Phone)
	})

	s.Run("invalid phone", func() {
		_, err := s.svc.Register(s.ctx, models.RegisterRequest{
			EmployeeID: "E4", FirstName: "J", LastName: "D", Phone: "12ab",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Len(s.document().Employees, 2)
}

func (s *ServiceSuite) TestLookup() {
	active := s.registerActive("E1")
	s.register("E2")
	disabled := s.registerActive("E3")
	_, err := s.svc.Disable(s.ctx, disabled.ID)
	s.Require().NoError(err)

	s.Run("active employee", func() {
		emp, err := s.svc.Lookup(s.ctx, " e1")
		s.Require().NoError(err)
		s.Equal(active.ID, emp.ID)
	})

	s.Run("pending employee is not yet approved", func() {
		_, err := s.svc.Lookup(s.ctx, "E2")
		s.True(dErrors.HasCode(err, dErrors.CodeIneligible))
		s.Contains(err.Error(), "not yet approved")
	})

	s.Run("disabled employee", func() {
		_, err := s.svc.Lookup(s.ctx, "E3")
		s.True(dErrors.HasCode(err, dErrors.CodeIneligible))
		s.Contains(err.Error(), "disabled")
	})

	s.Run("unknown code", func() {
		_, err := s.svc.Lookup(s.ctx, "E9")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestClockRules() {
	s.registerActive("E1")
	s.register("E2")

	s.Run("pending employee leaves events unchanged", func() {
		_, err := s.svc.Clock(s.ctx, models.ClockRequest{Code: "E2", Type: models.EventTypeClockIn})
		s.True(dErrors.HasCode(err, dErrors.CodeIneligible))
		s.Empty(s.document().Events)
	})

	s.Run("weak presence rejected when strong biometrics are required", func() {
		_, err := s.svc.Clock(s.ctx, models.ClockRequest{
			Code: "E1", Type: models.EventTypeClockIn,
			Evidence: models.Evidence{Method: models.MethodFingerprint, Presence: models.PresenceWeak},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("weak presence accepted once the requirement is off", func() {
		off := false
		_, err := s.svc.UpdateSettings(s.ctx, models.SettingsUpdate{StrongBiometricRequired: &off})
		s.Require().NoError(err)

		ev, err := s.svc.Clock(s.ctx, models.ClockRequest{
			Code: "E1", Type: models.EventTypeClockOut,
			Evidence: models.Evidence{Method: models.MethodFingerprint, Presence: models.PresenceWeak},
			Image:    selfie,
		})
		s.Require().NoError(err)
		s.Equal(models.PresenceWeak, ev.Evidence.Presence)
		s.Equal(selfie, ev.Image)
	})

	s.Run("invalid type", func() {
		_, err := s.svc.Clock(s.ctx, models.ClockRequest{Code: "E1", Type: "break"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unenrolled device", func() {
		_, err := s.svc.Unenroll(s.ctx)
		s.Require().NoError(err)

		_, err = s.svc.Clock(s.ctx, models.ClockRequest{Code: "E1", Type: models.EventTypeClockIn})
		s.True(dErrors.HasCode(err, dErrors.CodeNotEnrolled))
		s.Len(s.document().Events, 1)
	})
}

func (s *ServiceSuite) TestLogin() {
	s.Run("default passcode", func() {
		token, err := s.svc.Login(s.ctx, models.DefaultAdminPasscode)
		s.Require().NoError(err)
		s.NotEmpty(token.AccessToken)
		s.Equal("Bearer", token.TokenType)
	})

	s.Run("wrong passcode", func() {
		_, err := s.svc.Login(s.ctx, "0000")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	events, err := s.svc.Audit(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventManagerLoginFailed), events[0].Action)
	s.Equal(audit.CategorySecurity, events[0].Category)
	s.Equal("10.0.0.5", events[0].ClientIP)
	s.Contains(events[0].Client, "Firefox")
}

func (s *ServiceSuite) TestLoginLockout() {
	guarded := service.New(s.store, recorder.New(s.store), session.NewService("test-key"),
		service.WithPasscodeHasher(plainHasher{}),
		service.WithLoginGuard(ratelimit.NewGuard(ratelimit.NewInMemoryLockoutStore(),
			ratelimit.WithLockoutConfig(ratelimit.LockoutConfig{
				MaxFailures:  3,
				Window:       15 * time.Minute,
				LockDuration: 15 * time.Minute,
			}),
		)),
	)

	s.Run("success clears earlier failures", func() {
		for range 2 {
			_, err := guarded.Login(s.ctx, "000000")
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		}
		_, err := guarded.Login(s.ctx, models.DefaultAdminPasscode)
		s.Require().NoError(err)
		_, err = guarded.Login(s.ctx, "000000")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "counter restarted after success")
	})

	s.Run("locks after repeated failures even for the right passcode", func() {
		for range 2 {
			_, _ = guarded.Login(s.ctx, "000000")
		}
		_, err := guarded.Login(s.ctx, models.DefaultAdminPasscode)
		s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

		err = guarded.ChangePasscode(s.ctx, models.DefaultAdminPasscode, "654321")
		s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
	})

	s.Run("other clients are unaffected", func() {
		ctx := requestcontext.WithClientMetadata(s.ctx, "10.0.0.9", "")
		_, err := guarded.Login(ctx, models.DefaultAdminPasscode)
		s.NoError(err)
	})

	s.Run("lock lapses", func() {
		later := requestcontext.WithTime(s.ctx, fixedNow.Add(16*time.Minute))
		_, err := guarded.Login(later, models.DefaultAdminPasscode)
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestChangePasscode() {
	s.Run("rejects a malformed new passcode", func() {
		err := s.svc.ChangePasscode(s.ctx, models.DefaultAdminPasscode, "12a4")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects a wrong current passcode", func() {
		err := s.svc.ChangePasscode(s.ctx, "999999", "4321")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("new passcode replaces the old one", func() {
		s.Require().NoError(s.svc.ChangePasscode(s.ctx, models.DefaultAdminPasscode, "4321"))

		_, err := s.svc.Login(s.ctx, models.DefaultAdminPasscode)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		_, err = s.svc.Login(s.ctx, "4321")
		s.NoError(err)
	})

	s.Run("surrounding whitespace is ignored like at login", func() {
		_, err := s.svc.Login(s.ctx, " 4321 ")
		s.Require().NoError(err)

		s.Require().NoError(s.svc.ChangePasscode(s.ctx, " 4321 ", " 8765\n"))
		_, err = s.svc.Login(s.ctx, "8765")
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestEmployeeManagement() {
	a := s.registerActive("E1")
	b := s.register("E2")

	s.Run("filter by status", func() {
		pending, err := s.svc.ListEmployees(s.ctx, models.EmployeeStatusPending)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(b.ID, pending[0].ID)

		all, err := s.svc.ListEmployees(s.ctx, "")
		s.Require().NoError(err)
		s.Len(all, 2)
	})

	s.Run("unknown status filter", func() {
		_, err := s.svc.ListEmployees(s.ctx, "retired")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("approve twice is an invalid transition", func() {
		_, err := s.svc.Approve(s.ctx, a.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("disabled employees cannot be approved", func() {
		_, err := s.svc.Disable(s.ctx, b.ID)
		s.Require().NoError(err)
		_, err = s.svc.Approve(s.ctx, b.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown employee", func() {
		_, err := s.svc.Disable(s.ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListEvents() {
	a := s.registerActive("E1")
	b := s.registerActive("E2")
	for _, req := range []models.ClockRequest{
		{Code: "E1", Type: models.EventTypeClockIn},
		{Code: "E2", Type: models.EventTypeClockIn},
		{Code: "E1", Type: models.EventTypeClockOut},
	} {
		_, err := s.svc.Clock(s.ctx, req)
		s.Require().NoError(err)
	}

	all, err := s.svc.ListEvents(s.ctx, models.EventFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(int64(3), all[0].OfflineSeq, "newest first")

	mine, err := s.svc.ListEvents(s.ctx, models.EventFilter{EmployeeRef: a.ID})
	s.Require().NoError(err)
	s.Len(mine, 2)

	ins, err := s.svc.ListEvents(s.ctx, models.EventFilter{Type: models.EventTypeClockIn, Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(ins, 1)
	s.Equal(b.ID, ins[0].EmployeeRef)

	_, err = s.svc.ListEvents(s.ctx, models.EventFilter{Type: "nap"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestSync() {
	s.registerActive("E1")
	_, err := s.svc.Clock(s.ctx, models.ClockRequest{Code: "E1", Type: models.EventTypeClockIn})
	s.Require().NoError(err)

	s.Run("offline device cannot sync", func() {
		_, err := s.svc.Sync(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("going online syncs pending events", func() {
		s.setOnline(true)
		s.True(s.document().Events[0].Synced)

		n, err := s.svc.Sync(s.ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("events recorded online are synced immediately", func() {
		ev, err := s.svc.Clock(s.ctx, models.ClockRequest{Code: "E1", Type: models.EventTypeClockOut})
		s.Require().NoError(err)
		s.True(ev.Synced)
	})

	s.Run("manual sync after events recorded offline", func() {
		s.setOnline(false)
		_, err := s.svc.Clock(s.ctx, models.ClockRequest{Code: "E1", Type: models.EventTypeClockIn})
		s.Require().NoError(err)

		_, err = s.store.Update(s.ctx, func(doc *models.Document) error {
			doc.Device.Online = true
			return nil
		})
		s.Require().NoError(err)

		n, err := s.svc.Sync(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, n)
	})
}

func (s *ServiceSuite) TestRetentionChangePurgesImages() {
	s.registerActive("E1")
	ev, err := s.svc.Clock(s.ctx, models.ClockRequest{Code: "E1", Type: models.EventTypeClockIn, Image: selfie})
	s.Require().NoError(err)
	s.Equal(selfie, ev.Image)

	zero := 0
	view, err := s.svc.UpdateSettings(s.ctx, models.SettingsUpdate{RetentionWeeks: &zero})
	s.Require().NoError(err)
	s.Equal(0, view.RetentionWeeks)
	s.False(s.document().Events[0].HasImage())

	tooLong := models.MaxRetentionWeeks + 1
	_, err = s.svc.UpdateSettings(s.ctx, models.SettingsUpdate{RetentionWeeks: &tooLong})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestSelfieNotRequiredDropsImage() {
	s.registerActive("E1")
	off := false
	_, err := s.svc.UpdateSettings(s.ctx, models.SettingsUpdate{SelfieRequired: &off})
	s.Require().NoError(err)

	ev, err := s.svc.Clock(s.ctx, models.ClockRequest{Code: "E1", Type: models.EventTypeClockIn, Image: selfie})
	s.Require().NoError(err)
	s.Empty(ev.Image)
}

func (s *ServiceSuite) TestEnrollment() {
	s.registerActive("E1")

	s.Run("invalid token", func() {
		_, err := s.svc.Enroll(s.ctx, "only-org")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("token rebinds org and site", func() {
		view, err := s.svc.Enroll(s.ctx, "acme | warehouse | extra")
		s.Require().NoError(err)
		s.True(view.Enrolled)
		s.Equal("acme", view.OrgID)
		s.Equal("warehouse", view.SiteID)

		_, err = s.svc.Lookup(s.ctx, "E1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "employees of the old site are out of scope")
	})

	s.Run("unenroll then status", func() {
		_, err := s.svc.Unenroll(s.ctx)
		s.Require().NoError(err)
		status, err := s.svc.Status(s.ctx)
		s.Require().NoError(err)
		s.False(status.Enrolled)

		settings, err := s.svc.Settings(s.ctx)
		s.Require().NoError(err)
		s.False(settings.Enrolled)
	})
}

func (s *ServiceSuite) TestExportCSV() {
	s.registerActive("E1")
	_, err := s.svc.Clock(s.ctx, models.ClockRequest{Code: "E1", Type: models.EventTypeClockIn, Image: selfie})
	s.Require().NoError(err)

	var buf bytes.Buffer
	s.Require().NoError(s.svc.ExportCSV(s.ctx, &buf))

	lines := strings.Split(buf.String(), "\n")
	s.Require().Len(lines, 2)
	s.True(strings.HasPrefix(lines[0], "eventId,employeeName"))
	s.Contains(lines[1], `"Jane Doe",E1,clock-in,2026-03-29T09:00:00Z,false,simulated,true`)
}

func (s *ServiceSuite) TestStatus() {
	s.registerActive("E1")
	_, err := s.svc.Clock(s.ctx, models.ClockRequest{Code: "E1", Type: models.EventTypeClockIn})
	s.Require().NoError(err)

	status, err := s.svc.Status(s.ctx)
	s.Require().NoError(err)
	s.True(status.Enrolled)
	s.False(status.Online)
	s.True(status.SelfieRequired)
	s.Equal(1, status.UnsyncedEvents)
	s.Equal(models.DefaultDeviceID, status.DeviceID)
}
