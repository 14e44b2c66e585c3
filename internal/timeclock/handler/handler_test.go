package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"timeclock/internal/platform/metrics"
	"timeclock/internal/timeclock/handler/mocks"
	"timeclock/internal/timeclock/models"
	"timeclock/internal/timeclock/session"
	dErrors "timeclock/pkg/domain-errors"
	audit "timeclock/pkg/platform/audit"
)

var fixedNow = time.Date(2026, 3, 29, 9, 0, 0, 0, time.UTC)

type HandlerSuite struct {
	suite.Suite
	svc      *mocks.MockService
	sessions *session.Service
	metrics  *metrics.Metrics
	router   chi.Router
	token    string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	s.sessions = session.NewService("handler-test-key")
	s.metrics = metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(s.svc, s.sessions, logger, s.metrics)
	s.router = chi.NewRouter()
	h.Register(s.router)

	tok, err := s.sessions.Issue("kiosk-01")
	s.Require().NoError(err)
	s.token = tok.AccessToken
}

func (s *HandlerSuite) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v))
}

func (s *HandlerSuite) TestKioskStatus() {
	s.svc.EXPECT().Status(gomock.Any()).Return(&models.KioskStatus{
		Enrolled: true,
		DeviceID: "kiosk-01",
	}, nil)

	w := s.do(http.MethodGet, "/kiosk/status", "", false)

	s.Equal(http.StatusOK, w.Code)
	var resp models.KioskStatus
	s.decode(w, &resp)
	s.True(resp.Enrolled)
	s.Equal("kiosk-01", resp.DeviceID)
}

func (s *HandlerSuite) TestLookup() {
	s.Run("returns summary without contact fields", func() {
		s.svc.EXPECT().Lookup(gomock.Any(), "E1").Return(&models.Employee{
			ID:         "emp-1",
			EmployeeID: "E1",
			FirstName:  "Jane",
			LastName:   "Doe",
			Phone:      "555-1234",
			Status:     models.EmployeeStatusActive,
		}, nil)

		w := s.do(http.MethodPost, "/kiosk/lookup", `{"code":"E1"}`, false)

		s.Equal(http.StatusOK, w.Code)
		var resp map[string]any
		s.decode(w, &resp)
		s.Equal("emp-1", resp["id"])
		s.Equal("active", resp["status"])
		s.NotContains(resp, "phone")
	})

	s.Run("maps ineligible to forbidden", func() {
		s.svc.EXPECT().Lookup(gomock.Any(), "E2").
			Return(nil, dErrors.New(dErrors.CodeIneligible, "employee is not yet approved"))

		w := s.do(http.MethodPost, "/kiosk/lookup", `{"code":"E2"}`, false)

		s.Equal(http.StatusForbidden, w.Code)
		s.Contains(w.Body.String(), "not yet approved")
	})

	s.Run("rejects unknown fields without calling the service", func() {
		w := s.do(http.MethodPost, "/kiosk/lookup", `{"code":"E1","pin":"1"}`, false)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestClock() {
	s.Run("created", func() {
		s.svc.EXPECT().Clock(gomock.Any(), models.ClockRequest{
			Code: "E1",
			Type: models.EventTypeClockIn,
		}).Return(&models.EventRecord{
			ID:         "ev-1",
			Type:       models.EventTypeClockIn,
			Timestamp:  fixedNow,
			OfflineSeq: 1,
			Image:      "data:image/jpeg;base64,AAAA",
		}, nil)

		w := s.do(http.MethodPost, "/kiosk/clock", `{"code":"E1","type":"clock-in"}`, false)

		s.Equal(http.StatusCreated, w.Code)
		var resp map[string]any
		s.decode(w, &resp)
		s.Equal("ev-1", resp["id"])
		s.Equal("2026-03-29T09:00:00Z", resp["timestamp"])
		s.Equal(true, resp["hasSelfie"])
		s.NotContains(resp, "image")
	})

	s.Run("not enrolled is a conflict", func() {
		s.svc.EXPECT().Clock(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotEnrolled, "device is not enrolled"))

		w := s.do(http.MethodPost, "/kiosk/clock", `{"code":"E1","type":"clock-in"}`, false)

		s.Equal(http.StatusConflict, w.Code)
		s.Contains(w.Body.String(), string(dErrors.CodeNotEnrolled))
	})

	s.Run("internal errors hide their description", func() {
		s.svc.EXPECT().Clock(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "disk on fire"))

		w := s.do(http.MethodPost, "/kiosk/clock", `{"code":"E1","type":"clock-in"}`, false)

		s.Equal(http.StatusInternalServerError, w.Code)
		s.NotContains(w.Body.String(), "disk on fire")
	})
}

func (s *HandlerSuite) TestRegister() {
	s.svc.EXPECT().Register(gomock.Any(), models.RegisterRequest{
		EmployeeID: "E9",
		FirstName:  "Ana",
		LastName:   "Lee",
	}).Return(&models.Employee{ID: "emp-9", EmployeeID: "E9", Status: models.EmployeeStatusPending}, nil)

	w := s.do(http.MethodPost, "/kiosk/register", `{"employeeId":"E9","firstName":"Ana","lastName":"Lee"}`, false)

	s.Equal(http.StatusCreated, w.Code)
	var resp models.Employee
	s.decode(w, &resp)
	s.Equal(models.EmployeeStatusPending, resp.Status)
}

func (s *HandlerSuite) TestLogin() {
	s.Run("success counts and returns token", func() {
		s.svc.EXPECT().Login(gomock.Any(), "123456").
			Return(&session.Token{AccessToken: "tok", TokenType: "Bearer"}, nil)

		w := s.do(http.MethodPost, "/manager/login", `{"passcode":"123456"}`, false)

		s.Equal(http.StatusOK, w.Code)
		var resp session.Token
		s.decode(w, &resp)
		s.Equal("tok", resp.AccessToken)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.ManagerLogins.WithLabelValues("success")))
	})

	s.Run("failure counts and returns unauthorized", func() {
		s.svc.EXPECT().Login(gomock.Any(), "000000").
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid passcode"))

		w := s.do(http.MethodPost, "/manager/login", `{"passcode":"000000"}`, false)

		s.Equal(http.StatusUnauthorized, w.Code)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.ManagerLogins.WithLabelValues("failure")))
	})
}

func (s *HandlerSuite) TestManagerRoutesRequireSession() {
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/manager/employees"},
		{http.MethodPost, "/manager/employees/emp-1/approve"},
		{http.MethodGet, "/manager/events"},
		{http.MethodGet, "/manager/events/export.csv"},
		{http.MethodPost, "/manager/sync"},
		{http.MethodGet, "/manager/settings"},
		{http.MethodPut, "/manager/settings/passcode"},
	}
	for _, rt := range routes {
		s.Run(rt.method+" "+rt.path, func() {
			w := s.do(rt.method, rt.path, "", false)
			s.Equal(http.StatusUnauthorized, w.Code)
		})
	}

	s.Run("rejects a token signed with another key", func() {
		other, err := session.NewService("other-key").Issue("kiosk-01")
		s.Require().NoError(err)
		req := httptest.NewRequest(http.MethodGet, "/manager/employees", nil)
		req.Header.Set("Authorization", "Bearer "+other.AccessToken)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func (s *HandlerSuite) TestListEmployees() {
	s.svc.EXPECT().ListEmployees(gomock.Any(), models.EmployeeStatusPending).
		Return([]models.Employee{{ID: "emp-1"}, {ID: "emp-2"}}, nil)

	w := s.do(http.MethodGet, "/manager/employees?status=Pending", "", true)

	s.Equal(http.StatusOK, w.Code)
	var resp employeesResponse
	s.decode(w, &resp)
	s.Len(resp.Employees, 2)
}

func (s *HandlerSuite) TestApproveAndDisable() {
	s.svc.EXPECT().Approve(gomock.Any(), "emp-1").
		Return(&models.Employee{ID: "emp-1", Status: models.EmployeeStatusActive}, nil)
	s.svc.EXPECT().Disable(gomock.Any(), "emp-2").
		Return(nil, dErrors.New(dErrors.CodeNotFound, "employee not found"))

	w := s.do(http.MethodPost, "/manager/employees/emp-1/approve", "", true)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/manager/employees/emp-2/disable", "", true)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestListEvents() {
	s.Run("passes filters through", func() {
		s.svc.EXPECT().ListEvents(gomock.Any(), models.EventFilter{
			EmployeeRef: "emp-1",
			Type:        models.EventTypeClockOut,
			Limit:       5,
		}).Return([]models.EventRecord{{ID: "ev-1"}}, nil)

		w := s.do(http.MethodGet, "/manager/events?employee=emp-1&type=clock-out&limit=5", "", true)

		s.Equal(http.StatusOK, w.Code)
		var resp eventsResponse
		s.decode(w, &resp)
		s.Len(resp.Events, 1)
	})

	s.Run("rejects a negative limit", func() {
		w := s.do(http.MethodGet, "/manager/events?limit=-1", "", true)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestExportCSV() {
	s.Run("streams csv with attachment name", func() {
		s.svc.EXPECT().ExportCSV(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, w io.Writer) error {
			_, err := io.WriteString(w, "header\nrow")
			return err
		})

		w := s.do(http.MethodGet, "/manager/events/export.csv", "", true)

		s.Equal(http.StatusOK, w.Code)
		s.Equal("text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		s.Contains(w.Header().Get("Content-Disposition"), `filename="timeclock-events-`)
		s.Equal("header\nrow", w.Body.String())
	})

	s.Run("error yields envelope not partial csv", func() {
		s.svc.EXPECT().ExportCSV(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, w io.Writer) error {
			_, _ = io.WriteString(w, "partial")
			return dErrors.New(dErrors.CodeInternal, "boom")
		})

		w := s.do(http.MethodGet, "/manager/events/export.csv", "", true)

		s.Equal(http.StatusInternalServerError, w.Code)
		s.NotContains(w.Body.String(), "partial")
	})
}

func (s *HandlerSuite) TestSync() {
	s.svc.EXPECT().Sync(gomock.Any()).Return(3, nil)

	w := s.do(http.MethodPost, "/manager/sync", "", true)

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"synced":3}`, w.Body.String())
}

func (s *HandlerSuite) TestAudit() {
	s.svc.EXPECT().Audit(gomock.Any(), 10).Return([]audit.Event{{Action: string(audit.EventManagerLogin)}}, nil)

	w := s.do(http.MethodGet, "/manager/audit?limit=10", "", true)

	s.Equal(http.StatusOK, w.Code)
	var resp auditResponse
	s.decode(w, &resp)
	s.Require().Len(resp.Events, 1)
}

func (s *HandlerSuite) TestSettings() {
	s.Run("get", func() {
		s.svc.EXPECT().Settings(gomock.Any()).Return(&models.SettingsView{RetentionWeeks: 4}, nil)

		w := s.do(http.MethodGet, "/manager/settings", "", true)

		s.Equal(http.StatusOK, w.Code)
		s.NotContains(w.Body.String(), "adminPasscodeHash")
	})

	s.Run("update passes only provided fields", func() {
		weeks := 2
		s.svc.EXPECT().UpdateSettings(gomock.Any(), models.SettingsUpdate{RetentionWeeks: &weeks}).
			Return(&models.SettingsView{RetentionWeeks: 2}, nil)

		w := s.do(http.MethodPut, "/manager/settings", `{"retentionWeeks":2}`, true)

		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("enroll", func() {
		s.svc.EXPECT().Enroll(gomock.Any(), "org-a:site-b:kiosk-c").Return(&models.SettingsView{Enrolled: true}, nil)

		w := s.do(http.MethodPost, "/manager/settings/enroll", `{"token":"org-a:site-b:kiosk-c"}`, true)

		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("unenroll", func() {
		s.svc.EXPECT().Unenroll(gomock.Any()).Return(&models.SettingsView{}, nil)

		w := s.do(http.MethodPost, "/manager/settings/unenroll", "", true)

		s.Equal(http.StatusOK, w.Code)
	})
}

func (s *HandlerSuite) TestChangePasscode() {
	s.Run("no content on success", func() {
		s.svc.EXPECT().ChangePasscode(gomock.Any(), "123456", "654321").Return(nil)

		w := s.do(http.MethodPut, "/manager/settings/passcode", `{"current":"123456","next":"654321"}`, true)

		s.Equal(http.StatusNoContent, w.Code)
	})

	s.Run("requires current passcode", func() {
		w := s.do(http.MethodPut, "/manager/settings/passcode", `{"next":"654321"}`, true)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestRejectsTrailingData() {
	body := bytes.NewBufferString(`{"code":"E1"}{"code":"E2"}`)
	req := httptest.NewRequest(http.MethodPost, "/kiosk/lookup", body)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}
