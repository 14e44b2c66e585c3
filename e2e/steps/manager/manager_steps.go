package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	PUT(path string, body any) error
	GET(path string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetResponseField(field string) (any, error)
	SetAccessToken(token string)
	EmployeeID(code string) (string, error)
}

// RegisterSteps registers manager console step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &managerSteps{tc: tc}

	ctx.Step(`^I log in as manager with passcode "([^"]*)"$`, steps.login)
	ctx.Step(`^I am logged in as manager$`, steps.loggedIn)
	ctx.Step(`^I approve employee "([^"]*)"$`, steps.approve)
	ctx.Step(`^I disable employee "([^"]*)"$`, steps.disable)
	ctx.Step(`^the device is (online|offline)$`, steps.setOnline)
	ctx.Step(`^I sync events$`, steps.sync)
	ctx.Step(`^I export events as CSV$`, steps.exportCSV)
	ctx.Step(`^the CSV should contain (\d+) event rows?$`, steps.csvRows)
	ctx.Step(`^I unenroll the device$`, steps.unenroll)
	ctx.Step(`^I enroll the device with token "([^"]*)"$`, steps.enroll)
}

type managerSteps struct {
	tc TestContext
}

func (s *managerSteps) login(ctx context.Context, passcode string) error {
	s.tc.SetAccessToken("")
	if err := s.tc.POST("/manager/login", map[string]any{"passcode": passcode}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return nil
	}
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(fmt.Sprint(token))
	return nil
}

func (s *managerSteps) loggedIn(ctx context.Context) error {
	if err := s.login(ctx, "123456"); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return fmt.Errorf("manager login failed with %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *managerSteps) transition(code, action string) error {
	id, err := s.tc.EmployeeID(code)
	if err != nil {
		return err
	}
	return s.tc.POST("/manager/employees/"+id+"/"+action, nil)
}

func (s *managerSteps) approve(ctx context.Context, code string) error {
	return s.transition(code, "approve")
}

func (s *managerSteps) disable(ctx context.Context, code string) error {
	return s.transition(code, "disable")
}

func (s *managerSteps) setOnline(ctx context.Context, state string) error {
	return s.tc.PUT("/manager/settings", map[string]any{"online": state == "online"})
}

func (s *managerSteps) sync(ctx context.Context) error {
	return s.tc.POST("/manager/sync", nil)
}

func (s *managerSteps) exportCSV(ctx context.Context) error {
	return s.tc.GET("/manager/events/export.csv")
}

func (s *managerSteps) csvRows(ctx context.Context, expected int) error {
	lines := strings.Split(string(s.tc.GetLastResponseBody()), "\n")
	if got := len(lines) - 1; got != expected {
		return fmt.Errorf("expected %d CSV rows, got %d", expected, got)
	}
	return nil
}

func (s *managerSteps) unenroll(ctx context.Context) error {
	return s.tc.POST("/manager/settings/unenroll", nil)
}

func (s *managerSteps) enroll(ctx context.Context, token string) error {
	return s.tc.POST("/manager/settings/enroll", map[string]any{"token": token})
}
