package kiosk

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetResponseField(field string) (any, error)
	RememberEmployee(code, id string)
	Code(alias string) string
}

// RegisterSteps registers kiosk-facing step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &kioskSteps{tc: tc}

	ctx.Step(`^I register employee "([^"]*)" named "([^"]*)" "([^"]*)"$`, steps.registerEmployee)
	ctx.Step(`^I look up code "([^"]*)"$`, steps.lookUp)
	ctx.Step(`^I clock in with code "([^"]*)"$`, steps.clockIn)
	ctx.Step(`^I clock out with code "([^"]*)"$`, steps.clockOut)
	ctx.Step(`^I clock in with code "([^"]*)" using weak presence$`, steps.clockInWeak)
	ctx.Step(`^I request the kiosk status$`, steps.status)
}

type kioskSteps struct {
	tc TestContext
}

func (s *kioskSteps) registerEmployee(ctx context.Context, code, first, last string) error {
	if err := s.tc.POST("/kiosk/register", map[string]any{
		"employeeId": s.tc.Code(code),
		"firstName":  first,
		"lastName":   last,
	}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("registration failed with %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.RememberEmployee(code, fmt.Sprint(id))
	return nil
}

func (s *kioskSteps) lookUp(ctx context.Context, code string) error {
	return s.tc.POST("/kiosk/lookup", map[string]any{"code": s.tc.Code(code)})
}

func (s *kioskSteps) clock(code, eventType, presence string) error {
	return s.tc.POST("/kiosk/clock", map[string]any{
		"code": s.tc.Code(code),
		"type": eventType,
		"evidence": map[string]any{
			"method":   "employeeId",
			"presence": presence,
		},
	})
}

func (s *kioskSteps) clockIn(ctx context.Context, code string) error {
	return s.clock(code, "clock-in", "simulated")
}

func (s *kioskSteps) clockOut(ctx context.Context, code string) error {
	return s.clock(code, "clock-out", "simulated")
}

func (s *kioskSteps) clockInWeak(ctx context.Context, code string) error {
	return s.clock(code, "clock-in", "weak")
}

func (s *kioskSteps) status(ctx context.Context) error {
	return s.tc.GET("/kiosk/status")
}
