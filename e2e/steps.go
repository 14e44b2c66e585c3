package e2e

import (
	"github.com/cucumber/godog"

	"timeclock/e2e/steps/common"
	"timeclock/e2e/steps/kiosk"
	"timeclock/e2e/steps/manager"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	kiosk.RegisterSteps(ctx, tc)
	manager.RegisterSteps(ctx, tc)
}
