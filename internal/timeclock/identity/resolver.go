// Package identity maps a code typed or scanned at the kiosk to an employee.
package identity

import (
	"fmt"

	"timeclock/internal/timeclock/models"
	"timeclock/pkg/platform/sentinel"
)

// Resolve returns the first employee in scope whose business code equals code
// after trimming and case folding. Status is not considered; eligibility is
// the recorder's concern. An empty code never matches.
func Resolve(code, orgID, siteID string, employees []models.Employee) (models.Employee, error) {
	needle := models.NormalizeCode(code)
	if needle == "" {
		return models.Employee{}, fmt.Errorf("empty employee code: %w", sentinel.ErrNotFound)
	}
	for _, emp := range employees {
		if emp.OrgID != orgID || emp.SiteID != siteID {
			continue
		}
		if models.NormalizeCode(emp.EmployeeID) == needle {
			return emp, nil
		}
	}
	return models.Employee{}, fmt.Errorf("employee %q: %w", needle, sentinel.ErrNotFound)
}

// CodeTaken reports whether another employee in the same scope already uses code.
// exceptID is skipped so an employee never collides with itself.
func CodeTaken(code, orgID, siteID, exceptID string, employees []models.Employee) bool {
	needle := models.NormalizeCode(code)
	for _, emp := range employees {
		if emp.ID == exceptID || emp.OrgID != orgID || emp.SiteID != siteID {
			continue
		}
		if models.NormalizeCode(emp.EmployeeID) == needle {
			return true
		}
	}
	return false
}
