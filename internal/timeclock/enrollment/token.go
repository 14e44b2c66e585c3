// Package enrollment parses the manually entered token that binds a kiosk to
// an organization and site.
package enrollment

import (
	"strings"

	dErrors "timeclock/pkg/domain-errors"
)

// Binding is the org/site pair carried by an enrollment token.
type Binding struct {
	OrgID  string
	SiteID string
}

// Parse reads a pipe-delimited token "ORG|SITE|...". Only the first two
// segments are consumed; anything after them is ignored.
func Parse(token string) (Binding, error) {
	parts := strings.Split(strings.TrimSpace(token), "|")
	if len(parts) < 2 {
		return Binding{}, dErrors.New(dErrors.CodeValidation, "enrollment token must be ORG|SITE")
	}
	b := Binding{
		OrgID:  strings.TrimSpace(parts[0]),
		SiteID: strings.TrimSpace(parts[1]),
	}
	if b.OrgID == "" || b.SiteID == "" {
		return Binding{}, dErrors.New(dErrors.CodeValidation, "enrollment token is missing org or site")
	}
	return b, nil
}
