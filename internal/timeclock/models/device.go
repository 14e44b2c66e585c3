package models

// Default identity and policy applied to a fresh installation.
const (
	DefaultOrgID          = "org-demo"
	DefaultSiteID         = "site-main"
	DefaultDeviceID       = "kiosk-01"
	DefaultRetentionWeeks = 4
	DefaultAdminPasscode  = "123456"
	MaxRetentionWeeks     = 520
)

// DeviceSettings is the per-installation singleton.
//
// Invariants:
//   - While Enrolled is false no attendance event may be recorded
//   - RetentionWeeks is within [0, MaxRetentionWeeks]
//   - AdminPasscodeHash is present before any manager login is evaluated
type DeviceSettings struct {
	Enrolled                bool   `json:"enrolled"`
	OrgID                   string `json:"orgId"`
	SiteID                  string `json:"siteId"`
	DeviceID                string `json:"deviceId"`
	Online                  bool   `json:"online"`
	RetentionWeeks          int    `json:"retentionWeeks"`
	SelfieRequired          bool   `json:"selfieRequired"`
	StrongBiometricRequired bool   `json:"strongBiometricRequired"`
	AdminPasscodeHash       string `json:"adminPasscodeHash"`
}

// Identity scopes employees and events to an organization, site and kiosk.
type Identity struct {
	OrgID    string
	SiteID   string
	DeviceID string
}

// Identity returns the device's org/site/device triple.
func (d DeviceSettings) Identity() Identity {
	return Identity{OrgID: d.OrgID, SiteID: d.SiteID, DeviceID: d.DeviceID}
}
