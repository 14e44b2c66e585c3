package models

// KioskStatus is what the kiosk screen needs before accepting input.
type KioskStatus struct {
	Enrolled                bool   `json:"enrolled"`
	Online                  bool   `json:"online"`
	OrgID                   string `json:"orgId"`
	SiteID                  string `json:"siteId"`
	DeviceID                string `json:"deviceId"`
	SelfieRequired          bool   `json:"selfieRequired"`
	StrongBiometricRequired bool   `json:"strongBiometricRequired"`
	UnsyncedEvents          int    `json:"unsyncedEvents"`
}

// SettingsView is DeviceSettings without the passcode digest.
type SettingsView struct {
	Enrolled                bool   `json:"enrolled"`
	OrgID                   string `json:"orgId"`
	SiteID                  string `json:"siteId"`
	DeviceID                string `json:"deviceId"`
	Online                  bool   `json:"online"`
	RetentionWeeks          int    `json:"retentionWeeks"`
	SelfieRequired          bool   `json:"selfieRequired"`
	StrongBiometricRequired bool   `json:"strongBiometricRequired"`
}

func (d DeviceSettings) View() SettingsView {
	return SettingsView{
		Enrolled:                d.Enrolled,
		OrgID:                   d.OrgID,
		SiteID:                  d.SiteID,
		DeviceID:                d.DeviceID,
		Online:                  d.Online,
		RetentionWeeks:          d.RetentionWeeks,
		SelfieRequired:          d.SelfieRequired,
		StrongBiometricRequired: d.StrongBiometricRequired,
	}
}

// Status summarizes the document for the kiosk screen.
func (d *Document) Status() KioskStatus {
	unsynced := 0
	for _, ev := range d.Events {
		if !ev.Synced {
			unsynced++
		}
	}
	return KioskStatus{
		Enrolled:                d.Device.Enrolled,
		Online:                  d.Device.Online,
		OrgID:                   d.Device.OrgID,
		SiteID:                  d.Device.SiteID,
		DeviceID:                d.Device.DeviceID,
		SelfieRequired:          d.Device.SelfieRequired,
		StrongBiometricRequired: d.Device.StrongBiometricRequired,
		UnsyncedEvents:          unsynced,
	}
}

// MarkSynced flags every unsynced event as synced and returns how many changed.
func (d *Document) MarkSynced() int {
	n := 0
	for i := range d.Events {
		if !d.Events[i].Synced {
			d.Events[i].Synced = true
			n++
		}
	}
	return n
}
