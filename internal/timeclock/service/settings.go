package service

import (
	"context"

	"timeclock/internal/timeclock/enrollment"
	"timeclock/internal/timeclock/models"
	"timeclock/internal/timeclock/passcode"
	dErrors "timeclock/pkg/domain-errors"
	audit "timeclock/pkg/platform/audit"
)

// Settings returns the device settings without the passcode digest.
func (s *Service) Settings(ctx context.Context) (*models.SettingsView, error) {
	doc, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	view := doc.Device.View()
	return &view, nil
}

// UpdateSettings applies the non-nil fields of upd. Going online marks pending
// events synced in the same write; changing retention runs the purge.
func (s *Service) UpdateSettings(ctx context.Context, upd models.SettingsUpdate) (*models.SettingsView, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	var retentionChanged bool
	synced := 0
	doc, err := s.update(ctx, "failed to update settings", func(doc *models.Document) error {
		wasOnline := doc.Device.Online
		if upd.Online != nil {
			doc.Device.Online = *upd.Online
		}
		if upd.RetentionWeeks != nil {
			retentionChanged = doc.Device.RetentionWeeks != *upd.RetentionWeeks
			doc.Device.RetentionWeeks = *upd.RetentionWeeks
		}
		if upd.SelfieRequired != nil {
			doc.Device.SelfieRequired = *upd.SelfieRequired
		}
		if upd.StrongBiometricRequired != nil {
			doc.Device.StrongBiometricRequired = *upd.StrongBiometricRequired
		}
		if !wasOnline && doc.Device.Online {
			synced = doc.MarkSynced()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventSettingsUpdated, doc.Device.DeviceID,
		"online", doc.Device.Online,
		"retention_weeks", doc.Device.RetentionWeeks,
		"selfie_required", doc.Device.SelfieRequired,
		"strong_biometric_required", doc.Device.StrongBiometricRequired,
	)
	if synced > 0 {
		s.logAudit(ctx, audit.EventEventsSynced, "", "count", synced)
	}

	if retentionChanged {
		purged, err := s.store.PurgeRetention(ctx, doc)
		if err != nil {
			return nil, storeError(err, "failed to apply retention")
		}
		if purged > 0 {
			s.logAudit(ctx, audit.EventImagesPurged, doc.Device.DeviceID, "count", purged)
		}
	}

	view := doc.Device.View()
	return &view, nil
}

// Enroll binds the device to the org and site carried by token.
func (s *Service) Enroll(ctx context.Context, token string) (*models.SettingsView, error) {
	binding, err := enrollment.Parse(token)
	if err != nil {
		return nil, err
	}
	doc, err := s.update(ctx, "failed to enroll device", func(doc *models.Document) error {
		doc.Device.Enrolled = true
		doc.Device.OrgID = binding.OrgID
		doc.Device.SiteID = binding.SiteID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventDeviceEnrolled, doc.Device.DeviceID,
		"org_id", binding.OrgID,
		"site_id", binding.SiteID,
	)
	view := doc.Device.View()
	return &view, nil
}

// Unenroll blocks clock operations until the device is enrolled again.
func (s *Service) Unenroll(ctx context.Context) (*models.SettingsView, error) {
	doc, err := s.update(ctx, "failed to unenroll device", func(doc *models.Document) error {
		doc.Device.Enrolled = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventDeviceUnenrolled, doc.Device.DeviceID)
	view := doc.Device.View()
	return &view, nil
}

// ChangePasscode replaces the admin passcode after verifying the current one.
func (s *Service) ChangePasscode(ctx context.Context, current, next string) error {
	current, next = normalizePasscode(current), normalizePasscode(next)
	if err := passcode.Validate(next); err != nil {
		return err
	}
	doc, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := s.verifyPasscode(ctx, current, doc.Device.AdminPasscodeHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeRateLimited) {
			return err
		}
		s.logAudit(ctx, audit.EventManagerLoginFailed, doc.Device.DeviceID, "reason", "passcode_change_rejected")
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return dErrors.New(dErrors.CodeUnauthorized, "current passcode is incorrect")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify passcode")
	}
	digest, err := s.hasher.Hash(next)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash passcode")
	}
	_, err = s.update(ctx, "failed to store passcode", func(doc *models.Document) error {
		doc.Device.AdminPasscodeHash = digest
		return nil
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, audit.EventPasscodeChanged, doc.Device.DeviceID)
	return nil
}
