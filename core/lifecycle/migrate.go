package lifecycle

import "EmberFM/model"

// MigrateRecord backfills fields missing from documents that predate
// them. The defaulted values take effect in memory regardless of whether
// the write-back succeeds.
//
// Rules:
//   - setupComplete absent: true when role is fan or a bio was already
//     written, false otherwise (an artist must describe their craft).
//   - onboarded absent: true — existing users are grandfathered out of
//     the tutorial.
//
// The returned patch contains only the backfilled fields, so applying it
// to an already-migrated document is a no-op.
func MigrateRecord(record *model.ProfileRecord) (model.Profile, model.ProfilePatch, bool) {
	profile := record.Profile
	var patch model.ProfilePatch
	changed := false

	if !record.HasSetupComplete {
		def := profile.Role == model.RoleFan || profile.Bio != ""
		profile.SetupComplete = def
		patch.SetupComplete = model.BoolPtr(def)
		changed = true
	}
	if !record.HasOnboarded {
		profile.Onboarded = true
		patch.Onboarded = model.BoolPtr(true)
		changed = true
	}
	return profile, patch, changed
}

// DefaultSetupComplete is the role-based default for freshly created
// profiles: a fan may proceed immediately, an artist must complete setup.
func DefaultSetupComplete(role model.Role) bool {
	return role != model.RoleArtist
}

// NewMinimalProfile is the document created when a principal
// authenticates for the first time and no profile exists yet.
func NewMinimalProfile(principal *model.Principal) *model.Profile {
	return &model.Profile{
		ID:            principal.ID,
		Email:         principal.Email,
		DisplayName:   principal.DisplayName,
		AvatarURL:     principal.AvatarURL,
		Role:          model.RoleFan,
		SetupComplete: DefaultSetupComplete(model.RoleFan),
		Onboarded:     false,
	}
}
