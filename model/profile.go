package model

import "time"

// Role describes what a profile owner does on the platform.
type Role string

const (
	RoleArtist Role = "artist"
	RoleFan    Role = "fan"
)

// Profile is the durable per-user record, keyed by the principal id.
// A profile is created lazily on first successful authentication and from
// then on only patched; this service never deletes one.
type Profile struct {
	ID            string    `json:"id" gorm:"primaryKey;size:64"`
	Email         string    `json:"email" gorm:"size:255"`
	DisplayName   string    `json:"displayName" gorm:"size:100"`
	Role          Role      `json:"role" gorm:"size:16;default:fan"`
	Bio           string    `json:"bio" gorm:"type:text"`
	AvatarURL     string    `json:"avatarUrl" gorm:"size:767"`
	SetupComplete bool      `json:"setupComplete"`
	Onboarded     bool      `json:"onboarded"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ProfileRecord is a fetched profile document together with presence of
// the newer fields. Documents written before the setup/onboarding columns
// existed surface those fields as absent, which is what triggers the
// one-time migration backfill.
type ProfileRecord struct {
	Profile          Profile
	HasSetupComplete bool
	HasOnboarded     bool
}

// ProfilePatch carries a partial profile update. Nil fields are left
// untouched by the store, so completion flags can only ever be raised.
type ProfilePatch struct {
	DisplayName   *string `json:"displayName,omitempty"`
	Role          *Role   `json:"role,omitempty"`
	Bio           *string `json:"bio,omitempty"`
	AvatarURL     *string `json:"avatarUrl,omitempty"`
	SetupComplete *bool   `json:"setupComplete,omitempty"`
	Onboarded     *bool   `json:"onboarded,omitempty"`
}

// BoolPtr is a convenience for building patches.
func BoolPtr(b bool) *bool { return &b }

// StringPtr is a convenience for building patches.
func StringPtr(s string) *string { return &s }
