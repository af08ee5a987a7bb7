package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EmberFM/core/fault"
	"EmberFM/model"

	"gorm.io/gorm"
)

// ProfileRepository is the profile-store capability the lifecycle
// controller consumes: one JSON-ish document per principal id, fetched
// whole and patched per-field. No multi-document transactions are assumed.
type ProfileRepository interface {
	Get(ctx context.Context, id string) (*model.ProfileRecord, error)
	Create(ctx context.Context, profile *model.Profile) error
	Patch(ctx context.Context, id string, patch model.ProfilePatch) error
}

// gormProfileRepository implements ProfileRepository on MySQL via GORM.
type gormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a new gormProfileRepository.
func NewGormProfileRepository(db *gorm.DB) ProfileRepository {
	return &gormProfileRepository{db: db}
}

// profileRow mirrors the profiles table with the newer columns nullable,
// so documents predating them can be told apart from ones where the flag
// is genuinely false.
type profileRow struct {
	ID            string `gorm:"primaryKey"`
	Email         string
	DisplayName   string
	Role          model.Role
	Bio           string
	AvatarURL     string
	SetupComplete *bool
	Onboarded     *bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (profileRow) TableName() string { return "profiles" }

// Get retrieves the profile document for a principal id. A missing
// document is reported as fault.KindNotFound, which is not an error for
// the lifecycle machine — it triggers creation.
func (r *gormProfileRepository) Get(ctx context.Context, id string) (*model.ProfileRecord, error) {
	var row profileRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.Newf(fault.KindNotFound, "profile %s not found", id)
		}
		return nil, fault.ClassifyMySQL(fmt.Errorf("failed to fetch profile %s: %w", id, err))
	}

	record := &model.ProfileRecord{
		Profile: model.Profile{
			ID:          row.ID,
			Email:       row.Email,
			DisplayName: row.DisplayName,
			Role:        row.Role,
			Bio:         row.Bio,
			AvatarURL:   row.AvatarURL,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		},
		HasSetupComplete: row.SetupComplete != nil,
		HasOnboarded:     row.Onboarded != nil,
	}
	if row.SetupComplete != nil {
		record.Profile.SetupComplete = *row.SetupComplete
	}
	if row.Onboarded != nil {
		record.Profile.Onboarded = *row.Onboarded
	}
	return record, nil
}

// Create inserts a new profile document.
func (r *gormProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return fault.ClassifyMySQL(fmt.Errorf("failed to create profile %s: %w", profile.ID, err))
	}
	return nil
}

// Patch applies a partial update. Only fields present in the patch are
// written, so a stale writer can never clear a completion flag another
// writer has already raised.
func (r *gormProfileRepository) Patch(ctx context.Context, id string, patch model.ProfilePatch) error {
	updates := map[string]interface{}{}
	if patch.DisplayName != nil {
		updates["display_name"] = *patch.DisplayName
	}
	if patch.Role != nil {
		updates["role"] = *patch.Role
	}
	if patch.Bio != nil {
		updates["bio"] = *patch.Bio
	}
	if patch.AvatarURL != nil {
		updates["avatar_url"] = *patch.AvatarURL
	}
	if patch.SetupComplete != nil {
		updates["setup_complete"] = *patch.SetupComplete
	}
	if patch.Onboarded != nil {
		updates["onboarded"] = *patch.Onboarded
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fault.ClassifyMySQL(fmt.Errorf("failed to patch profile %s: %w", id, res.Error))
	}
	if res.RowsAffected == 0 {
		// The connection asks MySQL for matched rows (clientFoundRows), so
		// zero normally means the row is gone. Confirm before saying so: an
		// idempotent re-patch must never surface as NotFound.
		var count int64
		if err := r.db.WithContext(ctx).Model(&profileRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fault.ClassifyMySQL(fmt.Errorf("failed to patch profile %s: %w", id, err))
		}
		if count == 0 {
			return fault.Newf(fault.KindNotFound, "profile %s not found", id)
		}
	}
	return nil
}
