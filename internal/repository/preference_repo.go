package repository

import (
	"chessroam/internal/models"

	"gorm.io/gorm"
)

type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// GetByUserID returns nil without error when the user has no saved
// preferences; absence is not an error state.
func (r *PreferenceRepository) GetByUserID(userID string) (*models.MatchPreference, error) {
	var p models.MatchPreference
	if err := r.db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PreferenceRepository) Upsert(p *models.MatchPreference) error {
	existing, err := r.GetByUserID(p.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		p.ID = existing.ID
	}
	return r.db.Save(p).Error
}
