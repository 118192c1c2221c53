package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// MatchPreference stores one user's matching preferences. List fields are
// kept as JSON text columns for portability; the REST layer exposes them as
// arrays.
type MatchPreference struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	UserID                string         `gorm:"size:64;uniqueIndex;not null" json:"user_id"`
	PreferredTimeControls string         `gorm:"type:text" json:"-"`
	PreferredPlayerLevels string         `gorm:"type:text" json:"-"`
	MaxDistanceKm         float64        `gorm:"default:10" json:"max_distance_km"`
	PreferredDays         string         `gorm:"type:text" json:"-"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

func (MatchPreference) TableName() string {
	return "match_preferences"
}

// TimeControls decodes the stored time-control list.
func (p *MatchPreference) TimeControls() []string { return decodeList(p.PreferredTimeControls) }

// PlayerLevels decodes the stored player-level list.
func (p *MatchPreference) PlayerLevels() []string { return decodeList(p.PreferredPlayerLevels) }

// Days decodes the stored preferred-day list.
func (p *MatchPreference) Days() []string { return decodeList(p.PreferredDays) }

// SetLists encodes the list fields for storage.
func (p *MatchPreference) SetLists(timeControls, levels, days []string) {
	p.PreferredTimeControls = encodeList(timeControls)
	p.PreferredPlayerLevels = encodeList(levels)
	p.PreferredDays = encodeList(days)
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func decodeList(raw string) []string {
	var out []string
	if raw == "" || json.Unmarshal([]byte(raw), &out) != nil {
		return []string{}
	}
	return out
}
