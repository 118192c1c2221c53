package models

import (
	"time"

	"gorm.io/gorm"
)

// Game is one scheduled chess meetup at a venue. Latitude/longitude feed the
// Haversine distance scoring.
type Game struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	GameID           string         `gorm:"size:64;uniqueIndex;not null" json:"game_id"`
	VenueName        string         `gorm:"size:255;not null" json:"venue_name"`
	GameDate         string         `gorm:"size:10;not null;index" json:"game_date"` // YYYY-MM-DD
	GameTime         string         `gorm:"size:5;not null" json:"game_time"`        // HH:MM
	DayOfWeek        string         `gorm:"size:10;index" json:"day_of_week"`
	TimeControl      string         `gorm:"size:32;index" json:"time_control"` // Blitz, Rapid, Classical, Bullet
	PlayerLevel      string         `gorm:"size:32;index" json:"player_level"` // Beginner, Intermediate, Advanced, Master
	Latitude         float64        `gorm:"type:decimal(10,8)" json:"-"`
	Longitude        float64        `gorm:"type:decimal(11,8)" json:"-"`
	ParticipantCount int            `gorm:"default:0" json:"participant_count"`
	MaxPlayers       int            `gorm:"default:0" json:"max_players"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Game) TableName() string {
	return "games"
}
