package repository

import (
	"chessroam/internal/models"

	"gorm.io/gorm"
)

type GameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{db: db}
}

// ListUpcoming returns games dated today or later, oldest first.
func (r *GameRepository) ListUpcoming(today string) ([]models.Game, error) {
	var games []models.Game
	err := r.db.Where("game_date >= ?", today).
		Order("game_date asc, game_time asc").
		Find(&games).Error
	return games, err
}

func (r *GameRepository) GetByGameID(gameID string) (*models.Game, error) {
	var g models.Game
	if err := r.db.Where("game_id = ?", gameID).First(&g).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *GameRepository) Upsert(g *models.Game) error {
	existing, err := r.GetByGameID(g.GameID)
	if err != nil {
		return err
	}
	if existing != nil {
		g.ID = existing.ID
	}
	return r.db.Save(g).Error
}
