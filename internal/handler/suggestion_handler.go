package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"chessroam/internal/models"
	"chessroam/internal/service"

	"github.com/gin-gonic/gin"
)

// GameStore is the subset of the game repository the handler needs.
type GameStore interface {
	ListUpcoming(today string) ([]models.Game, error)
}

// PreferenceReader loads a user's saved preferences; nil means none set.
type PreferenceReader interface {
	GetByUserID(userID string) (*models.MatchPreference, error)
}

type SuggestionHandler struct {
	games  GameStore
	prefs  PreferenceReader
	scorer *service.ScoreService
}

func NewSuggestionHandler(games GameStore, prefs PreferenceReader, scorer *service.ScoreService) *SuggestionHandler {
	return &SuggestionHandler{games: games, prefs: prefs, scorer: scorer}
}

// List returns ranked game suggestions for the requesting user.
func (h *SuggestionHandler) List(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	var p service.ScoreParams
	if v := c.Query("lat"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			p.Lat = &lat
		}
	}
	if v := c.Query("lng"); v != "" {
		if lng, err := strconv.ParseFloat(v, 64); err == nil {
			p.Lng = &lng
		}
	}
	p.MaxDistance, _ = strconv.ParseFloat(c.Query("maxDistance"), 64)
	p.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	games, err := h.games.ListUpcoming(time.Now().Format("2006-01-02"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "suggestions failed"})
		return
	}
	// Preferences are optional enrichment; a failed load just scores
	// without them.
	prefs, _ := h.prefs.GetByUserID(userID)

	c.JSON(http.StatusOK, gin.H{"data": h.scorer.Suggestions(games, prefs, p)})
}
