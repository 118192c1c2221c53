package handler

import (
	"net/http"
	"strings"

	"chessroam/internal/models"

	"github.com/gin-gonic/gin"
)

// PreferenceStore is the subset of the preference repository the handler
// needs.
type PreferenceStore interface {
	GetByUserID(userID string) (*models.MatchPreference, error)
	Upsert(p *models.MatchPreference) error
}

type PreferenceHandler struct {
	repo PreferenceStore
}

func NewPreferenceHandler(repo PreferenceStore) *PreferenceHandler {
	return &PreferenceHandler{repo: repo}
}

type preferencePayload struct {
	PreferredTimeControls []string `json:"preferredTimeControls"`
	PreferredPlayerLevels []string `json:"preferredPlayerLevels"`
	MaxDistanceKm         float64  `json:"maxDistanceKm"`
	PreferredDays         []string `json:"preferredDays"`
}

func payloadFrom(p *models.MatchPreference) preferencePayload {
	return preferencePayload{
		PreferredTimeControls: p.TimeControls(),
		PreferredPlayerLevels: p.PlayerLevels(),
		MaxDistanceKm:         p.MaxDistanceKm,
		PreferredDays:         p.Days(),
	}
}

// Get returns the user's saved preferences, or empty defaults when none
// exist.
func (h *PreferenceHandler) Get(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}
	prefs, err := h.repo.GetByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
		return
	}
	if prefs == nil {
		c.JSON(http.StatusOK, gin.H{"data": preferencePayload{
			PreferredTimeControls: []string{},
			PreferredPlayerLevels: []string{},
			PreferredDays:         []string{},
		}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payloadFrom(prefs)})
}

// Put persists the user's preferences and echoes the canonical stored copy.
func (h *PreferenceHandler) Put(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}
	var req preferencePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	prefs, err := h.repo.GetByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	if prefs == nil {
		prefs = &models.MatchPreference{UserID: userID}
	}
	prefs.MaxDistanceKm = req.MaxDistanceKm
	prefs.SetLists(req.PreferredTimeControls, req.PreferredPlayerLevels, req.PreferredDays)
	if err := h.repo.Upsert(prefs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payloadFrom(prefs)})
}
