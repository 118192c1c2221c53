package service

import (
	"math"
	"sort"

	"chessroam/internal/match"
	"chessroam/internal/models"
	"chessroam/pkg/location"
	"chessroam/pkg/proximity"
)

// ScoreService ranks stored games against a user's preferences and position.
// Scores are 0..100, higher is better; each scored component contributes a
// human-readable match reason.
type ScoreService struct{}

func NewScoreService() *ScoreService {
	return &ScoreService{}
}

// ScoreParams are the per-request scoring inputs.
type ScoreParams struct {
	Lat         *float64
	Lng         *float64
	MaxDistance float64
	Limit       int
}

const (
	baseScore         = 50
	timeControlBonus  = 15
	playerLevelBonus  = 10
	preferredDayBonus = 10
	seatsBonus        = 5
	defaultMaxKm      = 25.0
	defaultLimit      = 20
)

// Suggestions scores and ranks games. prefs may be nil (no preferences
// set); coordinates may be absent, which skips distance scoring entirely.
// Games farther than the max distance are filtered out when a coordinate is
// known.
func (s *ScoreService) Suggestions(games []models.Game, prefs *models.MatchPreference, p ScoreParams) []match.Suggestion {
	maxKm := p.MaxDistance
	if maxKm <= 0 {
		if prefs != nil && prefs.MaxDistanceKm > 0 {
			maxKm = prefs.MaxDistanceKm
		} else {
			maxKm = defaultMaxKm
		}
	}
	limit := p.Limit
	if limit <= 0 || limit > 50 {
		limit = defaultLimit
	}

	out := make([]match.Suggestion, 0, len(games))
	for _, g := range games {
		score := baseScore
		reasons := []string{}

		var distKm *float64
		if p.Lat != nil && p.Lng != nil {
			d := location.HaversineKm(*p.Lat, *p.Lng, g.Latitude, g.Longitude)
			d = math.Round(d*10) / 10
			if d > maxKm {
				continue
			}
			distKm = &d
			progress := proximity.Progress(d, maxKm)
			switch {
			case progress >= 75:
				score += 15
			case progress >= 50:
				score += 10
			case progress > 0:
				score += 5
			}
			if label := proximity.Label(progress); label != "" {
				reasons = append(reasons, label)
			}
		}

		if prefs != nil {
			if contains(prefs.TimeControls(), g.TimeControl) {
				score += timeControlBonus
				reasons = append(reasons, "Matches your preferred time control")
			}
			if contains(prefs.PlayerLevels(), g.PlayerLevel) {
				score += playerLevelBonus
				reasons = append(reasons, "Players at your level")
			}
			if contains(prefs.Days(), g.DayOfWeek) {
				score += preferredDayBonus
				reasons = append(reasons, "On a day you prefer")
			}
		}

		if g.MaxPlayers > 0 && g.ParticipantCount < g.MaxPlayers {
			score += seatsBonus
			reasons = append(reasons, "Seats available")
		}

		if score > 100 {
			score = 100
		}
		out = append(out, match.Suggestion{
			GameID:           g.GameID,
			VenueName:        g.VenueName,
			GameDate:         g.GameDate,
			GameTime:         g.GameTime,
			DistanceKm:       distKm,
			Score:            score,
			MatchReasons:     reasons,
			ParticipantCount: g.ParticipantCount,
			MaxPlayers:       g.MaxPlayers,
			TimeControl:      g.TimeControl,
			PlayerLevel:      g.PlayerLevel,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}
