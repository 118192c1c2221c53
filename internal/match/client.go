// Package match is the client of the remote game-scoring and preferences
// API. Scoring itself happens server-side; this client fetches ranked
// suggestions, keeps the user's preferences in sync, and refreshes
// reactively when the supplied coordinate changes.
package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"chessroam/pkg/logger"
)

// DefaultAutoRefreshInterval is the polling period while auto-refresh is on.
const DefaultAutoRefreshInterval = 5 * time.Minute

// Suggestion is one ranked game produced by the remote scorer. Snapshots are
// immutable; each fetch replaces the list wholesale.
type Suggestion struct {
	GameID           string   `json:"gameId"`
	VenueName        string   `json:"venueName"`
	GameDate         string   `json:"gameDate"`
	GameTime         string   `json:"gameTime"`
	DistanceKm       *float64 `json:"distanceKm,omitempty"`
	Score            int      `json:"score"` // 0..100, higher is better
	MatchReasons     []string `json:"matchReasons"`
	ParticipantCount int      `json:"participantCount"`
	MaxPlayers       int      `json:"maxPlayers"`
	TimeControl      string   `json:"timeControl"`
	PlayerLevel      string   `json:"playerLevel"`
}

// Preferences are the user's saved matching preferences. The local copy is
// the single source of truth between fetch and save round-trips.
type Preferences struct {
	PreferredTimeControls []string `json:"preferredTimeControls"`
	PreferredPlayerLevels []string `json:"preferredPlayerLevels"`
	MaxDistanceKm         float64  `json:"maxDistanceKm"`
	PreferredDays         []string `json:"preferredDays"`
}

// Params are the suggestion query parameters.
type Params struct {
	Lat         *float64
	Lng         *float64
	MaxDistance float64
	Limit       int
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Client talks to the scoring/preferences API for one user.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client

	mu          sync.Mutex
	suggestions []Suggestion
	prefs       *Preferences
	errMsg      string
	loading     bool
	lastParams  Params
	hasFetched  bool
	coordSet    bool
	lat, lng    float64

	stopAuto chan struct{}
}

// NewClient builds a client for the API at baseURL, acting as userID.
func NewClient(baseURL, userID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, userID: userID, http: httpClient}
}

// FetchSuggestions queries the scorer. On success the list is replaced
// wholesale; on failure the list is cleared and a single error message is
// kept, so no stale suggestions survive a failed refresh.
func (c *Client) FetchSuggestions(ctx context.Context, p Params) {
	c.mu.Lock()
	c.loading = true
	c.lastParams = p
	c.hasFetched = true
	c.mu.Unlock()

	q := url.Values{}
	q.Set("userId", c.userID)
	if p.Lat != nil && p.Lng != nil {
		q.Set("lat", strconv.FormatFloat(*p.Lat, 'f', -1, 64))
		q.Set("lng", strconv.FormatFloat(*p.Lng, 'f', -1, 64))
	}
	if p.MaxDistance > 0 {
		q.Set("maxDistance", strconv.FormatFloat(p.MaxDistance, 'f', -1, 64))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}

	var list []Suggestion
	err := c.getJSON(ctx, "/api/v1/suggestions?"+q.Encode(), &list)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.suggestions = nil
		c.errMsg = "could not load game suggestions"
		logger.Warn("suggestion fetch failed", "error", err)
		return
	}
	c.suggestions = list
	c.errMsg = ""
}

// Refresh re-runs the last fetch with the same parameters.
func (c *Client) Refresh(ctx context.Context) {
	c.mu.Lock()
	p := c.lastParams
	fetched := c.hasFetched
	c.mu.Unlock()
	if fetched {
		c.FetchSuggestions(ctx, p)
	}
}

// SetCoordinate feeds the geolocation output in. A changed lat/lng pair
// triggers a refetch with the new coordinate; an unchanged pair does not.
func (c *Client) SetCoordinate(ctx context.Context, lat, lng float64) {
	c.mu.Lock()
	if c.coordSet && c.lat == lat && c.lng == lng {
		c.mu.Unlock()
		return
	}
	c.coordSet = true
	c.lat = lat
	c.lng = lng
	p := c.lastParams
	c.mu.Unlock()

	p.Lat = &lat
	p.Lng = &lng
	c.FetchSuggestions(ctx, p)
}

// FetchPreferences loads saved preferences. Absence or failure is not an
// error state: preferences are an optional enrichment and the client
// degrades to "no preferences set".
func (c *Client) FetchPreferences(ctx context.Context) {
	var prefs Preferences
	if err := c.getJSON(ctx, "/api/v1/preferences?userId="+url.QueryEscape(c.userID), &prefs); err != nil {
		return
	}
	c.mu.Lock()
	c.prefs = &prefs
	c.mu.Unlock()
}

// SavePreferences persists prefs remotely. On success the local copy is
// replaced with the server's canonical echo; on failure the error propagates
// so the caller can surface it.
func (c *Client) SavePreferences(ctx context.Context, prefs Preferences) error {
	body, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/api/v1/preferences?userId="+url.QueryEscape(c.userID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("save preferences: status %d", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	var echoed Preferences
	if err := json.Unmarshal(env.Data, &echoed); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	c.mu.Lock()
	c.prefs = &echoed
	c.mu.Unlock()
	return nil
}

// StartAutoRefresh begins polling at interval (default 5 minutes) until
// StopAutoRefresh. Starting twice restarts the loop.
func (c *Client) StartAutoRefresh(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutoRefreshInterval
	}
	c.StopAutoRefresh()
	stop := make(chan struct{})
	c.mu.Lock()
	c.stopAuto = stop
	c.mu.Unlock()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				c.Refresh(ctx)
				cancel()
			}
		}
	}()
}

// StopAutoRefresh halts the polling loop. Safe to call when not running.
func (c *Client) StopAutoRefresh() {
	c.mu.Lock()
	stop := c.stopAuto
	c.stopAuto = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// Suggestions returns the current suggestion snapshot.
func (c *Client) Suggestions() []Suggestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Suggestion, len(c.suggestions))
	copy(out, c.suggestions)
	return out
}

// Preferences returns the local preference copy, nil when none are set.
func (c *Client) Preferences() *Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prefs == nil {
		return nil
	}
	p := *c.prefs
	return &p
}

// Err returns the current user-visible error message, empty when none.
func (c *Client) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Loading reports whether a suggestion fetch is in flight.
func (c *Client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}
