package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chessroam/internal/models"
)

type memPrefStore struct {
	byUser map[string]*models.MatchPreference
	err    error
}

func newMemPrefStore() *memPrefStore {
	return &memPrefStore{byUser: make(map[string]*models.MatchPreference)}
}

func (m *memPrefStore) GetByUserID(userID string) (*models.MatchPreference, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byUser[userID], nil
}

func (m *memPrefStore) Upsert(p *models.MatchPreference) error {
	if m.err != nil {
		return m.err
	}
	m.byUser[p.UserID] = p
	return nil
}

func prefRouter(store PreferenceStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewPreferenceHandler(store)
	r.GET("/api/v1/preferences", h.Get)
	r.PUT("/api/v1/preferences", h.Put)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := map[string]json.RawMessage{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestGetPreferencesEmptyDefaults(t *testing.T) {
	r := prefRouter(newMemPrefStore())
	w, body := doJSON(t, r, http.MethodGet, "/api/v1/preferences?userId=u1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got preferencePayload
	require.NoError(t, json.Unmarshal(body["data"], &got))
	assert.Equal(t, []string{}, got.PreferredTimeControls)
	assert.Equal(t, []string{}, got.PreferredPlayerLevels)
	assert.Equal(t, []string{}, got.PreferredDays)
	assert.Zero(t, got.MaxDistanceKm)
}

func TestPreferencesSaveThenLoadRoundTrip(t *testing.T) {
	r := prefRouter(newMemPrefStore())
	payload := `{"preferredTimeControls":["blitz","rapid"],"preferredPlayerLevels":["intermediate"],"maxDistanceKm":15,"preferredDays":["saturday"]}`

	w, body := doJSON(t, r, http.MethodPut, "/api/v1/preferences?userId=u1", payload)
	require.Equal(t, http.StatusOK, w.Code)
	var echoed preferencePayload
	require.NoError(t, json.Unmarshal(body["data"], &echoed))
	assert.Equal(t, []string{"blitz", "rapid"}, echoed.PreferredTimeControls)
	assert.Equal(t, 15.0, echoed.MaxDistanceKm)

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/preferences?userId=u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got preferencePayload
	require.NoError(t, json.Unmarshal(body["data"], &got))
	assert.Equal(t, echoed, got)

	// Another user is unaffected.
	_, other := doJSON(t, r, http.MethodGet, "/api/v1/preferences?userId=u2", "")
	var blank preferencePayload
	require.NoError(t, json.Unmarshal(other["data"], &blank))
	assert.Empty(t, blank.PreferredTimeControls)
}

func TestPutPreferencesReplacesExisting(t *testing.T) {
	store := newMemPrefStore()
	r := prefRouter(store)

	doJSON(t, r, http.MethodPut, "/api/v1/preferences?userId=u1",
		`{"preferredTimeControls":["blitz"],"maxDistanceKm":10}`)
	doJSON(t, r, http.MethodPut, "/api/v1/preferences?userId=u1",
		`{"preferredTimeControls":["classical"],"maxDistanceKm":30,"preferredDays":["sunday"]}`)

	_, body := doJSON(t, r, http.MethodGet, "/api/v1/preferences?userId=u1", "")
	var got preferencePayload
	require.NoError(t, json.Unmarshal(body["data"], &got))
	assert.Equal(t, []string{"classical"}, got.PreferredTimeControls)
	assert.Equal(t, 30.0, got.MaxDistanceKm)
	assert.Equal(t, []string{"sunday"}, got.PreferredDays)
}

func TestPreferencesRequireUserID(t *testing.T) {
	r := prefRouter(newMemPrefStore())
	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/preferences", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPut, "/api/v1/preferences", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutPreferencesRejectsMalformedBody(t *testing.T) {
	r := prefRouter(newMemPrefStore())
	w, _ := doJSON(t, r, http.MethodPut, "/api/v1/preferences?userId=u1", `{"maxDistanceKm":"ten"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreferencesStoreFailure(t *testing.T) {
	store := newMemPrefStore()
	store.err = errors.New("db down")
	r := prefRouter(store)
	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/preferences?userId=u1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
