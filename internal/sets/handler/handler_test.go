package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoset/internal/sets"
	setservice "geoset/internal/sets/service"
	"geoset/internal/sets/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := setservice.New(store.NewMemory())
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func createTestSet(t *testing.T, router http.Handler, name string, identifiers []string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/sets", map[string]any{
		"name":        name,
		"identifiers": identifiers,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateSetEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/sets", map[string]any{
		"name":        "fl",
		"description": "Florida counties",
		"identifiers": []string{"12086", "12011"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody[versionResponse](t, rec)
	assert.Equal(t, "fl", body.SetName)
	assert.Equal(t, 1, body.Version)

	// Second create conflicts.
	rec = doJSON(t, router, http.MethodPost, "/sets", map[string]any{
		"name": "fl", "identifiers": []string{"12099"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateSetEndpointRejectsUnknownFields(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/sets", map[string]any{
		"name": "fl", "bogus": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSetEndpoint(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "fl", []string{"12086", "12011"})

	rec := doJSON(t, router, http.MethodGet, "/sets/fl", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[membersResponse](t, rec)
	assert.Equal(t, "fl", body.SetName)
	assert.Equal(t, []string{"12011", "12086"}, body.Identifiers)
	assert.Equal(t, 2, body.Count)
}

func TestGetSetEndpointVersionParam(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "fl", []string{"12086"})

	rec := doJSON(t, router, http.MethodPost, "/sets/fl/add", map[string]any{
		"identifiers": []string{"12011"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/sets/fl?version=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[membersResponse](t, rec)
	assert.Equal(t, []string{"12086"}, body.Identifiers)

	rec = doJSON(t, router, http.MethodGet, "/sets/fl?version=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/sets/fl?version=9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSetEndpointNotFound(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/sets/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["error"])
}

func TestAddEndpointNoOp(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "fl", []string{"12086"})

	rec := doJSON(t, router, http.MethodPost, "/sets/fl/add", map[string]any{
		"identifiers": []string{"12086"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[versionResponse](t, rec)
	assert.Equal(t, 0, body.Version)
	assert.True(t, body.NoOp)
}

func TestRemoveEndpoint(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "fl", []string{"12086", "12011"})

	rec := doJSON(t, router, http.MethodPost, "/sets/fl/remove", map[string]any{
		"identifiers":        []string{"12086"},
		"change_description": "drop Miami-Dade",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[versionResponse](t, rec)
	assert.Equal(t, 2, body.Version)
	assert.False(t, body.NoOp)
}

func TestCreateVersionEndpoint(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "fl", []string{"12086"})

	rec := doJSON(t, router, http.MethodPost, "/sets/fl/versions", map[string]any{
		"identifiers":        []string{"12011", "12099"},
		"change_description": "replace membership",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody[versionResponse](t, rec)
	assert.Equal(t, 2, body.Version)
}

func TestListVersionsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "fl", []string{"12086"})

	rec := doJSON(t, router, http.MethodGet, "/sets/fl/versions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	infos := decodeBody[[]sets.VersionInfo](t, rec)
	require.Len(t, infos, 1)
	assert.True(t, infos[0].IsCurrent)

	rec = doJSON(t, router, http.MethodGet, "/sets/nope/versions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRollbackEndpoint(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "fl", []string{"12086", "12011"})

	rec := doJSON(t, router, http.MethodPost, "/sets/fl/remove", map[string]any{
		"identifiers": []string{"12086"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/sets/fl/rollback", map[string]any{
		"target_version": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody[versionResponse](t, rec)
	assert.Equal(t, 3, body.Version)

	rec = doJSON(t, router, http.MethodGet, "/sets/fl", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decodeBody[membersResponse](t, rec)
	assert.Equal(t, []string{"12011", "12086"}, members.Identifiers)
}

func TestCompareEndpoint(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "fl", []string{"12086", "12011"})

	rec := doJSON(t, router, http.MethodPost, "/sets/fl/add", map[string]any{
		"identifiers": []string{"12099"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/sets/fl/compare?v1=1&v2=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	diff := decodeBody[sets.VersionDiff](t, rec)
	assert.Equal(t, []string{"12099"}, diff.Added)
	assert.Empty(t, diff.Removed)

	rec = doJSON(t, router, http.MethodGet, "/sets/fl/compare?v1=0&v2=2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/sets/fl/compare", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSetEndpoint(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "fl", []string{"12086"})

	rec := doJSON(t, router, http.MethodDelete, "/sets/fl", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/sets/fl", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSetsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "ga", []string{"13001"})
	createTestSet(t, router, "fl", []string{"12086"})

	rec := doJSON(t, router, http.MethodGet, "/sets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summaries := decodeBody[[]sets.SetSummary](t, rec)
	require.Len(t, summaries, 2)
	assert.Equal(t, "fl", summaries[0].Name)
	assert.Equal(t, "ga", summaries[1].Name)
}

func TestIdentifierEndpoints(t *testing.T) {
	router := newTestRouter(t)
	createTestSet(t, router, "fl", []string{"12086", "12011"})
	createTestSet(t, router, "south", []string{"12086"})

	rec := doJSON(t, router, http.MethodGet, "/identifiers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	usages := decodeBody[[]sets.IdentifierUsage](t, rec)
	require.Len(t, usages, 2)
	assert.Equal(t, "12011", usages[0].GEOID)
	assert.Equal(t, []string{"fl", "south"}, usages[1].SetNames)

	rec = doJSON(t, router, http.MethodGet, "/identifiers/12086/sets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	memberships := decodeBody[[]sets.SetMembership](t, rec)
	require.Len(t, memberships, 2)
	assert.Equal(t, "fl", memberships[0].SetName)
}

func TestPresetEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/presets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var presets []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &presets))
	assert.NotEmpty(t, presets)

	rec = doJSON(t, router, http.MethodPost, "/presets/south_florida", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody[versionResponse](t, rec)
	assert.Equal(t, "south_florida", body.SetName)
	assert.Equal(t, 1, body.Version)

	rec = doJSON(t, router, http.MethodGet, "/sets/south_florida", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decodeBody[membersResponse](t, rec)
	assert.NotEmpty(t, members.Identifiers)

	rec = doJSON(t, router, http.MethodPost, "/presets/no_such_region", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Re-seeding an existing set conflicts.
	rec = doJSON(t, router, http.MethodPost, "/presets/south_florida", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
