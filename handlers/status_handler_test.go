package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"fraservotes-backend/cache"
	"fraservotes-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVotingStatuses_AdminOnly(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	seedRoll(t, db, 1000001, 1000002)

	w := doRequest(router, "GET", "/api/voting-statuses", volunteerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, "GET", "/api/voting-statuses", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var statuses []models.VotingStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statuses))
	assert.Len(t, statuses, 2)
}

func TestLookupVotingStatus_Filters(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	statuses := seedRoll(t, db, 1000001)

	// No filter at all
	w := doRequest(router, "GET", "/api/voting-statuses/lookup", volunteerToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no options in filter provided")

	// By student number
	w = doRequest(router, "GET", "/api/voting-statuses/lookup?studentNumber=1000001", volunteerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var found models.VotingStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	assert.Equal(t, statuses[0].ID, found.ID)

	// By id
	w = doRequest(router, "GET", "/api/voting-statuses/lookup?id="+statuses[0].ID, volunteerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Unknown student number
	w = doRequest(router, "GET", "/api/voting-statuses/lookup?studentNumber=4242", volunteerToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Malformed student number
	w = doRequest(router, "GET", "/api/voting-statuses/lookup?studentNumber=abc", volunteerToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVotingStatusCounts(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	statuses := seedRoll(t, db, 1000001, 1000002, 1000003)
	require.NoError(t, db.Model(&statuses[0]).Update("voted", true).Error)

	w := doRequest(router, "GET", "/api/voting-statuses/count", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count": 3}`, w.Body.String())

	w = doRequest(router, "GET", "/api/voting-statuses/count/completed", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count": 1}`, w.Body.String())
}

func TestGetTurnout_FallsBackToDatabase(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	statuses := seedRoll(t, db, 1000001, 1000002)
	require.NoError(t, db.Model(&statuses[1]).Update("voted", true).Error)

	// Prime differs from the roll to prove the cache path wins when warm
	require.NoError(t, cache.SetTurnout(cache.Turnout{Total: 99, Completed: 98}))
	w := doRequest(router, "GET", "/api/voting-statuses/turnout", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total": 99, "completed": 98}`, w.Body.String())

	// Cold cache recomputes from the roll
	turnout, err := loadTurnout()
	require.NoError(t, err)
	assert.Equal(t, int64(2), turnout.Total)
	assert.Equal(t, int64(1), turnout.Completed)
}

func TestResetVotingStatuses(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	statuses := seedRoll(t, db, 1000001, 1000002)
	for i := range statuses {
		require.NoError(t, db.Model(&statuses[i]).Update("voted", true).Error)
	}

	w := doRequest(router, "POST", "/api/voting-statuses/reset", volunteerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, "POST", "/api/voting-statuses/reset", adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	var voted int64
	db.Model(&models.VotingStatus{}).Where("voted = ?", true).Count(&voted)
	assert.Zero(t, voted)

	// Roll entries themselves survive the reset
	var total int64
	db.Model(&models.VotingStatus{}).Count(&total)
	assert.Equal(t, int64(2), total)
}

func TestPublicEndpoints(t *testing.T) {
	router, _ := SetupTestEnvironment(t)

	w := doRequest(router, "GET", "/api/config", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	for _, path := range []string{"/api/positions", "/api/candidates"} {
		w := doRequest(router, "GET", path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, fmt.Sprintf("%s should be public", path))
	}
}
