package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"fraservotes-backend/models"
	"fraservotes-backend/pgputil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfig_CreatesDefault(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	w := doRequest(router, "GET", "/api/config", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var config models.Config
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &config))
	assert.False(t, config.IsOpen)
	assert.Nil(t, config.PublicKey)

	// A second read must reuse the same singleton row
	var count int64
	db.Model(&models.Config{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpdateConfig_AuthGuards(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	body := gin.H{"is_open": true}

	w := doRequest(router, "PATCH", "/api/config", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "could not authenticate user")

	w = doRequest(router, "PATCH", "/api/config", volunteerToken, body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not sufficient permissions")
}

func TestUpdateConfig_SetKeyThenOpen(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	publicKey, _, err := pgputil.GenerateKeyPair("Test Election", "election@test.local", "")
	require.NoError(t, err)

	// One call sets the key and opens voting; key applies first
	w := doRequest(router, "PATCH", "/api/config", adminToken, gin.H{
		"public_key": publicKey,
		"is_open":    true,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var config models.Config
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &config))
	assert.True(t, config.IsOpen)
	require.NotNil(t, config.PublicKey)
	assert.Equal(t, publicKey, *config.PublicKey)
}

func TestUpdateConfig_RejectsInvalidKey(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	w := doRequest(router, "PATCH", "/api/config", adminToken, gin.H{
		"public_key": "definitely not a key",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "public key does not exist or is invalid")
}

func TestUpdateConfig_RefusesOpenWithoutKey(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	w := doRequest(router, "PATCH", "/api/config", adminToken, gin.H{"is_open": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "public key does not exist or is invalid")
}

func TestUpdateConfig_RefusesKeyRotationWhileOpen(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	firstKey, _, err := pgputil.GenerateKeyPair("First", "first@test.local", "")
	require.NoError(t, err)
	secondKey, _, err := pgputil.GenerateKeyPair("Second", "second@test.local", "")
	require.NoError(t, err)

	w := doRequest(router, "PATCH", "/api/config", adminToken, gin.H{
		"public_key": firstKey,
		"is_open":    true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Rotating the key mid-election would orphan every stored ballot
	w = doRequest(router, "PATCH", "/api/config", adminToken, gin.H{"public_key": secondKey})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "voting must be closed first")

	var config models.Config
	require.NoError(t, db.First(&config, models.ConfigID).Error)
	require.NotNil(t, config.PublicKey)
	assert.Equal(t, firstKey, *config.PublicKey)
}
