package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"fraservotes-backend/models"
	"fraservotes-backend/pgputil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openVoting seeds a fresh keypair into the config and opens the window,
// returning both armored halves.
func openVoting(t *testing.T, router *gin.Engine) (publicKey, privateKey string) {
	t.Helper()
	publicKey, privateKey, err := pgputil.GenerateKeyPair("Test Election", "election@test.local", "")
	require.NoError(t, err)

	w := doRequest(router, "PATCH", "/api/config", adminToken, gin.H{
		"public_key": publicKey,
		"is_open":    true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	return publicKey, privateKey
}

func closeVoting(t *testing.T, router *gin.Engine) {
	t.Helper()
	w := doRequest(router, "PATCH", "/api/config", adminToken, gin.H{"is_open": false})
	require.Equal(t, http.StatusOK, w.Code)
}

func encryptBallot(t *testing.T, publicKey string, options []models.SelectedOption) string {
	t.Helper()
	plaintext, err := json.Marshal(options)
	require.NoError(t, err)
	armored, err := pgputil.EncryptMessage(publicKey, plaintext)
	require.NoError(t, err)
	return armored
}

func TestSubmitBallot_RequiresAuth(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	w := doRequest(router, "POST", "/api/ballots", "", gin.H{
		"student_number":   1000001,
		"encrypted_ballot": "irrelevant",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitBallot_RejectsWhileClosed(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	seedRoll(t, db, 1000001)

	w := doRequest(router, "POST", "/api/ballots", volunteerToken, gin.H{
		"student_number":   1000001,
		"encrypted_ballot": "irrelevant",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "voting is not open")
}

func TestSubmitBallot_RejectsUnknownStudent(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	seedRoll(t, db, 1000001)
	openVoting(t, router)

	w := doRequest(router, "POST", "/api/ballots", volunteerToken, gin.H{
		"student_number":   9999999,
		"encrypted_ballot": "irrelevant",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "student number is not valid")
}

func TestSubmitBallot_RejectsNonPGPPayload(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	seedRoll(t, db, 1000001)
	openVoting(t, router)

	w := doRequest(router, "POST", "/api/ballots", volunteerToken, gin.H{
		"student_number":   1000001,
		"encrypted_ballot": "hello, this is plaintext",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not a valid PGP message")

	// Nothing stored, roll untouched
	var count int64
	db.Model(&models.EncryptedBallot{}).Count(&count)
	assert.Zero(t, count)
}

func TestSubmitBallot_StoresAndMarksVoted(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	statuses := seedRoll(t, db, 1000001)
	positions, candidates := seedElection(t, db)
	publicKey, _ := openVoting(t, router)

	armored := encryptBallot(t, publicKey, []models.SelectedOption{
		{Position: positions[0].ID, Candidates: []string{candidates[0].ID}},
	})

	w := doRequest(router, "POST", "/api/ballots", volunteerToken, gin.H{
		"student_number":   1000001,
		"encrypted_ballot": armored,
	})
	assert.Equal(t, http.StatusNoContent, w.Code)

	var ballots []models.EncryptedBallot
	require.NoError(t, db.Find(&ballots).Error)
	require.Len(t, ballots, 1)
	assert.Equal(t, armored, ballots[0].EncryptedBallot)
	assert.NotZero(t, ballots[0].TimestampUTC)

	var status models.VotingStatus
	require.NoError(t, db.First(&status, "id = ?", statuses[0].ID).Error)
	assert.True(t, status.Voted)
}

func TestSubmitBallot_RejectsDoubleVote(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	seedRoll(t, db, 1000001)
	positions, candidates := seedElection(t, db)
	publicKey, _ := openVoting(t, router)

	armored := encryptBallot(t, publicKey, []models.SelectedOption{
		{Position: positions[0].ID, Candidates: []string{candidates[0].ID}},
	})
	body := gin.H{"student_number": 1000001, "encrypted_ballot": armored}

	w := doRequest(router, "POST", "/api/ballots", volunteerToken, body)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, "POST", "/api/ballots", volunteerToken, body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "student has already voted")

	var count int64
	db.Model(&models.EncryptedBallot{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAddDecryptedBallot_UpsertIsIdempotent(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	encryptedBallotID := uuid.NewString()
	first := gin.H{
		"encrypted_ballot_id": encryptedBallotID,
		"selected_options":    []gin.H{{"position": "p1", "candidates": []string{"c1"}}},
	}
	second := gin.H{
		"encrypted_ballot_id": encryptedBallotID,
		"selected_options":    []gin.H{{"position": "p1", "candidates": []string{"c2"}}},
	}

	w := doRequest(router, "POST", "/api/ballots/decrypted", adminToken, first)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(router, "POST", "/api/ballots/decrypted", adminToken, second)
	require.Equal(t, http.StatusOK, w.Code)

	var ballots []models.DecryptedBallot
	require.NoError(t, db.Find(&ballots).Error)
	require.Len(t, ballots, 1)
	require.Len(t, ballots[0].SelectedOptions, 1)
	assert.Equal(t, []string{"c2"}, ballots[0].SelectedOptions[0].Candidates)
}

func TestSaveDecryptedBallots_RefusedWhileOpen(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	openVoting(t, router)

	w := doRequest(router, "POST", "/api/ballots/decrypted/save", adminToken, gin.H{
		"new_decrypted_ballots": []gin.H{},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "voting must be closed first")
}

func TestDeleteBallots_RefusedWhileOpen(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	openVoting(t, router)

	w := doRequest(router, "DELETE", "/api/ballots", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "voting must be closed first")
}

func TestDeleteBallots_PurgesBothTables(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	require.NoError(t, db.Create(&models.EncryptedBallot{
		ID: uuid.NewString(), TimestampUTC: 1, EncryptedBallot: "armor",
	}).Error)
	require.NoError(t, db.Create(&models.DecryptedBallot{
		ID: uuid.NewString(), EncryptedBallotID: uuid.NewString(),
	}).Error)

	w := doRequest(router, "DELETE", "/api/ballots", adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	var encrypted, decrypted int64
	db.Model(&models.EncryptedBallot{}).Count(&encrypted)
	db.Model(&models.DecryptedBallot{}).Count(&decrypted)
	assert.Zero(t, encrypted)
	assert.Zero(t, decrypted)
}

// TestBallotLifecycle_EndToEnd runs the whole flow: open with a generated key,
// submit an encrypted ballot, close, decrypt, save, and check the snapshot.
func TestBallotLifecycle_EndToEnd(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)
	seedRoll(t, db, 1000001)
	positions, candidates := seedElection(t, db)
	publicKey, privateKey := openVoting(t, router)

	armored := encryptBallot(t, publicKey, []models.SelectedOption{
		{Position: positions[0].ID, Candidates: []string{candidates[0].ID}},
	})
	w := doRequest(router, "POST", "/api/ballots", volunteerToken, gin.H{
		"student_number":   1000001,
		"encrypted_ballot": armored,
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	closeVoting(t, router)

	// Operator side: fetch, decrypt, upload
	w = doRequest(router, "GET", "/api/ballots/encrypted", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored []models.EncryptedBallot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	require.Len(t, stored, 1)

	keyring, err := pgputil.ReadPrivateKey(privateKey, "")
	require.NoError(t, err)
	require.NoError(t, pgputil.SelfTest(publicKey, keyring))

	plaintext, err := pgputil.DecryptMessage(keyring, stored[0].EncryptedBallot)
	require.NoError(t, err)
	var options []models.SelectedOption
	require.NoError(t, json.Unmarshal(plaintext, &options))

	w = doRequest(router, "POST", "/api/ballots/decrypted/save", adminToken, gin.H{
		"new_decrypted_ballots": []gin.H{{
			"encrypted_ballot_id": stored[0].ID,
			"selected_options":    options,
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var saved struct {
		ResultID string `json:"result_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.NotEmpty(t, saved.ResultID)

	w = doRequest(router, "GET", "/api/results/"+saved.ResultID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result models.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	// The voted candidate has one vote, everyone else zero
	votes := map[string]int{}
	for _, position := range result.Positions {
		for _, candidate := range position.Candidates {
			votes[candidate.Candidate] = candidate.Votes
		}
	}
	assert.Equal(t, 1, votes[candidates[0].ID])
	assert.Equal(t, 0, votes[candidates[1].ID])
	assert.Equal(t, 0, votes[candidates[2].ID])
}

func TestGetResult_NotFound(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	w := doRequest(router, "GET", "/api/results/"+uuid.NewString(), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
