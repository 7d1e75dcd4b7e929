package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"fraservotes-backend/auth"
	"fraservotes-backend/cache"
	"fraservotes-backend/database"
	"fraservotes-backend/models"
	"fraservotes-backend/pgputil"
	"fraservotes-backend/tally"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SubmitBallotInput is the ballot submission payload. The encrypted ballot is
// PGP message armor produced client-side against the election public key.
type SubmitBallotInput struct {
	StudentNumber   int    `json:"student_number" binding:"required"`
	EncryptedBallot string `json:"encrypted_ballot" binding:"required"`
}

// DecryptedBallotInput records the plaintext of one decrypted ballot.
type DecryptedBallotInput struct {
	EncryptedBallotID string                  `json:"encrypted_ballot_id" binding:"required"`
	SelectedOptions   []models.SelectedOption `json:"selected_options" binding:"required"`
}

// SaveDecryptedBallotsInput is the tally-save payload.
type SaveDecryptedBallotsInput struct {
	NewDecryptedBallots []DecryptedBallotInput `json:"new_decrypted_ballots" binding:"required"`
}

// SubmitBallot validates and stores one encrypted ballot. Guards run in a
// fixed order so the first failure determines the rejection reason; the store
// and the voter-roll mark commit atomically.
func SubmitBallot(c *gin.Context) {
	var input SubmitBallotInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": err.Error()})
		return
	}

	config, err := database.GetOrCreateConfig()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	if !config.IsOpen {
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "error": "voting is not open"})
		return
	}

	status, err := database.VotingStatusByStudentNumber(input.StudentNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "student number is not valid"})
			return
		}
		log.Printf("failed to look up voting status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	if status.Voted {
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "error": "student has already voted"})
		return
	}

	if !pgputil.IsEncryptedMessage(input.EncryptedBallot) {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": "not a valid PGP message"})
		return
	}

	ballot, err := database.SubmitBallot(input.StudentNumber, input.EncryptedBallot)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrAlreadyVoted):
			// A concurrent submission won the conditional update
			c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "error": "student has already voted"})
		case errors.Is(err, database.ErrStudentNotOnRoll):
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "student number is not valid"})
		default:
			log.Printf("failed to submit ballot: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		}
		return
	}

	if mqAdapter != nil {
		mqAdapter.Publish(ballot.ID)
	}
	c.Status(http.StatusNoContent)
}

// GetEncryptedBallots returns every stored ballot.
func GetEncryptedBallots(c *gin.Context) {
	ballots, err := database.EncryptedBallots()
	if err != nil {
		log.Printf("failed to list encrypted ballots: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, ballots)
}

// GetEncryptedBallotCount returns the number of stored ballots.
func GetEncryptedBallotCount(c *gin.Context) {
	count, err := database.EncryptedBallotCount()
	if err != nil {
		log.Printf("failed to count encrypted ballots: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// GetDecryptedBallots returns every decrypted ballot record.
func GetDecryptedBallots(c *gin.Context) {
	ballots, err := database.DecryptedBallots()
	if err != nil {
		log.Printf("failed to list decrypted ballots: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, ballots)
}

// GetDecryptedBallotCount returns the number of decrypted ballot records.
func GetDecryptedBallotCount(c *gin.Context) {
	count, err := database.DecryptedBallotCount()
	if err != nil {
		log.Printf("failed to count decrypted ballots: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// AddDecryptedBallot upserts a single decrypted ballot record.
func AddDecryptedBallot(c *gin.Context) {
	var input DecryptedBallotInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": err.Error()})
		return
	}

	ballot, err := database.UpsertDecryptedBallot(input.EncryptedBallotID, input.SelectedOptions)
	if err != nil {
		log.Printf("failed to upsert decrypted ballot: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, ballot)
}

// SaveDecryptedBallots records a batch of decrypted ballots and persists the
// aggregated snapshot, returning the new result id. Refused while voting is
// open. A single upsert failure excludes that ballot from the aggregation but
// never aborts the batch.
func SaveDecryptedBallots(c *gin.Context) {
	var input SaveDecryptedBallotsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": err.Error()})
		return
	}

	config, err := database.GetOrCreateConfig()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	if config.IsOpen {
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "error": "voting must be closed first"})
		return
	}

	var result *models.Result
	lockErr := cache.GetLockService().WithLock("lock:tally", 2*time.Minute, func() error {
		included := make([][]models.SelectedOption, 0, len(input.NewDecryptedBallots))
		for _, ballot := range input.NewDecryptedBallots {
			if _, err := database.UpsertDecryptedBallot(ballot.EncryptedBallotID, ballot.SelectedOptions); err != nil {
				log.Printf("failed to record decrypted ballot %s, excluding from count: %v",
					ballot.EncryptedBallotID, err)
				continue
			}
			included = append(included, ballot.SelectedOptions)
		}

		positions, err := database.Positions()
		if err != nil {
			return err
		}
		candidates, err := database.Candidates()
		if err != nil {
			return err
		}

		result, err = database.CreateResult(tally.Count(positions, candidates, included))
		return err
	})
	if lockErr != nil {
		log.Printf("failed to save tally: %v", lockErr)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"result_id": result.ID})
}

// DeleteBallots purges every encrypted and decrypted ballot. Requires voting
// closed and a double-checked admin.
func DeleteBallots(c *gin.Context) {
	if !auth.ConfirmAdmin(c, verifier) {
		return
	}

	config, err := database.GetOrCreateConfig()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	if config.IsOpen {
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "error": "voting must be closed first"})
		return
	}

	lockErr := cache.GetLockService().WithLock("lock:purge", time.Minute, database.DeleteBallots)
	if lockErr != nil {
		log.Printf("failed to delete ballots: %v", lockErr)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.Status(http.StatusNoContent)
}
