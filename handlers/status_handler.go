package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"fraservotes-backend/auth"
	"fraservotes-backend/cache"
	"fraservotes-backend/database"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetVotingStatuses returns the full voter roll.
func GetVotingStatuses(c *gin.Context) {
	statuses, err := database.VotingStatuses()
	if err != nil {
		log.Printf("failed to list voting statuses: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, statuses)
}

// LookupVotingStatus finds one roll entry by id or student number. One of the
// two query parameters must be given.
func LookupVotingStatus(c *gin.Context) {
	id := c.Query("id")
	studentNumberStr := c.Query("studentNumber")

	switch {
	case id != "":
		status, err := database.VotingStatusByID(id)
		if err != nil {
			respondStatusLookupError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	case studentNumberStr != "":
		studentNumber, err := strconv.Atoi(studentNumberStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": "invalid student number"})
			return
		}
		status, err := database.VotingStatusByStudentNumber(studentNumber)
		if err != nil {
			respondStatusLookupError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": "no options in filter provided"})
	}
}

func respondStatusLookupError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "voting status not found"})
		return
	}
	log.Printf("failed to look up voting status: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
}

// GetVotingStatusCount returns the number of eligible voters.
func GetVotingStatusCount(c *gin.Context) {
	count, err := database.VotingStatusCount()
	if err != nil {
		log.Printf("failed to count voting statuses: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// GetCompletedVotingStatusCount returns how many voters have cast a ballot.
func GetCompletedVotingStatusCount(c *gin.Context) {
	count, err := database.CompletedVotingStatusCount()
	if err != nil {
		log.Printf("failed to count completed voting statuses: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// GetTurnout serves the cached turnout report, falling back to the database
// when the cache is cold.
func GetTurnout(c *gin.Context) {
	if turnout, err := cache.GetTurnout(); err == nil {
		c.JSON(http.StatusOK, turnout)
		return
	}

	turnout, err := loadTurnout()
	if err != nil {
		log.Printf("failed to load turnout: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, turnout)
}

func loadTurnout() (*cache.Turnout, error) {
	total, err := database.VotingStatusCount()
	if err != nil {
		return nil, err
	}
	completed, err := database.CompletedVotingStatusCount()
	if err != nil {
		return nil, err
	}

	turnout := &cache.Turnout{Total: total, Completed: completed}
	if err := cache.SetTurnout(*turnout); err != nil {
		log.Printf("failed to cache turnout: %v", err)
	}
	return turnout, nil
}

// ResetVotingStatuses clears the voted flag across the roll. Run between
// election cycles after the ballots have been purged.
func ResetVotingStatuses(c *gin.Context) {
	if !auth.ConfirmAdmin(c, verifier) {
		return
	}

	if err := database.ResetVotingStatuses(); err != nil {
		log.Printf("failed to reset voting statuses: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.Status(http.StatusNoContent)
}
