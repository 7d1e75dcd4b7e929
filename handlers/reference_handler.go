package handlers

import (
	"errors"
	"log"
	"net/http"

	"fraservotes-backend/database"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetPositions returns all elected positions.
func GetPositions(c *gin.Context) {
	positions, err := database.Positions()
	if err != nil {
		log.Printf("failed to list positions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, positions)
}

// GetPosition returns one position.
func GetPosition(c *gin.Context) {
	position, err := database.PositionByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "position not found"})
			return
		}
		log.Printf("failed to load position: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, position)
}

// GetCandidates returns all candidates.
func GetCandidates(c *gin.Context) {
	candidates, err := database.Candidates()
	if err != nil {
		log.Printf("failed to list candidates: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, candidates)
}

// GetCandidate returns one candidate.
func GetCandidate(c *gin.Context) {
	candidate, err := database.CandidateByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "candidate not found"})
			return
		}
		log.Printf("failed to load candidate: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, candidate)
}
