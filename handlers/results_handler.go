package handlers

import (
	"errors"
	"log"
	"net/http"

	"fraservotes-backend/auth"
	"fraservotes-backend/database"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetResults lists stored snapshots, id and timestamp only.
func GetResults(c *gin.Context) {
	summaries, err := database.Results()
	if err != nil {
		log.Printf("failed to list results: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// GetResult returns one full snapshot.
func GetResult(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": "id must be provided"})
		return
	}

	result, err := database.ResultByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "result not found"})
			return
		}
		log.Printf("failed to load result %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteAllResults removes every stored snapshot. Double-checked admin only.
func DeleteAllResults(c *gin.Context) {
	if !auth.ConfirmAdmin(c, verifier) {
		return
	}

	if err := database.DeleteAllResults(); err != nil {
		log.Printf("failed to delete results: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.Status(http.StatusNoContent)
}
