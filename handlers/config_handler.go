package handlers

import (
	"errors"
	"log"
	"net/http"

	"fraservotes-backend/auth"
	"fraservotes-backend/database"

	"github.com/gin-gonic/gin"
)

// UpdateConfigInput carries the partial config update. Omitted fields are
// left unchanged.
type UpdateConfigInput struct {
	IsOpen    *bool   `json:"is_open"`
	PublicKey *string `json:"public_key"`
}

// GetConfig returns the singleton election config, creating the default on
// first read.
func GetConfig(c *gin.Context) {
	config, err := database.GetOrCreateConfig()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, config)
}

// UpdateConfig applies a partial config change. The public key is applied
// before the open flag so a single call can set a key and open voting.
func UpdateConfig(c *gin.Context) {
	if !auth.ConfirmAdmin(c, verifier) {
		return
	}

	var input UpdateConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": err.Error()})
		return
	}

	if input.PublicKey != nil {
		if _, err := database.SetPublicKey(input.PublicKey); err != nil {
			respondConfigError(c, err)
			return
		}
	}
	if input.IsOpen != nil {
		if _, err := database.SetVotingOpen(*input.IsOpen); err != nil {
			respondConfigError(c, err)
			return
		}
	}

	config, err := database.GetOrCreateConfig()
	if err != nil {
		log.Printf("failed to reload config: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, config)
}

func respondConfigError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrInvalidPublicKey):
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "error": err.Error()})
	case errors.Is(err, database.ErrVotingOpen):
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "error": err.Error()})
	default:
		log.Printf("failed to update config: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "something went wrong"})
	}
}
