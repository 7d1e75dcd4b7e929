package handlers

import (
	"log"
	"net/http"

	"fraservotes-backend/mq"

	"github.com/gin-gonic/gin"
)

// HandleTurnoutWS authenticates and upgrades a turnout subscription.
// Browsers cannot set headers on WebSocket upgrades, so the token
// arrives as a query parameter.
func HandleTurnoutWS(c *gin.Context) {
	if wsHandler == nil {
		c.Status(http.StatusNotFound)
		return
	}

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHENTICATED", "error": "could not authenticate user"})
		return
	}
	claims, err := verifier.VerifyToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHENTICATED", "error": "could not authenticate user"})
		return
	}
	if !claims.Admin {
		c.JSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "error": "not sufficient permissions"})
		return
	}

	wsHandler.HandleTurnout(c)
}

// RefreshTurnout recomputes turnout from the roll, refreshes the cache,
// and broadcasts the new figures to subscribers. Registered as the
// ballot-event consumer so every accepted ballot pushes an update.
func RefreshTurnout(event mq.BallotEvent) error {
	turnout, err := loadTurnout()
	if err != nil {
		return err
	}
	if turnoutHub != nil {
		turnoutHub.Broadcast(turnout)
	}
	log.Printf("turnout refreshed after ballot %s: %d/%d", event.BallotID, turnout.Completed, turnout.Total)
	return nil
}
