// Package handlers implements the election API endpoints: configuration,
// voter roll, ballot submission, decrypted-ballot bookkeeping, tally saving,
// and result reads.
package handlers

import (
	"log"

	"fraservotes-backend/auth"
	"fraservotes-backend/mq"
	"fraservotes-backend/websocket"
)

var (
	mqAdapter  *mq.Adapter
	verifier   auth.Verifier
	turnoutHub *websocket.Hub
	wsHandler  *websocket.Handler
)

// InitHandler wires the shared collaborators into the handler package.
func InitHandler(adapter *mq.Adapter, tokenVerifier auth.Verifier) {
	mqAdapter = adapter
	verifier = tokenVerifier

	turnoutHub = websocket.NewHub()
	go turnoutHub.Run()
	wsHandler = websocket.NewHandler(turnoutHub, func() (any, error) {
		return loadTurnout()
	})

	log.Println("handler collaborators configured")
}

// Verifier exposes the configured verifier for route middleware setup.
func Verifier() auth.Verifier {
	return verifier
}
