package models

import (
	"gorm.io/datatypes"
)

// EncryptedBallot is an append-only record holding the PGP-armored ciphertext
// exactly as submitted. The server never holds the private key, so the payload
// is opaque beyond armor validation.
type EncryptedBallot struct {
	ID              string `gorm:"primaryKey;size:36" json:"id"`
	TimestampUTC    int64  `gorm:"not null" json:"timestamp_utc"`
	EncryptedBallot string `gorm:"type:text;not null" json:"encrypted_ballot"`
}

// SelectedOption is one decrypted position selection. The JSON field names
// match the plaintext ballot format produced by the voting client.
type SelectedOption struct {
	Position   string   `json:"position"`
	Candidates []string `json:"candidates"`
}

// DecryptedBallot preserves the plaintext of a single encrypted ballot for
// audit and reprocessing. At most one row per encrypted ballot.
type DecryptedBallot struct {
	ID                string                               `gorm:"primaryKey;size:36" json:"id"`
	EncryptedBallotID string                               `gorm:"not null;size:36;uniqueIndex" json:"encrypted_ballot_id"`
	SelectedOptions   datatypes.JSONSlice[SelectedOption]  `gorm:"type:text" json:"selected_options"`
}

// ResultCandidate is one candidate's final count within a snapshot.
type ResultCandidate struct {
	Candidate string `json:"candidate"`
	Votes     int    `json:"votes"`
}

// ResultPosition groups the counts of every candidate running for a position.
type ResultPosition struct {
	Position   string            `json:"position"`
	Candidates []ResultCandidate `json:"candidates"`
}

// Result is an immutable tally snapshot, one per completed count.
type Result struct {
	ID        string                              `gorm:"primaryKey;size:36" json:"id"`
	Timestamp int64                               `gorm:"not null" json:"timestamp"`
	Positions datatypes.JSONSlice[ResultPosition] `gorm:"type:text" json:"positions"`
}

// ResultSummary is the listing shape for results (id + timestamp only).
type ResultSummary struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}
