package database

import (
	"errors"
	"fmt"
	"time"

	"fraservotes-backend/models"
	"fraservotes-backend/pgputil"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrStudentNotOnRoll means the student number was never pre-seeded onto the voter roll.
	ErrStudentNotOnRoll = errors.New("student number is not valid")

	// ErrAlreadyVoted means the roll entry had voted=true when the mark was attempted.
	ErrAlreadyVoted = errors.New("student has already voted")

	// ErrInvalidPublicKey means the stored or supplied key is not a structurally valid PGP public key.
	ErrInvalidPublicKey = errors.New("public key does not exist or is invalid")

	// ErrVotingOpen guards operations that must only run while voting is closed,
	// including public key changes: rotating the key mid-election would orphan
	// every ballot already encrypted against the old one.
	ErrVotingOpen = errors.New("voting must be closed first")
)

// GetOrCreateConfig returns the singleton config row, creating the default
// (closed, no key) if none exists. The fixed primary key turns the lazy-init
// race into a duplicate-key conflict: the loser re-reads instead of inserting
// a second row.
func GetOrCreateConfig() (*models.Config, error) {
	var config models.Config
	err := DB.First(&config, models.ConfigID).Error
	if err == nil {
		return &config, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	config = models.Config{ID: models.ConfigID}
	if createErr := DB.Create(&config).Error; createErr != nil {
		// Lost the creation race, the row exists now
		if readErr := DB.First(&config, models.ConfigID).Error; readErr != nil {
			return nil, createErr
		}
	}
	return &config, nil
}

// SetVotingOpen flips the voting window. Opening requires a valid stored
// public key, since voters encrypt against it from the moment voting opens.
func SetVotingOpen(open bool) (*models.Config, error) {
	config, err := GetOrCreateConfig()
	if err != nil {
		return nil, err
	}

	if open && (config.PublicKey == nil || !pgputil.IsValidPublicKey(*config.PublicKey)) {
		return nil, ErrInvalidPublicKey
	}

	if err := DB.Model(&models.Config{}).Where("id = ?", models.ConfigID).
		Update("is_open", open).Error; err != nil {
		return nil, err
	}
	config.IsOpen = open
	return config, nil
}

// SetPublicKey stores a new election public key, or clears it with nil.
// Refused while voting is open.
func SetPublicKey(key *string) (*models.Config, error) {
	if key != nil && !pgputil.IsValidPublicKey(*key) {
		return nil, ErrInvalidPublicKey
	}

	config, err := GetOrCreateConfig()
	if err != nil {
		return nil, err
	}
	if config.IsOpen {
		return nil, ErrVotingOpen
	}

	if err := DB.Model(&models.Config{}).Where("id = ?", models.ConfigID).
		Update("public_key", key).Error; err != nil {
		return nil, err
	}
	config.PublicKey = key
	return config, nil
}

// VotingStatusByStudentNumber looks up one voter-roll entry.
func VotingStatusByStudentNumber(studentNumber int) (*models.VotingStatus, error) {
	var status models.VotingStatus
	if err := DB.Where("student_number = ?", studentNumber).First(&status).Error; err != nil {
		return nil, err
	}
	return &status, nil
}

// VotingStatusByID looks up one voter-roll entry by its identifier.
func VotingStatusByID(id string) (*models.VotingStatus, error) {
	var status models.VotingStatus
	if err := DB.Where("id = ?", id).First(&status).Error; err != nil {
		return nil, err
	}
	return &status, nil
}

// VotingStatuses returns the full voter roll.
func VotingStatuses() ([]models.VotingStatus, error) {
	var statuses []models.VotingStatus
	if err := DB.Order("student_number").Find(&statuses).Error; err != nil {
		return nil, err
	}
	return statuses, nil
}

// VotingStatusCount returns the number of eligible voters.
func VotingStatusCount() (int64, error) {
	var count int64
	err := DB.Model(&models.VotingStatus{}).Count(&count).Error
	return count, err
}

// CompletedVotingStatusCount returns how many voters have cast a ballot.
func CompletedVotingStatusCount() (int64, error) {
	var count int64
	err := DB.Model(&models.VotingStatus{}).Where("voted = ?", true).Count(&count).Error
	return count, err
}

// ResetVotingStatuses sets every voted entry back to false. Entries already
// false are left untouched. Used between election cycles after the ballots
// have been purged.
func ResetVotingStatuses() error {
	return DB.Model(&models.VotingStatus{}).Where("voted = ?", true).
		Update("voted", false).Error
}

// SubmitBallot stores the encrypted payload and marks the voter in a single
// transaction. The voted flag is flipped with a conditional update so that of
// two concurrent submissions for the same student exactly one commits; the
// loser's ballot insert rolls back with it, leaving no partial state.
func SubmitBallot(studentNumber int, encryptedBallot string) (*models.EncryptedBallot, error) {
	ballot := models.EncryptedBallot{
		ID:              uuid.NewString(),
		TimestampUTC:    time.Now().UTC().Unix(),
		EncryptedBallot: encryptedBallot,
	}

	err := DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ballot).Error; err != nil {
			return fmt.Errorf("store ballot: %w", err)
		}

		res := tx.Model(&models.VotingStatus{}).
			Where("student_number = ? AND voted = ?", studentNumber, false).
			Update("voted", true)
		if res.Error != nil {
			return fmt.Errorf("mark voted: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Distinguish an unknown student from a concurrent double submission
			var status models.VotingStatus
			if err := tx.Where("student_number = ?", studentNumber).
				First(&status).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrStudentNotOnRoll
				}
				return err
			}
			return ErrAlreadyVoted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ballot, nil
}

// EncryptedBallots returns every stored ballot, oldest first.
func EncryptedBallots() ([]models.EncryptedBallot, error) {
	var ballots []models.EncryptedBallot
	if err := DB.Order("timestamp_utc").Find(&ballots).Error; err != nil {
		return nil, err
	}
	return ballots, nil
}

// EncryptedBallotCount returns the number of stored ballots.
func EncryptedBallotCount() (int64, error) {
	var count int64
	err := DB.Model(&models.EncryptedBallot{}).Count(&count).Error
	return count, err
}

// DecryptedBallots returns every decrypted ballot record.
func DecryptedBallots() ([]models.DecryptedBallot, error) {
	var ballots []models.DecryptedBallot
	if err := DB.Find(&ballots).Error; err != nil {
		return nil, err
	}
	return ballots, nil
}

// DecryptedBallotCount returns the number of decrypted ballot records.
func DecryptedBallotCount() (int64, error) {
	var count int64
	err := DB.Model(&models.DecryptedBallot{}).Count(&count).Error
	return count, err
}

// UpsertDecryptedBallot records the plaintext of one encrypted ballot, keyed
// by the encrypted ballot's identifier. Re-running a tally updates the
// existing row instead of duplicating it.
func UpsertDecryptedBallot(encryptedBallotID string, options []models.SelectedOption) (*models.DecryptedBallot, error) {
	ballot := models.DecryptedBallot{
		ID:                uuid.NewString(),
		EncryptedBallotID: encryptedBallotID,
		SelectedOptions:   options,
	}

	err := DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "encrypted_ballot_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"selected_options"}),
	}).Create(&ballot).Error
	if err != nil {
		return nil, err
	}

	// Return the persisted row; on conflict the original keeps its ID
	var stored models.DecryptedBallot
	if err := DB.Where("encrypted_ballot_id = ?", encryptedBallotID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeleteBallots purges every encrypted and decrypted ballot. Callers gate this
// on voting being closed and on admin authorization.
func DeleteBallots() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.DecryptedBallot{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.EncryptedBallot{}).Error
	})
}

// CreateResult persists a completed tally snapshot.
func CreateResult(positions []models.ResultPosition) (*models.Result, error) {
	result := models.Result{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Unix(),
		Positions: positions,
	}
	if err := DB.Create(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// Results lists stored snapshots as id + timestamp only.
func Results() ([]models.ResultSummary, error) {
	var summaries []models.ResultSummary
	if err := DB.Model(&models.Result{}).Select("id", "timestamp").
		Order("timestamp desc").Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

// ResultByID returns one full snapshot.
func ResultByID(id string) (*models.Result, error) {
	var result models.Result
	if err := DB.Where("id = ?", id).First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteAllResults removes every stored snapshot.
func DeleteAllResults() error {
	return DB.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Result{}).Error
}

// Positions returns the position list, creation order.
func Positions() ([]models.Position, error) {
	var positions []models.Position
	if err := DB.Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// PositionByID returns one position.
func PositionByID(id string) (*models.Position, error) {
	var position models.Position
	if err := DB.Where("id = ?", id).First(&position).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

// Candidates returns the candidate list, creation order.
func Candidates() ([]models.Candidate, error) {
	var candidates []models.Candidate
	if err := DB.Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

// CandidateByID returns one candidate.
func CandidateByID(id string) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := DB.Where("id = ?", id).First(&candidate).Error; err != nil {
		return nil, err
	}
	return &candidate, nil
}
