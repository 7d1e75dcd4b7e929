// Package tally implements the deterministic ballot aggregation step of the
// count. The skeleton built from the current positions and candidates is the
// only valid key space: identifiers a ballot references that are not in the
// skeleton can never receive a vote, which protects the totals from tampered
// or stale clients.
package tally

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"fraservotes-backend/models"
)

// ErrMalformedBallot means a decrypted plaintext failed shape validation and
// must be excluded from the count, never merged.
var ErrMalformedBallot = errors.New("ballot plaintext is malformed")

// ParseBallot validates a decrypted plaintext as a JSON array of selected
// options. The contract fails closed: any structural mismatch rejects the
// whole ballot.
func ParseBallot(plaintext []byte) ([]models.SelectedOption, error) {
	var raw []struct {
		Position   *string   `json:"position"`
		Candidates *[]string `json:"candidates"`
	}
	if err := json.Unmarshal(plaintext, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBallot, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not a JSON array", ErrMalformedBallot)
	}

	options := make([]models.SelectedOption, 0, len(raw))
	for i, entry := range raw {
		if entry.Position == nil || entry.Candidates == nil {
			return nil, fmt.Errorf("%w: entry %d is missing position or candidates", ErrMalformedBallot, i)
		}
		for j, candidate := range *entry.Candidates {
			if candidate == "" {
				return nil, fmt.Errorf("%w: entry %d candidate %d is empty", ErrMalformedBallot, i, j)
			}
		}
		options = append(options, models.SelectedOption{
			Position:   *entry.Position,
			Candidates: *entry.Candidates,
		})
	}
	return options, nil
}

// Skeleton is the zero-initialized position/candidate count structure that
// bounds valid aggregation targets. Ordering follows the creation order of
// positions and candidates so repeated runs over the same ballots produce
// identical snapshots.
type Skeleton struct {
	order  []string
	spots  map[string]int
	counts map[string]map[string]int
	ranks  map[string][]string
}

// NewSkeleton builds the count structure from the current reference data.
// Candidates whose position is unknown are dropped.
func NewSkeleton(positions []models.Position, candidates []models.Candidate) *Skeleton {
	s := &Skeleton{
		order:  make([]string, 0, len(positions)),
		spots:  make(map[string]int, len(positions)),
		counts: make(map[string]map[string]int, len(positions)),
		ranks:  make(map[string][]string, len(positions)),
	}
	for _, position := range positions {
		s.order = append(s.order, position.ID)
		s.spots[position.ID] = position.SpotsAvailable
		s.counts[position.ID] = make(map[string]int)
	}
	for _, candidate := range candidates {
		counts, ok := s.counts[candidate.PositionID]
		if !ok {
			log.Printf("tally: candidate %s references unknown position %s, skipping",
				candidate.ID, candidate.PositionID)
			continue
		}
		counts[candidate.ID] = 0
		s.ranks[candidate.PositionID] = append(s.ranks[candidate.PositionID], candidate.ID)
	}
	return s
}

// Apply credits one decrypted ballot against the skeleton. Unknown positions
// skip the whole option; candidate lists are truncated to the position's
// available spots; unknown candidates skip only that increment.
func (s *Skeleton) Apply(options []models.SelectedOption) {
	for _, option := range options {
		counts, ok := s.counts[option.Position]
		if !ok {
			log.Printf("tally: ballot references unknown position %s, skipping option", option.Position)
			continue
		}

		selected := option.Candidates
		if spots := s.spots[option.Position]; len(selected) > spots {
			log.Printf("tally: ballot selected %d candidates for position %s with %d spots, truncating",
				len(selected), option.Position, spots)
			selected = selected[:spots]
		}

		for _, candidate := range selected {
			if _, ok := counts[candidate]; !ok {
				log.Printf("tally: ballot references unknown candidate %s for position %s, skipping",
					candidate, option.Position)
				continue
			}
			counts[candidate]++
		}
	}
}

// Snapshot renders the completed counts in skeleton order.
func (s *Skeleton) Snapshot() []models.ResultPosition {
	positions := make([]models.ResultPosition, 0, len(s.order))
	for _, positionID := range s.order {
		result := models.ResultPosition{
			Position:   positionID,
			Candidates: make([]models.ResultCandidate, 0, len(s.ranks[positionID])),
		}
		for _, candidateID := range s.ranks[positionID] {
			result.Candidates = append(result.Candidates, models.ResultCandidate{
				Candidate: candidateID,
				Votes:     s.counts[positionID][candidateID],
			})
		}
		positions = append(positions, result)
	}
	return positions
}

// Count aggregates a batch of decrypted ballots into a snapshot in one pass.
func Count(positions []models.Position, candidates []models.Candidate, ballots [][]models.SelectedOption) []models.ResultPosition {
	skeleton := NewSkeleton(positions, candidates)
	for _, ballot := range ballots {
		skeleton.Apply(ballot)
	}
	return skeleton.Snapshot()
}
