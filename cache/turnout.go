package cache

import (
	"encoding/json"
	"time"
)

// Turnout is the cached turnout report broadcast to admin dashboards.
type Turnout struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
}

const (
	turnoutKey = "election:turnout"
	turnoutTTL = time.Minute
)

// SetTurnout caches the latest turnout counts.
func SetTurnout(turnout Turnout) error {
	data, err := json.Marshal(turnout)
	if err != nil {
		return err
	}
	return Set(turnoutKey, string(data), turnoutTTL)
}

// GetTurnout returns the cached turnout, or ErrKeyNotFound when the cache is
// cold and the caller should hit the database.
func GetTurnout() (*Turnout, error) {
	raw, err := Get(turnoutKey)
	if err != nil {
		return nil, err
	}
	var turnout Turnout
	if err := json.Unmarshal([]byte(raw), &turnout); err != nil {
		return nil, err
	}
	return &turnout, nil
}
