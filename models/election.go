package models

// Position represents an elected position students vote for
type Position struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	Name           string `gorm:"not null" json:"name"`
	SpotsAvailable int    `gorm:"not null;default:1" json:"spots_available"`
}

// Candidate represents a student running for exactly one position
type Candidate struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	FullName      string `gorm:"not null" json:"full_name"`
	PositionID    string `gorm:"not null;size:36;index" json:"position_id"`
	Grade         int    `gorm:"not null" json:"grade"`
	Picture       string `gorm:"type:text" json:"picture"`
	Biography     string `gorm:"type:text" json:"biography"`
	CampaignVideo string `gorm:"type:text" json:"campaign_video"`
}

// Config is the election-wide singleton. IsOpen may only be true while a
// structurally valid PGP public key is stored, since voters encrypt against
// that exact key.
type Config struct {
	ID        uint    `gorm:"primaryKey" json:"-"`
	IsOpen    bool    `gorm:"not null;default:false" json:"is_open"`
	PublicKey *string `gorm:"type:text" json:"public_key"`
}

// ConfigID is the fixed primary key of the singleton Config row. The unique
// key makes concurrent lazy creation collide instead of duplicating.
const ConfigID uint = 1

// VotingStatus is one voter-roll entry. Voted flips false->true exactly once
// per successful submission and only returns to false via a bulk reset.
type VotingStatus struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	StudentNumber int    `gorm:"not null;uniqueIndex" json:"student_number"`
	Voted         bool   `gorm:"not null;default:false" json:"voted"`
}
