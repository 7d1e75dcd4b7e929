// Package migrations holds one-off schema changes that AutoMigrate cannot
// express safely on existing deployments.
package migrations

import (
	"log"

	"gorm.io/gorm"
)

// AddCampaignVideoToCandidate adds the campaign_video column to candidates.
// Campaign videos were introduced after the first election, so deployed
// databases may predate the column.
func AddCampaignVideoToCandidate(db *gorm.DB) error {
	if db.Migrator().HasColumn(&Candidate{}, "campaign_video") {
		log.Println("migration skipped: campaign_video column already exists")
		return nil
	}

	if err := db.Exec("ALTER TABLE candidates ADD COLUMN campaign_video TEXT").Error; err != nil {
		log.Printf("migration failed: %v", err)
		return err
	}
	log.Println("migration applied: campaign_video column added")
	return nil
}

// Candidate is a minimal shape for column checks only.
type Candidate struct {
	CampaignVideo string
}

func (Candidate) TableName() string {
	return "candidates"
}
