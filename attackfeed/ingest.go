package attackfeed

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"thread/database"
	"thread/models"
)

// ChangeSummary reports what one ingest run did to the store.
type ChangeSummary struct {
	Added       int
	Renamed     int
	Updated     int
	Deactivated int
}

// Ingester folds transformed feed entries into the attack store.
type Ingester struct {
	store *database.Store
	log   *zap.SugaredLogger

	// OnRename, when set, is notified of technique renames so reviewers
	// can be told their mapped names changed.
	OnRename func(uid, oldName, newName string)
}

func NewIngester(store *database.Store, log *zap.SugaredLogger) *Ingester {
	return &Ingester{store: store, log: log}
}

// Run diffs the feed against the live attack set. New uids are inserted
// with their example uses as curated true positives; renames keep both
// names as similar words; uids absent from the feed go inactive but are
// never deleted.
func (ing *Ingester) Run(entries map[string]*Entry) (ChangeSummary, error) {
	var summary ChangeSummary

	liveUIDs, err := ing.store.AllAttackUIDs()
	if err != nil {
		return summary, fmt.Errorf("list live attacks: %w", err)
	}
	live := make(map[string]bool, len(liveUIDs))
	for _, uid := range liveUIDs {
		live[uid] = true
	}

	for uid, entry := range entries {
		if !live[uid] {
			if err := ing.insert(entry); err != nil {
				return summary, err
			}
			summary.Added++
			continue
		}
		existing, err := ing.store.AttackByUID(uid)
		if err != nil {
			return summary, err
		}
		if existing.Name != entry.Name {
			if err := ing.store.RenameAttack(uid, existing.Name, entry.Name); err != nil {
				return summary, err
			}
			ing.log.Infow("technique renamed", "tid", entry.TID,
				"old", existing.Name, "new", entry.Name)
			if ing.OnRename != nil {
				ing.OnRename(uid, existing.Name, entry.Name)
			}
			summary.Renamed++
		}
		if existing.Description != entry.Description {
			if err := ing.store.UpdateAttackDescription(uid, entry.Description); err != nil {
				return summary, err
			}
			summary.Updated++
		}
	}

	var missing []string
	for _, uid := range liveUIDs {
		if _, ok := entries[uid]; !ok {
			missing = append(missing, uid)
		}
	}
	if err := ing.store.DeactivateAttacks(missing); err != nil {
		return summary, err
	}
	summary.Deactivated = len(missing)

	ing.log.Infow("attack feed ingested", "added", summary.Added,
		"renamed", summary.Renamed, "updated", summary.Updated,
		"deactivated", summary.Deactivated)
	return summary, nil
}

func (ing *Ingester) insert(entry *Entry) error {
	attack := &models.Attack{
		UID:         entry.UID,
		TID:         entry.TID,
		Name:        entry.Name,
		Description: entry.Description,
		Category:    entry.Category,
	}
	if err := ing.store.InsertAttack(attack); err != nil {
		return err
	}
	return ing.store.DB().Transaction(func(tx *gorm.DB) error {
		for _, use := range entry.ExampleUses {
			if err := tx.Create(&models.TruePositive{
				AttackUID: entry.UID,
				Text:      use,
				Source:    models.SourceCurated,
			}).Error; err != nil {
				return err
			}
		}
		if entry.Category != models.CategoryTechnique {
			return nil
		}
		var count int64
		if err := tx.Model(&models.SimilarWord{}).
			Where("attack_uid = ? AND word = ?", entry.UID, entry.Name).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(&models.SimilarWord{AttackUID: entry.UID, Word: entry.Name}).Error
	})
}
