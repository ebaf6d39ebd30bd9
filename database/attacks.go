package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"thread/models"
)

var ErrAttackNotFound = errors.New("attack not found")

func (s *Store) AttackByUID(uid string) (*models.Attack, error) {
	var a models.Attack
	if err := s.db.Where("uid = ?", uid).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttackNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ActiveTechniques lists non-inactive attack-pattern rows for dropdowns
// and classification.
func (s *Store) ActiveTechniques() ([]models.Attack, error) {
	var out []models.Attack
	err := s.db.Where("inactive = ? AND category = ?", false, models.CategoryTechnique).
		Order("tid").Find(&out).Error
	return out, err
}

func (s *Store) AllAttackUIDs() ([]string, error) {
	var uids []string
	err := s.db.Model(&models.Attack{}).Pluck("uid", &uids).Error
	return uids, err
}

func (s *Store) InsertAttack(a *models.Attack) error {
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("insert attack %s: %w", a.TID, err)
	}
	return nil
}

// RenameAttack updates the display name and keeps both old and new names
// as similar words so existing text keeps matching.
func (s *Store) RenameAttack(uid, oldName, newName string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Attack{}).Where("uid = ?", uid).
			Update("name", newName).Error; err != nil {
			return err
		}
		for _, w := range []string{oldName, newName} {
			if err := addSimilarWord(tx, uid, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) UpdateAttackDescription(uid, description string) error {
	return s.db.Model(&models.Attack{}).Where("uid = ?", uid).
		Update("description", description).Error
}

// DeactivateAttacks flags the given uids inactive. Attacks are never
// deleted so historical hits stay meaningful.
func (s *Store) DeactivateAttacks(uids []string) error {
	if len(uids) == 0 {
		return nil
	}
	return s.db.Model(&models.Attack{}).Where("uid IN ?", uids).
		Update("inactive", true).Error
}

func (s *Store) AddSimilarWord(attackUID, word string) error {
	return addSimilarWord(s.db, attackUID, word)
}

func addSimilarWord(tx *gorm.DB, attackUID, word string) error {
	var count int64
	if err := tx.Model(&models.SimilarWord{}).
		Where("attack_uid = ? AND word = ?", attackUID, word).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&models.SimilarWord{AttackUID: attackUID, Word: word}).Error
}

func (s *Store) SimilarWords(attackUID string) ([]string, error) {
	var words []string
	err := s.db.Model(&models.SimilarWord{}).
		Where("attack_uid = ?", attackUID).Pluck("word", &words).Error
	return words, err
}

func (s *Store) RegexPatterns() ([]models.RegexPattern, error) {
	var out []models.RegexPattern
	err := s.db.Find(&out).Error
	return out, err
}

func (s *Store) AddRegexPattern(attackUID, pattern string) error {
	return s.db.Create(&models.RegexPattern{AttackUID: attackUID, Pattern: pattern}).Error
}
