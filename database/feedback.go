package database

import (
	"gorm.io/gorm"

	"thread/models"
)

// The four feedback tables must stay mutually exclusive per
// (sentence, attack): every mutation below removes the pair from the
// competing tables inside the caller's transaction.

func AddTruePositive(tx *gorm.DB, attackUID, sentenceID, text, source string) error {
	sid := sentenceID
	var existing int64
	if err := tx.Model(&models.TruePositive{}).
		Where("attack_uid = ? AND sentence_id = ?", attackUID, sid).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	return tx.Create(&models.TruePositive{
		AttackUID:  attackUID,
		SentenceID: &sid,
		Text:       text,
		Source:     source,
	}).Error
}

func AddFalseNegative(tx *gorm.DB, attackUID, sentenceID, text string) error {
	sid := sentenceID
	return tx.Create(&models.FalseNegative{
		AttackUID:  attackUID,
		SentenceID: &sid,
		Text:       text,
	}).Error
}

func AddFalsePositive(tx *gorm.DB, attackUID, sentenceID, text string) error {
	sid := sentenceID
	var existing int64
	if err := tx.Model(&models.FalsePositive{}).
		Where("attack_uid = ? AND sentence_id = ?", attackUID, sid).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	return tx.Create(&models.FalsePositive{
		AttackUID:  attackUID,
		SentenceID: &sid,
		Text:       text,
	}).Error
}

func DeleteTruePositive(tx *gorm.DB, attackUID, sentenceID string) error {
	return tx.Where("attack_uid = ? AND sentence_id = ?", attackUID, sentenceID).
		Delete(&models.TruePositive{}).Error
}

func DeleteFalseNegative(tx *gorm.DB, attackUID, sentenceID string) error {
	return tx.Where("attack_uid = ? AND sentence_id = ?", attackUID, sentenceID).
		Delete(&models.FalseNegative{}).Error
}

func DeleteFalsePositive(tx *gorm.DB, attackUID, sentenceID string) error {
	return tx.Where("attack_uid = ? AND sentence_id = ?", attackUID, sentenceID).
		Delete(&models.FalsePositive{}).Error
}

// PurgeFeedback removes the (sentence, attack) pair from all four tables.
// The true-negative pool is keyed by sentence only.
func PurgeFeedback(tx *gorm.DB, attackUID, sentenceID string) error {
	if err := DeleteTruePositive(tx, attackUID, sentenceID); err != nil {
		return err
	}
	if err := DeleteFalseNegative(tx, attackUID, sentenceID); err != nil {
		return err
	}
	if err := DeleteFalsePositive(tx, attackUID, sentenceID); err != nil {
		return err
	}
	return tx.Where("sentence_id = ?", sentenceID).
		Delete(&models.TrueNegative{}).Error
}

// Training-corpus queries.

// CuratedExampleCount counts feed-supplied example uses; the ML
// eligibility threshold is applied to this number, not to reviewer rows.
func (s *Store) CuratedExampleCount(attackUID string) (int, error) {
	var n int64
	err := s.db.Model(&models.TruePositive{}).
		Where("attack_uid = ? AND source = ?", attackUID, models.SourceCurated).
		Count(&n).Error
	return int(n), err
}

// TrainingPositives returns the positive class for a technique: curated
// example uses, confirmed true positives, and false negatives.
func (s *Store) TrainingPositives(attackUID string) ([]string, error) {
	var texts []string
	if err := s.db.Model(&models.TruePositive{}).
		Where("attack_uid = ?", attackUID).
		Pluck("text", &texts).Error; err != nil {
		return nil, err
	}
	var fns []string
	if err := s.db.Model(&models.FalseNegative{}).
		Where("attack_uid = ?", attackUID).
		Pluck("text", &fns).Error; err != nil {
		return nil, err
	}
	return append(texts, fns...), nil
}

// TrainingFalsePositives returns the reviewer-rejected sentences that seed
// the negative class for a technique.
func (s *Store) TrainingFalsePositives(attackUID string) ([]string, error) {
	var texts []string
	err := s.db.Model(&models.FalsePositive{}).
		Where("attack_uid = ?", attackUID).
		Pluck("text", &texts).Error
	return texts, err
}

// OtherTechniqueExamples returns curated example texts of every technique
// except the given one, for negative sampling.
func (s *Store) OtherTechniqueExamples(excludeUID string) ([]string, error) {
	var texts []string
	err := s.db.Model(&models.TruePositive{}).
		Where("attack_uid <> ? AND source = ?", excludeUID, models.SourceCurated).
		Pluck("text", &texts).Error
	return texts, err
}

// TrueNegatives returns the global not-an-attack pool.
func (s *Store) TrueNegatives() ([]string, error) {
	var texts []string
	err := s.db.Model(&models.TrueNegative{}).Pluck("text", &texts).Error
	return texts, err
}

// MLEligibleTechniques lists active techniques whose curated example count
// clears the minimum; the rest stay regex-only.
func (s *Store) MLEligibleTechniques(minExamples int) ([]models.Attack, error) {
	attacks, err := s.ActiveTechniques()
	if err != nil {
		return nil, err
	}
	var eligible []models.Attack
	for _, a := range attacks {
		n, err := s.CuratedExampleCount(a.UID)
		if err != nil {
			return nil, err
		}
		if n > minExamples {
			eligible = append(eligible, a)
		}
	}
	return eligible, nil
}
