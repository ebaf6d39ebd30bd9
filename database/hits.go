package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"thread/models"
)

func (s *Store) HitBySentenceAttack(sentenceID, attackUID string) (*models.ReportSentenceHit, error) {
	var hit models.ReportSentenceHit
	err := s.db.Where("sentence_id = ? AND attack_uid = ?", sentenceID, attackUID).
		First(&hit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hit, nil
}

// InsertHitMirrored writes an analysis-time hit to the live table and the
// initial-state mirror. Only the pipeline uses this; review-time hits are
// created inside the reviewer's transaction and are not mirrored.
func (s *Store) InsertHitMirrored(hit *models.ReportSentenceHit) error {
	if hit.UID == "" {
		hit.UID = uuid.NewString()
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(hit).Error; err != nil {
			return fmt.Errorf("insert hit: %w", err)
		}
		mirror := models.ReportSentenceHitInitial(*hit)
		return tx.Create(&mirror).Error
	})
}

func (s *Store) ActiveHits(sentenceID string) ([]models.ReportSentenceHit, error) {
	var out []models.ReportSentenceHit
	err := s.db.Where("sentence_id = ? AND active_hit = ?", sentenceID, true).
		Order("attack_tid").Find(&out).Error
	return out, err
}

func (s *Store) ConfirmedHits(sentenceID string) ([]models.ReportSentenceHit, error) {
	var out []models.ReportSentenceHit
	err := s.db.Where("sentence_id = ? AND confirmed = ?", sentenceID, true).
		Order("attack_tid").Find(&out).Error
	return out, err
}

func (s *Store) HitsForReport(reportUID string) ([]models.ReportSentenceHit, error) {
	var out []models.ReportSentenceHit
	err := s.db.Where("report_uid = ?", reportUID).Find(&out).Error
	return out, err
}

// UniqueTechniqueCount counts distinct techniques with an active hit in
// the report. Gates auto-deletion of thin automatically generated reports.
func (s *Store) UniqueTechniqueCount(reportUID string) (int, error) {
	var n int64
	err := s.db.Model(&models.ReportSentenceHit{}).
		Where("report_uid = ? AND active_hit = ?", reportUID, true).
		Distinct("attack_uid").Count(&n).Error
	return int(n), err
}

// UnconfirmedOrUndatedCount counts active hits that would block completion:
// unconfirmed, or confirmed without a start date.
func (s *Store) UnconfirmedOrUndatedCount(reportUID string) (int, error) {
	var n int64
	err := s.db.Model(&models.ReportSentenceHit{}).
		Where("report_uid = ? AND active_hit = ? AND (confirmed = ? OR start_date IS NULL)",
			reportUID, true, false).
		Count(&n).Error
	return int(n), err
}

// SetHitDates updates one mapping's date range.
func (s *Store) SetHitDates(tx *gorm.DB, hitUID string, start, end *time.Time) error {
	updates := map[string]interface{}{}
	if start != nil {
		updates["start_date"] = start
	}
	if end != nil {
		updates["end_date"] = end
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.ReportSentenceHit{}).Where("uid = ?", hitUID).
		Updates(updates).Error
}

// SetAllHitStartDates stamps every hit of the report that has no start
// date yet; used when article-date extraction succeeds. The mirror gets
// the same stamp so rollback restores the dated state.
func (s *Store) SetAllHitStartDates(reportUID string, at time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ReportSentenceHit{}).
			Where("report_uid = ? AND start_date IS NULL", reportUID).
			Update("start_date", at).Error; err != nil {
			return err
		}
		return tx.Model(&models.ReportSentenceHitInitial{}).
			Where("report_uid = ? AND start_date IS NULL", reportUID).
			Update("start_date", at).Error
	})
}
