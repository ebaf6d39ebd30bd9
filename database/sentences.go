package database

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"thread/models"
)

var ErrSentenceNotFound = errors.New("sentence not found")

func (s *Store) SentenceByUID(uid string) (*models.ReportSentence, error) {
	var sen models.ReportSentence
	if err := s.db.Where("uid = ?", uid).First(&sen).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSentenceNotFound
		}
		return nil, err
	}
	return &sen, nil
}

func (s *Store) SentencesForReport(reportUID string) ([]models.ReportSentence, error) {
	var out []models.ReportSentence
	err := s.db.Where("report_uid = ?", reportUID).
		Order("sen_index").Find(&out).Error
	return out, err
}

// InsertSentenceMirrored writes a sentence to the live table and the
// initial-state mirror in one transaction.
func (s *Store) InsertSentenceMirrored(sen *models.ReportSentence) error {
	if sen.UID == "" {
		sen.UID = uuid.NewString()
	}
	sen.Text = truncate(sen.Text, models.MaxSentenceTextLen)
	sen.HTML = truncate(sen.HTML, models.MaxSentenceHTMLLen)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sen).Error; err != nil {
			return fmt.Errorf("insert sentence: %w", err)
		}
		mirror := models.ReportSentenceInitial(*sen)
		return tx.Create(&mirror).Error
	})
}

// InsertOriginalHTMLMirrored writes an original html element and its
// mirror, preserving elem_index.
func (s *Store) InsertOriginalHTMLMirrored(elem *models.OriginalHTML) error {
	if elem.UID == "" {
		elem.UID = uuid.NewString()
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(elem).Error; err != nil {
			return fmt.Errorf("insert original html: %w", err)
		}
		mirror := models.OriginalHTMLInitial(*elem)
		return tx.Create(&mirror).Error
	})
}

// DeleteSentence removes one sentence (or image element) together with its
// hits, IoCs, and derived feedback rows. Falls back to original_html when
// the uid names an image row.
func (s *Store) DeleteSentence(uid string) error {
	var sen models.ReportSentence
	err := s.db.Where("uid = ?", uid).First(&sen).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		res := s.db.Where("uid = ?", uid).Delete(&models.OriginalHTML{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSentenceNotFound
		}
		return nil
	}
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&models.TruePositive{}, &models.FalseNegative{},
			&models.FalsePositive{}, &models.TrueNegative{},
		} {
			if err := tx.Where("sentence_id = ?", uid).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("sentence_id = ?", uid).
			Delete(&models.ReportSentenceHit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sentence_id = ?", uid).
			Delete(&models.IndicatorOfCompromise{}).Error; err != nil {
			return err
		}
		return tx.Where("uid = ?", uid).Delete(&models.ReportSentence{}).Error
	})
}

// RecomputeFoundStatus re-derives found_status from the presence of any
// active hit on the sentence.
func (s *Store) RecomputeFoundStatus(tx *gorm.DB, sentenceID string) error {
	var active int64
	if err := tx.Model(&models.ReportSentenceHit{}).
		Where("sentence_id = ? AND active_hit = ?", sentenceID, true).
		Count(&active).Error; err != nil {
		return err
	}
	return tx.Model(&models.ReportSentence{}).Where("uid = ?", sentenceID).
		Update("found_status", active > 0).Error
}

// PurgePartialRows discards everything an interrupted analysis may have
// written for the report so it can restart from scratch.
func (s *Store) PurgePartialRows(reportUID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return deleteOwnedRows(tx, reportUID)
	})
}

// truncate caps text at max bytes without splitting a multi-byte rune.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
