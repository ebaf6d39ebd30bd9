package database

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"thread/models"
)

var ErrIndicatorNotFound = errors.New("indicator not found")

func (s *Store) IndicatorForSentence(sentenceID string) (*models.IndicatorOfCompromise, error) {
	var ioc models.IndicatorOfCompromise
	err := s.db.Where("sentence_id = ?", sentenceID).First(&ioc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ioc, nil
}

func (s *Store) IndicatorsForReport(reportUID string) ([]models.IndicatorOfCompromise, error) {
	var out []models.IndicatorOfCompromise
	err := s.db.Where("report_uid = ?", reportUID).Find(&out).Error
	return out, err
}

func (s *Store) UpsertIndicator(reportUID, sentenceID, refanged string) error {
	existing, err := s.IndicatorForSentence(sentenceID)
	if err != nil {
		return err
	}
	if existing != nil {
		return s.db.Model(&models.IndicatorOfCompromise{}).
			Where("uid = ?", existing.UID).
			Update("refanged_text", refanged).Error
	}
	return s.db.Create(&models.IndicatorOfCompromise{
		UID:          uuid.NewString(),
		ReportUID:    reportUID,
		SentenceID:   sentenceID,
		RefangedText: refanged,
	}).Error
}

func (s *Store) DeleteIndicator(sentenceID string) error {
	res := s.db.Where("sentence_id = ?", sentenceID).
		Delete(&models.IndicatorOfCompromise{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrIndicatorNotFound
	}
	return nil
}
