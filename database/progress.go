package database

import (
	"gorm.io/gorm/clause"

	"thread/models"
)

func (s *Store) SetQueueProgress(reportUID string, sentenceCount int) error {
	row := models.ReportSentenceQueueProgress{
		ReportUID:     reportUID,
		SentenceCount: sentenceCount,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "report_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"sentence_count"}),
	}).Create(&row).Error
}

func (s *Store) ClearQueueProgress(reportUID string) error {
	return s.db.Where("report_uid = ?", reportUID).
		Delete(&models.ReportSentenceQueueProgress{}).Error
}

func (s *Store) QueueProgress() ([]models.ReportSentenceQueueProgress, error) {
	var out []models.ReportSentenceQueueProgress
	err := s.db.Find(&out).Error
	return out, err
}
