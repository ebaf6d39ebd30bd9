package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"thread/models"
)

// SetReportKeywords replaces the aggressor/victim descriptor rows of a
// report. Values matching a code table keep that table's kind; anything
// else becomes a dynamic keyword.
func (s *Store) SetReportKeywords(reportUID string, aggressors, victims []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_uid = ?", reportUID).
			Delete(&models.ReportKeywordAssociation{}).Error; err != nil {
			return err
		}
		for _, v := range aggressors {
			if err := addAssociation(tx, reportUID, models.RoleAggressor, v); err != nil {
				return err
			}
		}
		for _, v := range victims {
			if err := addAssociation(tx, reportUID, models.RoleVictim, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func addAssociation(tx *gorm.DB, reportUID, role, value string) error {
	kind, err := classifyDescriptor(tx, value)
	if err != nil {
		return err
	}
	if kind == "keyword" {
		kw := models.Keyword{Word: value}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&kw).Error; err != nil {
			return err
		}
	}
	return tx.Create(&models.ReportKeywordAssociation{
		ReportUID: reportUID,
		Role:      role,
		Kind:      kind,
		Value:     value,
	}).Error
}

func classifyDescriptor(tx *gorm.DB, value string) (string, error) {
	var n int64
	if err := tx.Model(&models.Country{}).
		Where("code = ? OR name = ?", value, value).Count(&n).Error; err != nil {
		return "", err
	}
	if n > 0 {
		return "country", nil
	}
	if err := tx.Model(&models.Region{}).Where("name = ?", value).Count(&n).Error; err != nil {
		return "", err
	}
	if n > 0 {
		return "region", nil
	}
	if err := tx.Model(&models.Category{}).Where("name = ?", value).Count(&n).Error; err != nil {
		return "", err
	}
	if n > 0 {
		return "category", nil
	}
	return "keyword", nil
}

func (s *Store) ReportKeywords(reportUID string) ([]models.ReportKeywordAssociation, error) {
	var out []models.ReportKeywordAssociation
	err := s.db.Where("report_uid = ?", reportUID).Find(&out).Error
	return out, err
}
