package database

import (
	"fmt"

	"gorm.io/gorm"

	"thread/models"
)

// Rollback restores a report to its post-analysis state from the
// initial-state mirrors, in one transaction. The report is parked in the
// hidden status for the duration so concurrent listings skip it; on any
// failure it returns to in_review with the error flag set.
func (s *Store) Rollback(reportUID string) error {
	s.invalidateStatus(reportUID)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Report{}).Where("uid = ?", reportUID).
			Update("current_status", models.StatusHidden).Error; err != nil {
			return err
		}

		// Clear live rows. Hits, IoCs, and derived feedback go with the
		// sentences they belong to.
		var sentenceIDs []string
		if err := tx.Model(&models.ReportSentence{}).
			Where("report_uid = ?", reportUID).
			Pluck("uid", &sentenceIDs).Error; err != nil {
			return err
		}
		if len(sentenceIDs) > 0 {
			for _, m := range []interface{}{
				&models.TruePositive{}, &models.FalseNegative{},
				&models.FalsePositive{}, &models.TrueNegative{},
			} {
				if err := tx.Where("sentence_id IN ?", sentenceIDs).Delete(m).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("sentence_id IN ?", sentenceIDs).
				Delete(&models.IndicatorOfCompromise{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("report_uid = ?", reportUID).
			Delete(&models.ReportSentenceHit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("report_uid = ?", reportUID).
			Delete(&models.ReportSentence{}).Error; err != nil {
			return err
		}
		if err := tx.Where("report_uid = ?", reportUID).
			Delete(&models.OriginalHTML{}).Error; err != nil {
			return err
		}

		// Copy mirror rows back.
		copies := []struct{ live, initial, cols string }{
			{
				"report_sentences", "report_sentences_initial",
				"uid, report_uid, sen_index, text, html, found_status",
			},
			{
				"report_sentence_hits", "report_sentence_hits_initial",
				"uid, sentence_id, attack_uid, attack_tid, attack_technique_name, " +
					"report_uid, initial_model_match, active_hit, confirmed, origin, " +
					"start_date, end_date",
			},
			{
				"original_html", "original_html_initial",
				"uid, report_uid, elem_index, tag, text, found_status",
			},
		}
		for _, c := range copies {
			stmt := fmt.Sprintf(
				"INSERT INTO %s (%s) SELECT %s FROM %s WHERE report_uid = ?",
				c.live, c.cols, c.cols, c.initial)
			if err := tx.Exec(stmt, reportUID).Error; err != nil {
				return fmt.Errorf("restore %s: %w", c.live, err)
			}
		}

		return tx.Model(&models.Report{}).Where("uid = ?", reportUID).
			Updates(map[string]interface{}{
				"current_status": models.StatusNeedsReview,
				"error":          false,
			}).Error
	})
	if err != nil {
		restoreErr := s.db.Model(&models.Report{}).Where("uid = ?", reportUID).
			Updates(map[string]interface{}{
				"current_status": models.StatusInReview,
				"error":          true,
			}).Error
		if restoreErr != nil {
			s.log.Errorw("rollback recovery failed", "report", reportUID, "error", restoreErr)
		}
		return fmt.Errorf("rollback report %s: %w", reportUID, err)
	}
	return nil
}
