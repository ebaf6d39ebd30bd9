package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"thread/models"
)

var ErrReportNotFound = errors.New("report not found")

func (s *Store) InsertReport(r *models.Report) error {
	if r.UID == "" {
		r.UID = uuid.NewString()
	}
	if err := s.db.Create(r).Error; err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	s.cacheStatus(r.UID, r.CurrentStatus)
	return nil
}

func (s *Store) ReportByUID(uid string) (*models.Report, error) {
	var r models.Report
	if err := s.db.Where("uid = ?", uid).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) ReportByTitle(title string) (*models.Report, error) {
	var r models.Report
	if err := s.db.Where("title = ?", title).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &r, nil
}

// UniqueTitle returns title unchanged when free, otherwise title_<n> where
// n is the lowest positive integer not already taken. Deleted suffixes are
// reused, so deleting "t_1" and resubmitting "t" yields "t_1" again.
func (s *Store) UniqueTitle(title string) (string, error) {
	var count int64
	if err := s.db.Model(&models.Report{}).Where("title = ?", title).Count(&count).Error; err != nil {
		return "", err
	}
	if count == 0 {
		return title, nil
	}

	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(title)
	var titles []string
	err := s.db.Model(&models.Report{}).
		Where(`title LIKE ? ESCAPE '\'`, escaped+`\_%`).
		Pluck("title", &titles).Error
	if err != nil {
		return "", err
	}

	taken := make(map[int]bool)
	for _, t := range titles {
		suffix := strings.TrimPrefix(t, title+"_")
		if n, err := strconv.Atoi(suffix); err == nil && n > 0 {
			taken[n] = true
		}
	}
	n := 1
	for taken[n] {
		n++
	}
	return fmt.Sprintf("%s_%d", title, n), nil
}

// ReportStatus serves status reads through the seen-status cache.
func (s *Store) ReportStatus(uid string) (models.ReportStatus, error) {
	s.mu.Lock()
	if st, ok := s.seenStatus[uid]; ok {
		s.mu.Unlock()
		return st, nil
	}
	s.mu.Unlock()

	r, err := s.ReportByUID(uid)
	if err != nil {
		return "", err
	}
	s.cacheStatus(uid, r.CurrentStatus)
	return r.CurrentStatus, nil
}

func (s *Store) SetReportStatus(uid string, status models.ReportStatus) error {
	s.invalidateStatus(uid)
	err := s.db.Model(&models.Report{}).Where("uid = ?", uid).
		Update("current_status", status).Error
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	s.cacheStatus(uid, status)
	return nil
}

func (s *Store) SetReportError(uid string, flag bool) error {
	return s.db.Model(&models.Report{}).Where("uid = ?", uid).
		Update("error", flag).Error
}

func (s *Store) SetReportExpiry(uid string, at time.Time) error {
	return s.db.Model(&models.Report{}).Where("uid = ?", uid).
		Update("expires_on", at).Error
}

// UpdateReportDates persists written/start/end dates. Every update path
// carries a complete WHERE clause on the report uid.
func (s *Store) UpdateReportDates(uid string, written, start, end *time.Time) error {
	updates := map[string]interface{}{}
	if written != nil {
		updates["date_written"] = written
	}
	if start != nil {
		updates["start_date"] = start
	}
	if end != nil {
		updates["end_date"] = end
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.Model(&models.Report{}).Where("uid = ?", uid).
		Updates(updates).Error
}

// DeleteReport removes the report and every owned row: sentences, hits,
// mirrors, original html, IoCs, associations, progress, and the feedback
// rows derived from its sentences.
func (s *Store) DeleteReport(uid string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteOwnedRows(tx, uid); err != nil {
			return err
		}
		return tx.Where("uid = ?", uid).Delete(&models.Report{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	s.invalidateStatus(uid)
	return nil
}

func deleteOwnedRows(tx *gorm.DB, reportUID string) error {
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
	}
	steps := []struct {
		model interface{}
		where string
	}{
		{&models.ReportSentenceHit{}, "report_uid = ?"},
		{&models.ReportSentenceHitInitial{}, "report_uid = ?"},
		{&models.ReportSentence{}, "report_uid = ?"},
		{&models.ReportSentenceInitial{}, "report_uid = ?"},
		{&models.OriginalHTML{}, "report_uid = ?"},
		{&models.OriginalHTMLInitial{}, "report_uid = ?"},
		{&models.IndicatorOfCompromise{}, "report_uid = ?"},
		{&models.ReportKeywordAssociation{}, "report_uid = ?"},
		{&models.ReportSentenceQueueProgress{}, "report_uid = ?"},
	}
	for _, st := range steps {
		if err := tx.Where(st.where, reportUID).Delete(st.model).Error; err != nil {
			return err
		}
	}
	return nil
}

// QueuedReports lists non-errored reports still in the queue state, in
// submission order. Used to rebuild the in-memory queue after a restart.
func (s *Store) QueuedReports() ([]models.Report, error) {
	var out []models.Report
	err := s.db.Where("current_status = ? AND error = ?", models.StatusQueue, false).
		Order("created_at").Find(&out).Error
	return out, err
}

// RecentReports lists reports for the landing surface, newest first,
// skipping hidden ones.
func (s *Store) RecentReports(limit int, token *string) ([]models.Report, error) {
	q := s.db.Where("current_status <> ?", models.StatusHidden)
	if token == nil {
		q = q.Where("token IS NULL")
	} else {
		q = q.Where("token IS NULL OR token = ?", *token)
	}
	var out []models.Report
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}
