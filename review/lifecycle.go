package review

import (
	"time"

	"gorm.io/gorm"

	"thread/database"
	"thread/models"
)

// completedExpiry is how long a finished report stays before cleanup may
// reclaim it.
const completedExpiry = 24 * time.Hour

// Lifecycle drives report status changes and date annotation.
type Lifecycle struct {
	store *database.Store

	// OnComplete, when set, runs after a report reaches completed.
	OnComplete func(report *models.Report)
}

func NewLifecycle(store *database.Store) *Lifecycle {
	return &Lifecycle{store: store}
}

// allowed transitions form a DAG with one back-edge (rollback).
var allowed = map[models.ReportStatus][]models.ReportStatus{
	models.StatusQueue:       {models.StatusNeedsReview},
	models.StatusNeedsReview: {models.StatusInReview, models.StatusCompleted},
	models.StatusInReview:    {models.StatusNeedsReview, models.StatusCompleted},
}

// SetStatus moves the report along the lifecycle. Completion is gated on
// a written date and zero unconfirmed or undated active mappings.
func (lc *Lifecycle) SetStatus(report *models.Report, target models.ReportStatus) error {
	if !transitionAllowed(report.CurrentStatus, target) {
		return statusErr(2, "report %q cannot move from %s to %s",
			report.Title, report.CurrentStatus, target)
	}
	if target == models.StatusCompleted {
		if report.DateWritten == nil {
			return statusErr(3, "report %q needs a written date before completion", report.Title)
		}
		blocking, err := lc.store.UnconfirmedOrUndatedCount(report.UID)
		if err != nil {
			return err
		}
		if blocking > 0 {
			return statusErr(4, "report %q has %d unconfirmed or undated mapping(s)",
				report.Title, blocking)
		}
	}
	if err := lc.store.SetReportStatus(report.UID, target); err != nil {
		return err
	}
	if target == models.StatusCompleted {
		if err := lc.store.SetReportExpiry(report.UID, time.Now().Add(completedExpiry)); err != nil {
			return err
		}
		if lc.OnComplete != nil {
			lc.OnComplete(report)
		}
	}
	return nil
}

func transitionAllowed(from, to models.ReportStatus) bool {
	for _, t := range allowed[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Delete removes a report. A non-errored queued report is still being
// worked on and cannot go.
func (lc *Lifecycle) Delete(report *models.Report) error {
	if report.CurrentStatus == models.StatusQueue && !report.Error {
		return statusErr(5, "report %q is queued for analysis and cannot be deleted", report.Title)
	}
	return lc.store.DeleteReport(report.UID)
}

// Rollback restores the report to its post-analysis state. Only an
// in-review report has edits to roll back.
func (lc *Lifecycle) Rollback(report *models.Report) error {
	if report.CurrentStatus != models.StatusInReview {
		return statusErr(6, "report %q is %s; only in-review reports can be rolled back",
			report.Title, report.CurrentStatus)
	}
	return lc.store.Rollback(report.UID)
}

// UpdateReportDates sets the written date and the report's own activity
// range. With sameDates the end mirrors the start; with applyToAll the
// range is stamped onto every mapping of the report.
func (lc *Lifecycle) UpdateReportDates(report *models.Report, written, start, end *time.Time,
	sameDates, applyToAll bool) error {
	switch report.CurrentStatus {
	case models.StatusNeedsReview, models.StatusInReview:
	default:
		return statusErr(7, "report %q is %s and cannot be edited",
			report.Title, report.CurrentStatus)
	}
	if sameDates && start != nil {
		end = start
	}
	if start != nil && end != nil && end.Before(*start) {
		return statusErr(8, "start date %s is after end date %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if err := lc.store.UpdateReportDates(report.UID, written, start, end); err != nil {
		return err
	}
	if applyToAll && (start != nil || end != nil) {
		hits, err := lc.store.HitsForReport(report.UID)
		if err != nil {
			return err
		}
		return lc.store.DB().Transaction(func(tx *gorm.DB) error {
			for _, hit := range hits {
				if err := lc.store.SetHitDates(tx, hit.UID, start, end); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return nil
}

// UpdateAttackTime annotates the given mappings with a date range. The
// range must sit inside the report's own range when that is set; with
// expandReport the report range grows to fit instead of rejecting.
func (lc *Lifecycle) UpdateAttackTime(report *models.Report, hitUIDs []string,
	start, end *time.Time, expandReport bool) error {
	switch report.CurrentStatus {
	case models.StatusNeedsReview, models.StatusInReview:
	default:
		return statusErr(9, "report %q is %s and cannot be edited",
			report.Title, report.CurrentStatus)
	}
	if start == nil && end == nil {
		return statusErr(10, "no dates supplied")
	}
	if start != nil && end != nil && end.Before(*start) {
		return statusErr(11, "start date %s is after end date %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	var newStart, newEnd *time.Time
	if report.StartDate != nil && start != nil && start.Before(*report.StartDate) {
		if !expandReport {
			return statusErr(12, "date is before the report's own start date %s",
				report.StartDate.Format("2006-01-02"))
		}
		newStart = start
	}
	if report.EndDate != nil && end != nil && end.After(*report.EndDate) {
		if !expandReport {
			return statusErr(13, "date is after the report's own end date %s",
				report.EndDate.Format("2006-01-02"))
		}
		newEnd = end
	}

	return lc.store.DB().Transaction(func(tx *gorm.DB) error {
		for _, uid := range hitUIDs {
			// Partial updates must stay consistent with the saved bound.
			var hit models.ReportSentenceHit
			if err := tx.Where("uid = ?", uid).First(&hit).Error; err != nil {
				return statusErr(14, "mapping %s does not exist", uid)
			}
			effStart, effEnd := start, end
			if effStart == nil {
				effStart = hit.StartDate
			}
			if effEnd == nil {
				effEnd = hit.EndDate
			}
			if effStart != nil && effEnd != nil && effEnd.Before(*effStart) {
				return statusErr(15, "resulting range for mapping %s is inverted", uid)
			}
			if err := lc.store.SetHitDates(tx, uid, start, end); err != nil {
				return err
			}
		}
		if newStart != nil || newEnd != nil {
			updates := map[string]interface{}{}
			if newStart != nil {
				updates["start_date"] = newStart
			}
			if newEnd != nil {
				updates["end_date"] = newEnd
			}
			return tx.Model(&models.Report{}).Where("uid = ?", report.UID).
				Updates(updates).Error
		}
		return nil
	})
}
