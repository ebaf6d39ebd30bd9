package review

import (
	"errors"
	"testing"
	"time"

	"thread/models"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func (f *fixture) reload(t *testing.T) *models.Report {
	t.Helper()
	r, err := f.store.ReportByUID(f.report.UID)
	if err != nil {
		t.Fatalf("ReportByUID: %v", err)
	}
	return r
}

func TestSetStatus_AllowedTransitions(t *testing.T) {
	tests := []struct {
		from models.ReportStatus
		to   models.ReportStatus
		ok   bool
	}{
		{models.StatusQueue, models.StatusNeedsReview, true},
		{models.StatusQueue, models.StatusCompleted, false},
		{models.StatusNeedsReview, models.StatusInReview, true},
		{models.StatusInReview, models.StatusNeedsReview, true},
		{models.StatusCompleted, models.StatusInReview, false},
		{models.StatusHidden, models.StatusNeedsReview, false},
	}
	for _, tt := range tests {
		if got := transitionAllowed(tt.from, tt.to); got != tt.ok {
			t.Errorf("transitionAllowed(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestSetStatus_CompletionRequiresWrittenDate(t *testing.T) {
	f := newFixture(t)
	lc := NewLifecycle(f.store)

	err := lc.SetStatus(f.report, models.StatusCompleted)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("error = %v, want StateError", err)
	}
}

func TestSetStatus_CompletionBlockedByUnconfirmedHit(t *testing.T) {
	f := newFixture(t)
	f.predict(t, f.drain)
	if err := f.store.UpdateReportDates(f.report.UID, date("2026-01-05"), nil, nil); err != nil {
		t.Fatalf("UpdateReportDates: %v", err)
	}
	lc := NewLifecycle(f.store)

	err := lc.SetStatus(f.reload(t), models.StatusCompleted)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("error = %v, want StateError for unconfirmed mapping", err)
	}
}

func TestSetStatus_Completes(t *testing.T) {
	f := newFixture(t)
	f.predict(t, f.drain)
	if _, err := f.reviewer.AddAttack(f.sentence.UID, f.drain.UID); err != nil {
		t.Fatalf("AddAttack: %v", err)
	}
	if err := f.store.UpdateReportDates(f.report.UID, date("2026-01-05"), nil, nil); err != nil {
		t.Fatalf("UpdateReportDates: %v", err)
	}
	hits, err := f.store.HitsForReport(f.report.UID)
	if err != nil || len(hits) != 1 {
		t.Fatalf("HitsForReport = %v, %v", hits, err)
	}
	lc := NewLifecycle(f.store)
	if err := lc.UpdateAttackTime(f.reload(t), []string{hits[0].UID},
		date("2026-01-01"), date("2026-01-02"), false); err != nil {
		t.Fatalf("UpdateAttackTime: %v", err)
	}

	var completed *models.Report
	lc.OnComplete = func(r *models.Report) { completed = r }
	if err := lc.SetStatus(f.reload(t), models.StatusCompleted); err != nil {
		t.Fatalf("SetStatus() error: %v", err)
	}
	if completed == nil {
		t.Error("OnComplete hook not invoked")
	}
	r := f.reload(t)
	if r.CurrentStatus != models.StatusCompleted {
		t.Errorf("status = %s, want completed", r.CurrentStatus)
	}
	if r.ExpiresOn == nil || !r.ExpiresOn.After(time.Now()) {
		t.Errorf("expiry = %v, want a future time", r.ExpiresOn)
	}
}

func TestDelete_QueuedReportBlocked(t *testing.T) {
	f := newFixture(t)
	lc := NewLifecycle(f.store)
	if err := f.store.DB().Model(&models.Report{}).
		Where("uid = ?", f.report.UID).
		Update("current_status", models.StatusQueue).Error; err != nil {
		t.Fatalf("set queue: %v", err)
	}
	f.store.InvalidateStatus(f.report.UID)

	err := lc.Delete(f.reload(t))
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("error = %v, want StateError", err)
	}

	// An errored queued report is stuck, so deleting it is allowed.
	if err := f.store.SetReportError(f.report.UID, true); err != nil {
		t.Fatalf("SetReportError: %v", err)
	}
	if err := lc.Delete(f.reload(t)); err != nil {
		t.Errorf("Delete() of errored queued report: %v", err)
	}
}

func TestRollback_OnlyInReview(t *testing.T) {
	f := newFixture(t)
	lc := NewLifecycle(f.store)

	err := lc.Rollback(f.report) // still needs_review
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("error = %v, want StateError", err)
	}
}

func TestUpdateReportDates_SameAndApplyToAll(t *testing.T) {
	f := newFixture(t)
	f.predict(t, f.drain)
	lc := NewLifecycle(f.store)

	start := date("2026-02-01")
	if err := lc.UpdateReportDates(f.report, date("2026-02-10"), start, nil, true, true); err != nil {
		t.Fatalf("UpdateReportDates() error: %v", err)
	}

	r := f.reload(t)
	if r.StartDate == nil || r.EndDate == nil || !r.EndDate.Equal(*r.StartDate) {
		t.Errorf("report range = %v..%v, want mirrored dates", r.StartDate, r.EndDate)
	}
	hits, err := f.store.HitsForReport(f.report.UID)
	if err != nil {
		t.Fatalf("HitsForReport: %v", err)
	}
	for _, hit := range hits {
		if hit.StartDate == nil || !hit.StartDate.Equal(*start) {
			t.Errorf("hit %s start = %v, want %v", hit.UID, hit.StartDate, start)
		}
	}
}

func TestUpdateReportDates_RejectsInvertedRange(t *testing.T) {
	f := newFixture(t)
	lc := NewLifecycle(f.store)

	err := lc.UpdateReportDates(f.report, nil, date("2026-03-02"), date("2026-03-01"), false, false)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("error = %v, want StateError", err)
	}
}

func TestUpdateAttackTime_OutsideReportRange(t *testing.T) {
	f := newFixture(t)
	f.predict(t, f.drain)
	lc := NewLifecycle(f.store)
	if err := f.store.UpdateReportDates(f.report.UID, nil,
		date("2026-04-10"), date("2026-04-20")); err != nil {
		t.Fatalf("UpdateReportDates: %v", err)
	}
	hits, err := f.store.HitsForReport(f.report.UID)
	if err != nil || len(hits) != 1 {
		t.Fatalf("HitsForReport = %v, %v", hits, err)
	}

	err = lc.UpdateAttackTime(f.reload(t), []string{hits[0].UID},
		date("2026-04-01"), date("2026-04-15"), false)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("error = %v, want StateError for out-of-range date", err)
	}

	// With expansion the report range grows to cover the mapping.
	if err := lc.UpdateAttackTime(f.reload(t), []string{hits[0].UID},
		date("2026-04-01"), date("2026-04-15"), true); err != nil {
		t.Fatalf("UpdateAttackTime(expand) error: %v", err)
	}
	r := f.reload(t)
	if r.StartDate == nil || !r.StartDate.Equal(*date("2026-04-01")) {
		t.Errorf("report start = %v, want 2026-04-01", r.StartDate)
	}
	if r.EndDate == nil || !r.EndDate.Equal(*date("2026-04-20")) {
		t.Errorf("report end = %v, want 2026-04-20 unchanged", r.EndDate)
	}
}

func TestUpdateAttackTime_PartialBoundConsistency(t *testing.T) {
	f := newFixture(t)
	f.predict(t, f.drain)
	lc := NewLifecycle(f.store)
	hits, err := f.store.HitsForReport(f.report.UID)
	if err != nil || len(hits) != 1 {
		t.Fatalf("HitsForReport = %v, %v", hits, err)
	}
	if err := lc.UpdateAttackTime(f.report, []string{hits[0].UID},
		date("2026-05-10"), date("2026-05-20"), false); err != nil {
		t.Fatalf("UpdateAttackTime: %v", err)
	}

	// A lone end date before the saved start must be rejected.
	err = lc.UpdateAttackTime(f.report, []string{hits[0].UID},
		nil, date("2026-05-01"), false)
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("error = %v, want StateError for inverted result", err)
	}
}
