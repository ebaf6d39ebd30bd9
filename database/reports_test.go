package database

import (
	"testing"

	"thread/models"
)

func insertTitled(t *testing.T, s *Store, title string) *models.Report {
	t.Helper()
	unique, err := s.UniqueTitle(title)
	if err != nil {
		t.Fatalf("UniqueTitle(%q) error: %v", title, err)
	}
	r := &models.Report{
		Title:         unique,
		URL:           "http://example.com/" + unique,
		CurrentStatus: models.StatusQueue,
	}
	if err := s.InsertReport(r); err != nil {
		t.Fatalf("InsertReport(%q) error: %v", unique, err)
	}
	return r
}

func TestUniqueTitle_SuffixesAndGapFills(t *testing.T) {
	s := newTestStore(t)

	first := insertTitled(t, s, "Blitzball: A Guide")
	if first.Title != "Blitzball: A Guide" {
		t.Errorf("first title = %q", first.Title)
	}

	second := insertTitled(t, s, "Blitzball: A Guide")
	if second.Title != "Blitzball: A Guide_1" {
		t.Errorf("second title = %q, want _1 suffix", second.Title)
	}

	third := insertTitled(t, s, "Blitzball: A Guide")
	if third.Title != "Blitzball: A Guide_2" {
		t.Errorf("third title = %q, want _2 suffix", third.Title)
	}

	// Deleting _1 must make its suffix reusable.
	if err := s.DeleteReport(second.UID); err != nil {
		t.Fatalf("DeleteReport() error: %v", err)
	}
	fourth := insertTitled(t, s, "Blitzball: A Guide")
	if fourth.Title != "Blitzball: A Guide_1" {
		t.Errorf("gap-fill title = %q, want _1 suffix reused", fourth.Title)
	}
}

func TestUniqueTitle_EscapesLikeWildcards(t *testing.T) {
	s := newTestStore(t)
	insertTitled(t, s, "100% real")
	got, err := s.UniqueTitle("100% real")
	if err != nil {
		t.Fatalf("UniqueTitle() error: %v", err)
	}
	if got != "100% real_1" {
		t.Errorf("UniqueTitle() = %q, want literal-percent handling", got)
	}
}

func TestReportStatus_CacheInvalidatedOnWrite(t *testing.T) {
	s := newTestStore(t)
	r := insertTitled(t, s, "cached")

	st, err := s.ReportStatus(r.UID)
	if err != nil {
		t.Fatalf("ReportStatus() error: %v", err)
	}
	if st != models.StatusQueue {
		t.Errorf("status = %s, want queue", st)
	}

	if err := s.SetReportStatus(r.UID, models.StatusNeedsReview); err != nil {
		t.Fatalf("SetReportStatus() error: %v", err)
	}
	st, err = s.ReportStatus(r.UID)
	if err != nil {
		t.Fatalf("ReportStatus() error: %v", err)
	}
	if st != models.StatusNeedsReview {
		t.Errorf("status after write = %s, want needs_review", st)
	}
}

func TestDeleteReport_RemovesOwnedRows(t *testing.T) {
	s := newTestStore(t)
	r := insertTitled(t, s, "owned")

	sen := &models.ReportSentence{ReportUID: r.UID, SenIndex: 0, Text: "body"}
	if err := s.InsertSentenceMirrored(sen); err != nil {
		t.Fatalf("InsertSentenceMirrored() error: %v", err)
	}
	hit := &models.ReportSentenceHit{
		SentenceID: sen.UID, AttackUID: "attack--x", ReportUID: r.UID,
		InitialModelMatch: true, ActiveHit: true,
	}
	if err := s.InsertHitMirrored(hit); err != nil {
		t.Fatalf("InsertHitMirrored() error: %v", err)
	}

	if err := s.DeleteReport(r.UID); err != nil {
		t.Fatalf("DeleteReport() error: %v", err)
	}
	for _, m := range []interface{}{
		&models.ReportSentence{}, &models.ReportSentenceInitial{},
		&models.ReportSentenceHit{}, &models.ReportSentenceHitInitial{},
	} {
		var n int64
		if err := s.DB().Model(m).Where("report_uid = ?", r.UID).Count(&n).Error; err != nil {
			t.Fatalf("count error: %v", err)
		}
		if n != 0 {
			t.Errorf("%T rows survived delete: %d", m, n)
		}
	}
}
