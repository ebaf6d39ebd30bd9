package database

import (
	"strings"
	"testing"
	"unicode/utf8"

	"thread/models"
)

// A sentence just over the byte cap must be cut on a rune boundary, not
// in the middle of a multi-byte character.
func TestInsertSentenceMirrored_TruncatesOnRuneBoundary(t *testing.T) {
	s := newTestStore(t)
	r := &models.Report{Title: "truncation", URL: "http://example.com/long",
		CurrentStatus: models.StatusQueue}
	if err := s.InsertReport(r); err != nil {
		t.Fatalf("InsertReport: %v", err)
	}

	// 799 ASCII bytes followed by a three-byte rune straddling the cap.
	text := strings.Repeat("a", models.MaxSentenceTextLen-1) + "€€"
	sen := &models.ReportSentence{ReportUID: r.UID, SenIndex: 0, Text: text}
	if err := s.InsertSentenceMirrored(sen); err != nil {
		t.Fatalf("InsertSentenceMirrored: %v", err)
	}

	got, err := s.SentenceByUID(sen.UID)
	if err != nil {
		t.Fatalf("SentenceByUID: %v", err)
	}
	if len(got.Text) > models.MaxSentenceTextLen {
		t.Errorf("len(text) = %d, want <= %d", len(got.Text), models.MaxSentenceTextLen)
	}
	if !utf8.ValidString(got.Text) {
		t.Errorf("stored text is not valid UTF-8: %q", got.Text[len(got.Text)-8:])
	}
	if want := strings.Repeat("a", models.MaxSentenceTextLen-1); got.Text != want {
		t.Errorf("len(text) = %d, want %d", len(got.Text), len(want))
	}
}

func TestTruncate_ShortTextUnchanged(t *testing.T) {
	if got := truncate("short", 800); got != "short" {
		t.Errorf("truncate = %q, want %q", got, "short")
	}
}
