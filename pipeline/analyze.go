package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"thread/classifier"
	"thread/models"
)

// Report expiry windows.
const (
	queuedExpiry = 7 * 24 * time.Hour
	reviewExpiry = 7 * 24 * time.Hour
)

// analyze runs the full pipeline for one report. Errors are terminal for
// the report and never propagate past the worker.
func (s *Service) analyze(report *models.Report) {
	defer s.queue.Release(report.Token, report.URL)

	if err := s.runAnalysis(report); err != nil {
		s.log.Errorw("analysis failed", "report", report.Title, "error", err)
		s.failReport(report, err)
	}
}

func (s *Service) runAnalysis(report *models.Report) error {
	elements, article, err := s.fetcher.FetchArticle(report.URL)
	if err != nil {
		return err
	}

	fragments := s.splitter.Split(article)
	if len(fragments) == 0 {
		return fmt.Errorf("tokenizer produced no sentences for %s", report.URL)
	}
	if err := s.store.SetQueueProgress(report.UID, len(fragments)); err != nil {
		return err
	}

	attacks, err := s.store.MLEligibleTechniques(classifier.MinExampleUses)
	if err != nil {
		return err
	}
	regexMatcher, err := NewRegexMatcher(s.store)
	if err != nil {
		return err
	}

	// Classification sees the untruncated text; the 800-char cap applies
	// only at persist time.
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	mlHits := s.lib.Match(attacks, texts)

	for i, frag := range fragments {
		ml := mlHits[i]
		reg := regexMatcher.Match(frag.Text)
		if err := s.persistSentence(report, i, frag, ml, reg); err != nil {
			return err
		}
	}

	for i, elem := range elements {
		if err := s.store.InsertOriginalHTMLMirrored(&models.OriginalHTML{
			ReportUID: report.UID,
			ElemIndex: i,
			Tag:       elem.Tag,
			Text:      elem.Text,
		}); err != nil {
			return err
		}
	}

	if written := ExtractDate(elements, article); DateInRange(written) {
		if err := s.store.UpdateReportDates(report.UID, &written, nil, nil); err != nil {
			return err
		}
		if err := s.store.SetAllHitStartDates(report.UID, written); err != nil {
			return err
		}
	}

	if err := s.store.SetReportStatus(report.UID, models.StatusNeedsReview); err != nil {
		return err
	}
	if err := s.store.SetReportExpiry(report.UID, time.Now().Add(reviewExpiry)); err != nil {
		return err
	}
	if err := s.store.ClearQueueProgress(report.UID); err != nil {
		return err
	}

	if report.AutomaticallyGenerated {
		unique, err := s.store.UniqueTechniqueCount(report.UID)
		if err != nil {
			return err
		}
		if unique < models.ReportTechniquesMinimum {
			s.log.Infow("dropping low-quality generated report",
				"report", report.Title, "techniques", unique)
			return s.store.DeleteReport(report.UID)
		}
	}

	s.log.Infow("analysis complete", "report", report.Title, "sentences", len(fragments))
	return nil
}

// persistSentence writes one sentence plus the union of its ML and regex
// hits, live and mirrored. A technique matched by both keeps its ML
// identity; regex-only matches carry the origin column and the name
// marker reviewers see.
func (s *Service) persistSentence(report *models.Report, index int, frag Fragment,
	ml, reg []classifier.TechniqueRef) error {

	merged := make([]models.ReportSentenceHit, 0, len(ml)+len(reg))
	seen := make(map[string]bool)
	for _, ref := range ml {
		seen[ref.UID] = true
		merged = append(merged, models.ReportSentenceHit{
			AttackUID:           ref.UID,
			AttackTID:           ref.TID,
			AttackTechniqueName: ref.Name,
			Origin:              models.OriginML,
		})
	}
	for _, ref := range reg {
		if seen[ref.UID] {
			continue
		}
		merged = append(merged, models.ReportSentenceHit{
			AttackUID:           ref.UID,
			AttackTID:           ref.TID,
			AttackTechniqueName: ref.Name + models.RegexNameSuffix,
			Origin:              models.OriginRegex,
		})
	}

	sentence := &models.ReportSentence{
		UID:         uuid.NewString(),
		ReportUID:   report.UID,
		SenIndex:    index,
		Text:        frag.Text,
		HTML:        frag.HTML,
		FoundStatus: len(merged) > 0,
	}
	if err := s.store.InsertSentenceMirrored(sentence); err != nil {
		return err
	}

	for i := range merged {
		hit := merged[i]
		hit.SentenceID = sentence.UID
		hit.ReportUID = report.UID
		hit.InitialModelMatch = true
		hit.ActiveHit = true
		hit.Confirmed = false
		if err := s.store.InsertHitMirrored(&hit); err != nil {
			return err
		}
	}
	return nil
}

// failReport marks the report errored and applies the auto-delete rule
// for generated submissions.
func (s *Service) failReport(report *models.Report, cause error) {
	if report.AutomaticallyGenerated {
		if err := s.store.DeleteReport(report.UID); err != nil {
			s.log.Errorw("failed to drop errored generated report",
				"report", report.Title, "error", err)
		}
	} else if err := s.store.SetReportError(report.UID, true); err != nil {
		s.log.Errorw("failed to flag report error", "report", report.Title, "error", err)
	}
	if s.OnError != nil {
		s.OnError(report, cause)
	}
}
