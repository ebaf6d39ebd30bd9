package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"thread/database"
	"thread/models"
	"thread/pipeline"
)

func (h *Handler) insertReport(c *gin.Context, req restRequest) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.URL) == "" {
		h.userError(c, "title and url are required")
		return
	}
	result, err := h.svc.Submit(ownerToken(c), []pipeline.Submission{
		{Title: req.Title, URL: req.URL},
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if result.Queued == 0 {
		h.userError(c, result.Info())
		return
	}
	c.JSON(http.StatusOK, gin.H{"info": result.Info()})
}

func (h *Handler) insertCSV(c *gin.Context, req restRequest) {
	if req.File == "" {
		h.userError(c, "no CSV file supplied")
		return
	}
	items, err := pipeline.ParseCSV(strings.NewReader(req.File))
	if err != nil {
		h.userError(c, err.Error())
		return
	}
	result, err := h.svc.Submit(ownerToken(c), items)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"info": result.Info(), "queued": result.Queued})
}

func (h *Handler) reportByTitle(c *gin.Context, title string) (*models.Report, bool) {
	report, err := h.store.ReportByTitle(title)
	if err != nil {
		if err == database.ErrReportNotFound {
			h.userError(c, "report "+title+" does not exist")
		} else {
			h.fail(c, err)
		}
		return nil, false
	}
	return report, true
}

func (h *Handler) setStatus(c *gin.Context, req restRequest) {
	report, ok := h.reportByTitle(c, req.ReportTitle)
	if !ok {
		return
	}
	target := models.ReportStatus(req.SetStatus)
	switch target {
	case models.StatusQueue, models.StatusNeedsReview, models.StatusInReview, models.StatusCompleted:
	default:
		h.userError(c, "unknown status "+req.SetStatus)
		return
	}
	if err := h.lifecycle.SetStatus(report, target); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteReport(c *gin.Context, req restRequest) {
	report, ok := h.reportByTitle(c, req.ReportTitle)
	if !ok {
		return
	}
	if err := h.lifecycle.Delete(report); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) rollbackReport(c *gin.Context, req restRequest) {
	report, ok := h.reportByTitle(c, req.ReportTitle)
	if !ok {
		return
	}
	if err := h.lifecycle.Rollback(report); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) updateReportDates(c *gin.Context, req restRequest) {
	report, ok := h.reportByTitle(c, req.ReportTitle)
	if !ok {
		return
	}
	written, err := parseDate(req.DateOf)
	if err != nil {
		h.userError(c, "date_of is not a valid date")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		h.userError(c, "start_date is not a valid date")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		h.userError(c, "end_date is not a valid date")
		return
	}
	if err := h.lifecycle.UpdateReportDates(report, written, start, end,
		req.SameDates, req.ApplyToAll); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) updateAttackTime(c *gin.Context, req restRequest) {
	report, ok := h.reportByTitle(c, req.ReportTitle)
	if !ok {
		return
	}
	if len(req.MappingList) == 0 {
		h.userError(c, "mapping_list is empty")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		h.userError(c, "start_date is not a valid date")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		h.userError(c, "end_date is not a valid date")
		return
	}
	if err := h.lifecycle.UpdateAttackTime(report, req.MappingList, start, end,
		req.ApplyToAll); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setReportKeywords(c *gin.Context, req restRequest) {
	report, ok := h.reportByTitle(c, req.ReportTitle)
	if !ok {
		return
	}
	if err := h.store.SetReportKeywords(report.UID, req.Aggressors, req.Victims); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) recentReports(c *gin.Context, _ restRequest) {
	reports, err := h.store.RecentReports(50, ownerToken(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// exportReport returns the confirmed mappings of a report as
// (tid, technique name, sentence text) triples, plus the saved
// indicators and keyword associations.
func (h *Handler) exportReport(c *gin.Context, req restRequest) {
	report, ok := h.reportByTitle(c, req.ReportTitle)
	if !ok {
		return
	}
	sentences, err := h.store.SentencesForReport(report.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	texts := make(map[string]string, len(sentences))
	for _, s := range sentences {
		texts[s.UID] = s.Text
	}
	hits, err := h.store.HitsForReport(report.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	var mappings []gin.H
	for _, hit := range hits {
		if !hit.ActiveHit || !hit.Confirmed {
			continue
		}
		mappings = append(mappings, gin.H{
			"tid":        hit.AttackTID,
			"name":       strings.TrimSuffix(hit.AttackTechniqueName, models.RegexNameSuffix),
			"sentence":   texts[hit.SentenceID],
			"start_date": hit.StartDate,
			"end_date":   hit.EndDate,
		})
	}
	indicators, err := h.store.IndicatorsForReport(report.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	iocs := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		iocs = append(iocs, ind.RefangedText)
	}
	associations, err := h.store.ReportKeywords(report.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	keywords := gin.H{"aggressors": []string{}, "victims": []string{}}
	for _, assoc := range associations {
		key := assoc.Role + "s"
		if list, ok := keywords[key].([]string); ok {
			keywords[key] = append(list, assoc.Value)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"title":    report.Title,
		"url":      report.URL,
		"mappings": mappings,
		"iocs":     iocs,
		"keywords": keywords,
	})
}

func (h *Handler) queueStatus(c *gin.Context, _ restRequest) {
	progress, err := h.store.QueueProgress()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"qsize":    h.svc.Queue().QSize(),
		"urls":     h.svc.Queue().OwnerURLs(ownerToken(c)),
		"progress": progress,
	})
}
