package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thread/database"
	"thread/pipeline"
	"thread/review"
)

// Handler serves the JSON-RPC style surface: one POST endpoint carrying
// an index field that names the operation.
type Handler struct {
	store     *database.Store
	svc       *pipeline.Service
	reviewer  *review.Reviewer
	lifecycle *review.Lifecycle
	log       *zap.SugaredLogger
}

func New(store *database.Store, svc *pipeline.Service, reviewer *review.Reviewer,
	lifecycle *review.Lifecycle, log *zap.SugaredLogger) *Handler {
	return &Handler{
		store:     store,
		svc:       svc,
		reviewer:  reviewer,
		lifecycle: lifecycle,
		log:       log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/rest", h.Rest)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "queue": h.svc.Queue().QSize()})
}

// restRequest is the superset of fields every index may carry.
type restRequest struct {
	Index       string   `json:"index"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	File        string   `json:"file"`
	ReportTitle string   `json:"report_title"`
	SetStatus   string   `json:"set_status"`
	SentenceID  string   `json:"sentence_id"`
	AttackUID   string   `json:"attack_uid"`
	DateOf      string   `json:"date_of"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	SameDates   bool     `json:"same_dates"`
	ApplyToAll  bool     `json:"apply_to_all"`
	MappingList []string `json:"mapping_list"`
	Aggressors  []string `json:"aggressors"`
	Victims     []string `json:"victims"`
	IOCText     string   `json:"ioc_text"`
	Pattern     string   `json:"pattern"`
	Word        string   `json:"word"`
}

// ownerToken scopes a submission to a private queue; absence means the
// public queue. Session handling proper lives outside this service.
func ownerToken(c *gin.Context) *string {
	if tok := c.GetHeader("X-Thread-Token"); tok != "" {
		return &tok
	}
	return nil
}

func (h *Handler) Rest(c *gin.Context) {
	var req restRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "request body is not valid JSON",
			"alert_user": 1,
		})
		return
	}

	switch req.Index {
	case "insert_report":
		h.insertReport(c, req)
	case "insert_csv":
		h.insertCSV(c, req)
	case "set_status":
		h.setStatus(c, req)
	case "delete_report":
		h.deleteReport(c, req)
	case "rollback_report":
		h.rollbackReport(c, req)
	case "remove_sentence":
		h.removeSentence(c, req)
	case "add_attack":
		h.addAttack(c, req)
	case "reject_attack":
		h.rejectAttack(c, req)
	case "ignore_attack":
		h.ignoreAttack(c, req)
	case "sentence_context":
		h.sentenceContext(c, req)
	case "confirmed_attacks":
		h.confirmedAttacks(c, req)
	case "update_report_dates":
		h.updateReportDates(c, req)
	case "update_attack_time":
		h.updateAttackTime(c, req)
	case "set_report_keywords":
		h.setReportKeywords(c, req)
	case "suggest_indicator_of_compromise":
		h.suggestIndicator(c, req)
	case "suggest_and_save_ioc":
		h.suggestAndSaveIndicator(c, req)
	case "add_indicator_of_compromise":
		h.addIndicator(c, req)
	case "update_indicator_of_compromise":
		h.updateIndicator(c, req)
	case "remove_indicator_of_compromise":
		h.removeIndicator(c, req)
	case "recent_reports":
		h.recentReports(c, req)
	case "export_report":
		h.exportReport(c, req)
	case "add_regex_pattern":
		h.addRegexPattern(c, req)
	case "add_similar_word":
		h.addSimilarWord(c, req)
	case "missing_technique":
		h.missingTechnique(c, req)
	case "queue_status":
		h.queueStatus(c, req)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown index " + req.Index})
	}
}

// fail maps errors to the response conventions: state-machine errors and
// validation failures carry alert_user so the UI surfaces them; stack
// traces never leave the process.
func (h *Handler) fail(c *gin.Context, err error) {
	var stateErr *review.StateError
	if errors.As(err, &stateErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      stateErr.Error(),
			"alert_user": 1,
		})
		return
	}
	h.log.Errorw("request failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (h *Handler) userError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "alert_user": 1})
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
