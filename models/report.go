package models

import "time"

type ReportStatus string

const (
	StatusQueue       ReportStatus = "queue"
	StatusNeedsReview ReportStatus = "needs_review"
	StatusInReview    ReportStatus = "in_review"
	StatusCompleted   ReportStatus = "completed"
	// StatusHidden is transient: only ever set inside the rollback
	// transaction so concurrent listings skip the report.
	StatusHidden ReportStatus = "hidden"
)

// Limits enforced at submit and persist time.
const (
	MaxTitleLen        = 200
	MaxURLLen          = 500
	MaxSentenceTextLen = 800
	MaxSentenceHTMLLen = 900
)

// ReportTechniquesMinimum is the unique-technique floor below which an
// automatically generated report is dropped after analysis.
const ReportTechniquesMinimum = 5

type Report struct {
	UID                    string       `json:"uid" gorm:"primaryKey;column:uid"`
	Title                  string       `json:"title" gorm:"uniqueIndex;size:200"`
	URL                    string       `json:"url" gorm:"size:500"`
	CurrentStatus          ReportStatus `json:"current_status" gorm:"index"`
	Error                  bool         `json:"error"`
	Token                  *string      `json:"token" gorm:"index"`
	AutomaticallyGenerated bool         `json:"automatically_generated"`
	DateWritten            *time.Time   `json:"date_written"`
	StartDate              *time.Time   `json:"start_date"`
	EndDate                *time.Time   `json:"end_date"`
	ExpiresOn              *time.Time   `json:"expires_on"`
	CreatedAt              time.Time    `json:"created_at"`
}

type ReportSentence struct {
	UID         string `json:"uid" gorm:"primaryKey;column:uid"`
	ReportUID   string `json:"report_uid" gorm:"index"`
	SenIndex    int    `json:"sen_index"`
	Text        string `json:"text" gorm:"size:800"`
	HTML        string `json:"html" gorm:"column:html;size:900"`
	FoundStatus bool   `json:"found_status"`
}

// ReportSentenceInitial mirrors report_sentences for rollback.
type ReportSentenceInitial ReportSentence

func (ReportSentenceInitial) TableName() string { return "report_sentences_initial" }

// Hit origins.
const (
	OriginML     = "ml"
	OriginRegex  = "regex"
	OriginManual = "manual"
)

// RegexNameSuffix marks regex-origin hits in the technique name shown to
// reviewers, alongside the dedicated origin column.
const RegexNameSuffix = " (r)"

type ReportSentenceHit struct {
	UID                 string     `json:"uid" gorm:"primaryKey;column:uid"`
	SentenceID          string     `json:"sentence_id" gorm:"index;uniqueIndex:idx_sentence_attack"`
	AttackUID           string     `json:"attack_uid" gorm:"uniqueIndex:idx_sentence_attack"`
	AttackTID           string     `json:"attack_tid" gorm:"column:attack_tid"`
	AttackTechniqueName string     `json:"attack_technique_name"`
	ReportUID           string     `json:"report_uid" gorm:"index"`
	InitialModelMatch   bool       `json:"initial_model_match"`
	ActiveHit           bool       `json:"active_hit"`
	Confirmed           bool       `json:"confirmed"`
	Origin              string     `json:"origin" gorm:"default:ml"`
	StartDate           *time.Time `json:"start_date"`
	EndDate             *time.Time `json:"end_date"`
}

// ReportSentenceHitInitial mirrors report_sentence_hits for rollback. It
// is field-for-field convertible from ReportSentenceHit but declares its
// own index names; index names are global in SQLite, so a shared name
// would fail migration on the second table.
type ReportSentenceHitInitial struct {
	UID                 string     `json:"uid" gorm:"primaryKey;column:uid"`
	SentenceID          string     `json:"sentence_id" gorm:"index;uniqueIndex:idx_sentence_attack_initial"`
	AttackUID           string     `json:"attack_uid" gorm:"uniqueIndex:idx_sentence_attack_initial"`
	AttackTID           string     `json:"attack_tid" gorm:"column:attack_tid"`
	AttackTechniqueName string     `json:"attack_technique_name"`
	ReportUID           string     `json:"report_uid" gorm:"index"`
	InitialModelMatch   bool       `json:"initial_model_match"`
	ActiveHit           bool       `json:"active_hit"`
	Confirmed           bool       `json:"confirmed"`
	Origin              string     `json:"origin" gorm:"default:ml"`
	StartDate           *time.Time `json:"start_date"`
	EndDate             *time.Time `json:"end_date"`
}

func (ReportSentenceHitInitial) TableName() string { return "report_sentence_hits_initial" }

type OriginalHTML struct {
	UID         string `json:"uid" gorm:"primaryKey;column:uid"`
	ReportUID   string `json:"report_uid" gorm:"index"`
	ElemIndex   int    `json:"elem_index"`
	Tag         string `json:"tag"`
	Text        string `json:"text"`
	FoundStatus bool   `json:"found_status"`
}

func (OriginalHTML) TableName() string { return "original_html" }

// OriginalHTMLInitial mirrors original_html for rollback.
type OriginalHTMLInitial OriginalHTML

func (OriginalHTMLInitial) TableName() string { return "original_html_initial" }

// ReportSentenceQueueProgress records how many sentences an in-flight
// analysis produced; cleared when the report reaches needs_review.
type ReportSentenceQueueProgress struct {
	ReportUID     string `json:"report_uid" gorm:"primaryKey"`
	SentenceCount int    `json:"sentence_count"`
}

type IndicatorOfCompromise struct {
	UID          string `json:"uid" gorm:"primaryKey;column:uid"`
	ReportUID    string `json:"report_id" gorm:"index"`
	SentenceID   string `json:"sentence_id" gorm:"index"`
	RefangedText string `json:"refanged_text"`
}

func (IndicatorOfCompromise) TableName() string { return "indicators_of_compromise" }
