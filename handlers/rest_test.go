package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"thread/classifier"
	"thread/database"
	"thread/models"
	"thread/pipeline"
	"thread/review"
)

type harness struct {
	store  *database.Store
	router *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := zap.NewNop().Sugar()
	store := database.NewStore(db, log)

	splitter, err := pipeline.NewSplitter(0)
	if err != nil {
		t.Fatalf("NewSplitter: %v", err)
	}
	lib := classifier.NewLibrary(t.TempDir(), log)
	svc := pipeline.NewService(store, lib, splitter, pipeline.NewFetcher(),
		pipeline.NewQueue(0), 1, log)

	h := New(store, svc, review.NewReviewer(store, log), review.NewLifecycle(store), log)
	router := gin.New()
	h.Register(router)
	return &harness{store: store, router: router}
}

func (hn *harness) post(t *testing.T, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/rest", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	hn.router.ServeHTTP(w, req)
	return w
}

func (hn *harness) decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// seedSentence stores a reviewable report with one sentence and returns
// the sentence uid.
func (hn *harness) seedSentence(t *testing.T, text string) string {
	t.Helper()
	r := &models.Report{Title: "seed", URL: "http://example.com/seed",
		CurrentStatus: models.StatusNeedsReview}
	if err := hn.store.InsertReport(r); err != nil {
		t.Fatalf("InsertReport: %v", err)
	}
	sen := &models.ReportSentence{ReportUID: r.UID, SenIndex: 0, Text: text}
	if err := hn.store.InsertSentenceMirrored(sen); err != nil {
		t.Fatalf("InsertSentenceMirrored: %v", err)
	}
	return sen.UID
}

func TestHealth(t *testing.T) {
	hn := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	hn.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := hn.decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestRest_UnknownIndex(t *testing.T) {
	hn := newHarness(t)
	w := hn.post(t, gin.H{"index": "no_such_operation"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRest_MalformedJSON(t *testing.T) {
	hn := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/rest", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	hn.router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := hn.decode(t, w)
	if body["alert_user"] != float64(1) {
		t.Errorf("alert_user missing: %v", body)
	}
}

func TestRest_AddAttack_MissingFields(t *testing.T) {
	hn := newHarness(t)
	w := hn.post(t, gin.H{"index": "add_attack", "sentence_id": "s-1"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := hn.decode(t, w)
	if body["alert_user"] != float64(1) {
		t.Errorf("alert_user missing: %v", body)
	}
}

func TestRest_AddAttack_AppliesMapping(t *testing.T) {
	hn := newHarness(t)
	senUID := hn.seedSentence(t, "the sample drops a scheduled task")
	attack := &models.Attack{UID: "attack--t1053", TID: "T1053", Name: "Scheduled Task"}
	if err := hn.store.InsertAttack(attack); err != nil {
		t.Fatalf("InsertAttack: %v", err)
	}

	w := hn.post(t, gin.H{"index": "add_attack",
		"sentence_id": senUID, "attack_uid": attack.UID})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", w.Code, w.Body.String())
	}

	// Adding the same mapping again is a no-op surfaced as 202.
	w = hn.post(t, gin.H{"index": "add_attack",
		"sentence_id": senUID, "attack_uid": attack.UID})
	if w.Code != http.StatusAccepted {
		t.Errorf("repeat status = %d, want 202", w.Code)
	}
}

func TestRest_RejectAttack_UnknownMappingAccepted(t *testing.T) {
	hn := newHarness(t)
	senUID := hn.seedSentence(t, "no mappings here")

	w := hn.post(t, gin.H{"index": "reject_attack",
		"sentence_id": senUID, "attack_uid": "attack--none"})
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
}

func TestRest_SentenceContext(t *testing.T) {
	hn := newHarness(t)
	senUID := hn.seedSentence(t, "beacons to 203[.]0[.]113[.]9 hourly")
	attack := &models.Attack{UID: "attack--t1071", TID: "T1071", Name: "Application Layer Protocol"}
	if err := hn.store.InsertAttack(attack); err != nil {
		t.Fatalf("InsertAttack: %v", err)
	}
	w := hn.post(t, gin.H{"index": "add_attack",
		"sentence_id": senUID, "attack_uid": attack.UID})
	if w.Code != http.StatusNoContent {
		t.Fatalf("add_attack status = %d", w.Code)
	}

	w = hn.post(t, gin.H{"index": "sentence_context", "sentence_id": senUID})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := hn.decode(t, w)
	hits, ok := body["hits"].([]interface{})
	if !ok || len(hits) != 1 {
		t.Fatalf("hits = %v, want one", body["hits"])
	}
	hit := hits[0].(map[string]interface{})
	if hit["tid"] != "T1071" || hit["confirmed"] != true {
		t.Errorf("hit = %v", hit)
	}
}

func TestRest_SentenceContext_UnknownSentence(t *testing.T) {
	hn := newHarness(t)
	w := hn.post(t, gin.H{"index": "sentence_context", "sentence_id": "missing"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := hn.decode(t, w)
	if body["alert_user"] != float64(1) {
		t.Errorf("alert_user missing: %v", body)
	}
}

func TestRest_IndicatorLifecycle(t *testing.T) {
	hn := newHarness(t)
	senUID := hn.seedSentence(t, "beacons to 203[.]0[.]113[.]9 hourly")

	// Suggestion finds and refangs the defanged address.
	w := hn.post(t, gin.H{"index": "suggest_indicator_of_compromise", "sentence_id": senUID})
	if w.Code != http.StatusOK {
		t.Fatalf("suggest status = %d: %s", w.Code, w.Body.String())
	}
	if body := hn.decode(t, w); body["ioc_text"] != "203.0.113.9" {
		t.Errorf("suggestion = %v", body)
	}

	// Saving a manually entered indicator refangs it first.
	w = hn.post(t, gin.H{"index": "add_indicator_of_compromise",
		"sentence_id": senUID, "ioc_text": "evil[.]example[.]com"})
	if w.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", w.Code, w.Body.String())
	}
	if body := hn.decode(t, w); body["ioc_text"] != "evil.example.com" {
		t.Errorf("saved indicator = %v", body)
	}

	w = hn.post(t, gin.H{"index": "remove_indicator_of_compromise", "sentence_id": senUID})
	if w.Code != http.StatusNoContent {
		t.Errorf("remove status = %d", w.Code)
	}
	// Removing again reports nothing to remove.
	w = hn.post(t, gin.H{"index": "remove_indicator_of_compromise", "sentence_id": senUID})
	if w.Code != http.StatusAccepted {
		t.Errorf("second remove status = %d, want 202", w.Code)
	}
}

func TestRest_AddIndicator_RejectsPrivateAddress(t *testing.T) {
	hn := newHarness(t)
	senUID := hn.seedSentence(t, "internal pivot")

	w := hn.post(t, gin.H{"index": "add_indicator_of_compromise",
		"sentence_id": senUID, "ioc_text": "192[.]168[.]0[.]10"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := hn.decode(t, w)
	if body["alert_user"] != float64(1) {
		t.Errorf("alert_user missing: %v", body)
	}
}

func TestRest_SuggestIndicator_NothingFound(t *testing.T) {
	hn := newHarness(t)
	senUID := hn.seedSentence(t, "the actor moved laterally with stolen credentials")

	w := hn.post(t, gin.H{"index": "suggest_indicator_of_compromise", "sentence_id": senUID})
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
}

func TestRest_MissingTechnique(t *testing.T) {
	hn := newHarness(t)
	if err := hn.store.InsertAttack(&models.Attack{
		UID: "attack--legacy", TID: "T0001", Name: "Legacy", Category: models.CategoryTechnique,
	}); err != nil {
		t.Fatalf("InsertAttack: %v", err)
	}

	w := hn.post(t, gin.H{"index": "missing_technique"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var out []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0]["tid"] != "T0001" {
		t.Errorf("legacy list = %v", out)
	}
}

func TestRest_ExportReport_IncludesIOCsAndKeywords(t *testing.T) {
	hn := newHarness(t)
	senUID := hn.seedSentence(t, "beacons to 203.0.113.9 hourly")
	report, err := hn.store.ReportByTitle("seed")
	if err != nil {
		t.Fatalf("ReportByTitle: %v", err)
	}
	if err := hn.store.UpsertIndicator(report.UID, senUID, "203.0.113.9"); err != nil {
		t.Fatalf("UpsertIndicator: %v", err)
	}
	if err := hn.store.SetReportKeywords(report.UID,
		[]string{"APT-Example"}, []string{"retail sector"}); err != nil {
		t.Fatalf("SetReportKeywords: %v", err)
	}

	w := hn.post(t, gin.H{"index": "export_report", "report_title": "seed"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := hn.decode(t, w)

	iocs, ok := body["iocs"].([]interface{})
	if !ok || len(iocs) != 1 || iocs[0] != "203.0.113.9" {
		t.Errorf("iocs = %v", body["iocs"])
	}
	keywords, ok := body["keywords"].(map[string]interface{})
	if !ok {
		t.Fatalf("keywords = %v", body["keywords"])
	}
	aggressors, _ := keywords["aggressors"].([]interface{})
	victims, _ := keywords["victims"].([]interface{})
	if len(aggressors) != 1 || aggressors[0] != "APT-Example" {
		t.Errorf("aggressors = %v", keywords["aggressors"])
	}
	if len(victims) != 1 || victims[0] != "retail sector" {
		t.Errorf("victims = %v", keywords["victims"])
	}
}

func TestRest_AddRegexPattern(t *testing.T) {
	hn := newHarness(t)
	if err := hn.store.InsertAttack(&models.Attack{
		UID: "attack--creds", TID: "T1003", Name: "OS Credential Dumping",
		Category: models.CategoryTechnique,
	}); err != nil {
		t.Fatalf("InsertAttack: %v", err)
	}

	w := hn.post(t, gin.H{"index": "add_regex_pattern",
		"attack_uid": "attack--creds", "pattern": "mimikatz"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	patterns, err := hn.store.RegexPatterns()
	if err != nil {
		t.Fatalf("RegexPatterns: %v", err)
	}
	if len(patterns) != 1 || patterns[0].Pattern != "mimikatz" ||
		patterns[0].AttackUID != "attack--creds" {
		t.Errorf("patterns = %+v", patterns)
	}
}

func TestRest_AddRegexPattern_RejectsBadInput(t *testing.T) {
	hn := newHarness(t)
	if err := hn.store.InsertAttack(&models.Attack{
		UID: "attack--old", TID: "T0002", Name: "Retired", Inactive: true,
	}); err != nil {
		t.Fatalf("InsertAttack: %v", err)
	}

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing pattern", gin.H{"index": "add_regex_pattern", "attack_uid": "attack--old"}},
		{"unknown attack", gin.H{"index": "add_regex_pattern",
			"attack_uid": "attack--nope", "pattern": "xyz"}},
		{"inactive attack", gin.H{"index": "add_regex_pattern",
			"attack_uid": "attack--old", "pattern": "xyz"}},
		{"broken regex", gin.H{"index": "add_regex_pattern",
			"attack_uid": "attack--old", "pattern": "(unclosed"}},
	}
	for _, tc := range cases {
		w := hn.post(t, tc.body)
		body := hn.decode(t, w)
		if w.Code != http.StatusInternalServerError || body["alert_user"] != float64(1) {
			t.Errorf("%s: status = %d body = %v", tc.name, w.Code, body)
		}
	}

	patterns, err := hn.store.RegexPatterns()
	if err != nil {
		t.Fatalf("RegexPatterns: %v", err)
	}
	if len(patterns) != 0 {
		t.Errorf("patterns = %+v, want none", patterns)
	}
}

func TestRest_AddSimilarWord(t *testing.T) {
	hn := newHarness(t)
	if err := hn.store.InsertAttack(&models.Attack{
		UID: "attack--phish", TID: "T1566", Name: "Phishing",
		Category: models.CategoryTechnique,
	}); err != nil {
		t.Fatalf("InsertAttack: %v", err)
	}

	for i := 0; i < 2; i++ {
		w := hn.post(t, gin.H{"index": "add_similar_word",
			"attack_uid": "attack--phish", "word": " Spearphish "})
		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
	}

	words, err := hn.store.SimilarWords("attack--phish")
	if err != nil {
		t.Fatalf("SimilarWords: %v", err)
	}
	if len(words) != 1 || words[0] != "spearphish" {
		t.Errorf("words = %v, want [spearphish]", words)
	}
}
