package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"thread/classifier"
	"thread/database"
	"thread/models"
	"thread/review"
)

func (h *Handler) addAttack(c *gin.Context, req restRequest) {
	h.applyMapping(c, req, h.reviewer.AddAttack)
}

func (h *Handler) rejectAttack(c *gin.Context, req restRequest) {
	h.applyMapping(c, req, h.reviewer.RejectAttack)
}

func (h *Handler) ignoreAttack(c *gin.Context, req restRequest) {
	h.applyMapping(c, req, h.reviewer.IgnoreAttack)
}

func (h *Handler) applyMapping(c *gin.Context, req restRequest,
	event func(sentenceID, attackUID string) (string, error)) {
	if req.SentenceID == "" || req.AttackUID == "" {
		h.userError(c, "sentence_id and attack_uid are required")
		return
	}
	outcome, err := event(req.SentenceID, req.AttackUID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if outcome == review.OutcomeIgnored {
		c.Status(http.StatusAccepted)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeSentence(c *gin.Context, req restRequest) {
	if req.SentenceID == "" {
		h.userError(c, "sentence_id is required")
		return
	}
	if err := h.store.DeleteSentence(req.SentenceID); err != nil {
		if err == database.ErrSentenceNotFound {
			h.userError(c, "sentence "+req.SentenceID+" does not exist")
			return
		}
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// sentenceContext returns the active hits and indicator for one sentence.
// Inactive techniques keep their historical hits but are filtered here.
func (h *Handler) sentenceContext(c *gin.Context, req restRequest) {
	sentence, err := h.store.SentenceByUID(req.SentenceID)
	if err != nil {
		if err == database.ErrSentenceNotFound {
			h.userError(c, "sentence "+req.SentenceID+" does not exist")
			return
		}
		h.fail(c, err)
		return
	}
	hits, err := h.store.ActiveHits(sentence.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	var visible []gin.H
	for _, hit := range hits {
		attack, err := h.store.AttackByUID(hit.AttackUID)
		if err == nil && attack.Inactive {
			continue
		}
		visible = append(visible, gin.H{
			"uid":       hit.UID,
			"tid":       hit.AttackTID,
			"name":      hit.AttackTechniqueName,
			"confirmed": hit.Confirmed,
			"origin":    hit.Origin,
		})
	}
	indicator, err := h.store.IndicatorForSentence(sentence.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{"text": sentence.Text, "hits": visible}
	if indicator != nil {
		resp["ioc"] = indicator.RefangedText
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) confirmedAttacks(c *gin.Context, req restRequest) {
	hits, err := h.store.ConfirmedHits(req.SentenceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(hits))
	for _, hit := range hits {
		out = append(out, gin.H{
			"uid":  hit.UID,
			"tid":  hit.AttackTID,
			"name": hit.AttackTechniqueName,
		})
	}
	c.JSON(http.StatusOK, out)
}

// activeAttack loads an attack and rejects missing or retired entries.
func (h *Handler) activeAttack(c *gin.Context, uid string) *models.Attack {
	attack, err := h.store.AttackByUID(uid)
	if err != nil {
		if err == database.ErrAttackNotFound {
			h.userError(c, "attack "+uid+" does not exist")
			return nil
		}
		h.fail(c, err)
		return nil
	}
	if attack.Inactive {
		h.userError(c, attack.Name+" is no longer part of the framework")
		return nil
	}
	return attack
}

// addRegexPattern registers a literal detector for a technique. It takes
// effect on the next report analysed because patterns are reloaded per run.
func (h *Handler) addRegexPattern(c *gin.Context, req restRequest) {
	pattern := strings.TrimSpace(req.Pattern)
	if req.AttackUID == "" || pattern == "" {
		h.userError(c, "attack_uid and pattern are required")
		return
	}
	if _, err := regexp.Compile(`(?i)\b` + pattern + `\b`); err != nil {
		h.userError(c, "pattern does not compile: "+err.Error())
		return
	}
	attack := h.activeAttack(c, req.AttackUID)
	if attack == nil {
		return
	}
	if err := h.store.AddRegexPattern(attack.UID, pattern); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addSimilarWord(c *gin.Context, req restRequest) {
	word := strings.ToLower(strings.TrimSpace(req.Word))
	if req.AttackUID == "" || word == "" {
		h.userError(c, "attack_uid and word are required")
		return
	}
	attack := h.activeAttack(c, req.AttackUID)
	if attack == nil {
		return
	}
	if err := h.store.AddSimilarWord(attack.UID, word); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// missingTechnique lists active techniques that have no trained model and
// rely on regex patterns alone.
func (h *Handler) missingTechnique(c *gin.Context, _ restRequest) {
	attacks, err := h.store.ActiveTechniques()
	if err != nil {
		h.fail(c, err)
		return
	}
	var legacy []gin.H
	for _, a := range attacks {
		n, err := h.store.CuratedExampleCount(a.UID)
		if err != nil {
			h.fail(c, err)
			return
		}
		if n <= classifier.MinExampleUses {
			legacy = append(legacy, gin.H{"tid": a.TID, "name": a.Name, "examples": n})
		}
	}
	c.JSON(http.StatusOK, legacy)
}
