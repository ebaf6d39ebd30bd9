package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"thread/database"
	"thread/ioc"
	"thread/models"
)

func (h *Handler) sentenceForIndicator(c *gin.Context, sentenceID string) (*models.ReportSentence, bool) {
	sentence, err := h.store.SentenceByUID(sentenceID)
	if err != nil {
		if err == database.ErrSentenceNotFound {
			h.userError(c, "sentence "+sentenceID+" does not exist")
		} else {
			h.fail(c, err)
		}
		return nil, false
	}
	return sentence, true
}

func (h *Handler) suggestIndicator(c *gin.Context, req restRequest) {
	sentence, ok := h.sentenceForIndicator(c, req.SentenceID)
	if !ok {
		return
	}
	suggestion := ioc.Suggest(sentence.Text)
	if suggestion == "" {
		c.Status(http.StatusAccepted)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ioc_text": suggestion})
}

func (h *Handler) suggestAndSaveIndicator(c *gin.Context, req restRequest) {
	sentence, ok := h.sentenceForIndicator(c, req.SentenceID)
	if !ok {
		return
	}
	suggestion := ioc.Suggest(sentence.Text)
	if suggestion == "" {
		c.Status(http.StatusAccepted)
		return
	}
	if err := ioc.Validate(suggestion); err != nil {
		h.userError(c, err.Error())
		return
	}
	if err := h.store.UpsertIndicator(sentence.ReportUID, sentence.UID, suggestion); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ioc_text": suggestion})
}

func (h *Handler) addIndicator(c *gin.Context, req restRequest) {
	h.saveIndicator(c, req)
}

func (h *Handler) updateIndicator(c *gin.Context, req restRequest) {
	h.saveIndicator(c, req)
}

func (h *Handler) saveIndicator(c *gin.Context, req restRequest) {
	sentence, ok := h.sentenceForIndicator(c, req.SentenceID)
	if !ok {
		return
	}
	refanged := ioc.Refang(req.IOCText)
	if err := ioc.Validate(refanged); err != nil {
		h.userError(c, err.Error())
		return
	}
	if err := h.store.UpsertIndicator(sentence.ReportUID, sentence.UID, refanged); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ioc_text": refanged})
}

func (h *Handler) removeIndicator(c *gin.Context, req restRequest) {
	if err := h.store.DeleteIndicator(req.SentenceID); err != nil {
		if err == database.ErrIndicatorNotFound {
			c.Status(http.StatusAccepted)
			return
		}
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
