package review

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"thread/database"
	"thread/models"
)

// Outcomes of a state-machine event.
const (
	OutcomeApplied = "applied"
	OutcomeIgnored = "ignored" // no-op; surfaced as 202
)

// Mapping states of a (sentence, attack) pair.
type MappingState string

const (
	StateNone      MappingState = "none"
	StatePredicted MappingState = "predicted"
	StateConfirmed MappingState = "confirmed"
	StateRejected  MappingState = "rejected"
)

// StateOf derives the mapping state from the hit row's flags.
func StateOf(hit *models.ReportSentenceHit) MappingState {
	switch {
	case hit == nil:
		return StateNone
	case hit.ActiveHit && hit.Confirmed:
		return StateConfirmed
	case hit.ActiveHit:
		return StatePredicted
	default:
		return StateRejected
	}
}

// Reviewer applies confirm/reject/ignore events and keeps the four
// feedback tables consistent with the hit table. Every event's writes
// run in one transaction, with the status advance applied last.
type Reviewer struct {
	store *database.Store
	log   *zap.SugaredLogger
}

func NewReviewer(store *database.Store, log *zap.SugaredLogger) *Reviewer {
	return &Reviewer{store: store, log: log}
}

// editable loads the sentence and its report and enforces the
// review-status gate shared by every transition.
func (rv *Reviewer) editable(sentenceID string) (*models.ReportSentence, *models.Report, error) {
	sentence, err := rv.store.SentenceByUID(sentenceID)
	if err != nil {
		if err == database.ErrSentenceNotFound {
			return nil, nil, sentenceErr(1, "sentence %s does not exist", sentenceID)
		}
		return nil, nil, err
	}
	report, err := rv.store.ReportByUID(sentence.ReportUID)
	if err != nil {
		return nil, nil, err
	}
	switch report.CurrentStatus {
	case models.StatusNeedsReview, models.StatusInReview:
		return sentence, report, nil
	default:
		return nil, nil, statusErr(1, "report %q is %s and cannot be edited",
			report.Title, report.CurrentStatus)
	}
}

// AddAttack confirms a mapping. From NONE a manual hit is created and the
// model's miss is recorded as a false negative; from PREDICTED the hit is
// confirmed and becomes a true positive; from CONFIRMED it is a no-op.
func (rv *Reviewer) AddAttack(sentenceID, attackUID string) (string, error) {
	sentence, report, err := rv.editable(sentenceID)
	if err != nil {
		return "", err
	}
	attack, err := rv.store.AttackByUID(attackUID)
	if err != nil {
		if err == database.ErrAttackNotFound {
			return "", attackErr(1, "attack %s does not exist", attackUID)
		}
		return "", err
	}
	if attack.Inactive {
		return "", attackErr(2, "%s is no longer part of the framework and cannot be mapped", attack.Name)
	}

	hit, err := rv.store.HitBySentenceAttack(sentenceID, attackUID)
	if err != nil {
		return "", err
	}
	if StateOf(hit) == StateConfirmed {
		return OutcomeIgnored, nil
	}

	err = rv.store.DB().Transaction(func(tx *gorm.DB) error {
		if hit == nil {
			if err := tx.Create(&models.ReportSentenceHit{
				UID:                 uuid.NewString(),
				SentenceID:          sentenceID,
				AttackUID:           attack.UID,
				AttackTID:           attack.TID,
				AttackTechniqueName: attack.Name,
				ReportUID:           sentence.ReportUID,
				InitialModelMatch:   false,
				ActiveHit:           true,
				Confirmed:           true,
				Origin:              models.OriginManual,
			}).Error; err != nil {
				return err
			}
			if err := database.AddFalseNegative(tx, attack.UID, sentenceID, sentence.Text); err != nil {
				return err
			}
		} else {
			if err := tx.Model(&models.ReportSentenceHit{}).
				Where("uid = ?", hit.UID).
				Updates(map[string]interface{}{
					"active_hit": true,
					"confirmed":  true,
				}).Error; err != nil {
				return err
			}
			if err := database.DeleteFalsePositive(tx, attack.UID, sentenceID); err != nil {
				return err
			}
			if err := database.AddTruePositive(tx, attack.UID, sentenceID,
				sentence.Text, models.SourceReviewer); err != nil {
				return err
			}
		}
		if err := rv.store.RecomputeFoundStatus(tx, sentenceID); err != nil {
			return err
		}
		// Status advance last so observers never see it paired with a
		// half-written mapping.
		if report.CurrentStatus == models.StatusNeedsReview {
			return tx.Model(&models.Report{}).Where("uid = ?", report.UID).
				Update("current_status", models.StatusInReview).Error
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	rv.store.InvalidateStatus(report.UID)
	return OutcomeApplied, nil
}

// RejectAttack rejects a mapping. A model prediction is kept inactive and
// recorded as a false positive; a manual mapping is deleted outright.
func (rv *Reviewer) RejectAttack(sentenceID, attackUID string) (string, error) {
	sentence, report, err := rv.editable(sentenceID)
	if err != nil {
		return "", err
	}
	hit, err := rv.store.HitBySentenceAttack(sentenceID, attackUID)
	if err != nil {
		return "", err
	}
	if hit == nil || StateOf(hit) == StateRejected {
		return OutcomeIgnored, nil
	}

	err = rv.store.DB().Transaction(func(tx *gorm.DB) error {
		return rv.rejectInTx(tx, hit, sentence)
	})
	if err != nil {
		return "", err
	}
	rv.store.InvalidateStatus(report.UID)
	return OutcomeApplied, nil
}

func (rv *Reviewer) rejectInTx(tx *gorm.DB, hit *models.ReportSentenceHit,
	sentence *models.ReportSentence) error {
	if hit.InitialModelMatch {
		if err := tx.Model(&models.ReportSentenceHit{}).
			Where("uid = ?", hit.UID).
			Updates(map[string]interface{}{
				"active_hit": false,
				"confirmed":  false,
			}).Error; err != nil {
			return err
		}
		if err := database.DeleteTruePositive(tx, hit.AttackUID, hit.SentenceID); err != nil {
			return err
		}
		if err := database.DeleteFalseNegative(tx, hit.AttackUID, hit.SentenceID); err != nil {
			return err
		}
		if err := database.AddFalsePositive(tx, hit.AttackUID, hit.SentenceID, sentence.Text); err != nil {
			return err
		}
	} else {
		// A hit the model never made cannot be a false positive; the
		// mapping and its derived feedback just go away.
		if err := tx.Where("uid = ?", hit.UID).
			Delete(&models.ReportSentenceHit{}).Error; err != nil {
			return err
		}
		if err := database.DeleteTruePositive(tx, hit.AttackUID, hit.SentenceID); err != nil {
			return err
		}
		if err := database.DeleteFalseNegative(tx, hit.AttackUID, hit.SentenceID); err != nil {
			return err
		}
	}
	return rv.store.RecomputeFoundStatus(tx, hit.SentenceID)
}

// IgnoreAttack applies reject semantics and additionally purges the pair
// from all four feedback tables so it never trains anything.
func (rv *Reviewer) IgnoreAttack(sentenceID, attackUID string) (string, error) {
	sentence, report, err := rv.editable(sentenceID)
	if err != nil {
		return "", err
	}
	hit, err := rv.store.HitBySentenceAttack(sentenceID, attackUID)
	if err != nil {
		return "", err
	}

	err = rv.store.DB().Transaction(func(tx *gorm.DB) error {
		if hit != nil {
			if err := rv.rejectInTx(tx, hit, sentence); err != nil {
				return err
			}
		}
		return database.PurgeFeedback(tx, attackUID, sentenceID)
	})
	if err != nil {
		return "", err
	}
	rv.store.InvalidateStatus(report.UID)
	return OutcomeApplied, nil
}
