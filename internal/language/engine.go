// Package language assigns a business category and a language decision to
// each spot, layered on top of reconciled records. The engine is
// deterministic and re-runnable: the same (revenue type, spot type,
// language code) triple always produces the same assignment.
package language

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

// Sets holds the fixed layer-1 classification tables.
type Sets struct {
	// AdvertiserSold revenue types require a language when the spot is a
	// commercial placement.
	AdvertiserSold map[string]bool
	// Commercial spot-type codes within advertiser-sold revenue.
	Commercial map[string]bool
	// AlwaysEnglish revenue types are contractually English for any
	// placement type.
	AlwaysEnglish map[string]bool
	// CatchAll revenue types always route to review.
	CatchAll map[string]bool
}

// DefaultSets returns the production classification tables.
func DefaultSets() Sets {
	return Sets{
		AdvertiserSold: map[string]bool{
			"Internal Ad Sales": true,
		},
		Commercial: map[string]bool{
			"COM": true,
			"BNS": true,
		},
		AlwaysEnglish: map[string]bool{
			"Direct Response Sales": true,
			"Paid Programming":      true,
			"Branded Content":       true,
		},
		CatchAll: map[string]bool{
			"Other": true,
		},
	}
}

// Assignment method tags.
const (
	methodRevenueDefault = "revenue_default_english"
	methodCodeMapped     = "code_mapped"
	methodUndetermined   = "undetermined_code"
	methodMissingCode    = "missing_code_default"
	methodInvalidCode    = "invalid_code"
	methodReviewDefault  = "review_category_default"
)

// Engine is the two-layer classifier.
type Engine struct {
	codes *CodeTable
	sets  Sets
	log   *zap.Logger
}

// NewEngine builds an engine over a code table and classification sets.
func NewEngine(codes *CodeTable, sets Sets) *Engine {
	return &Engine{
		codes: codes,
		sets:  sets,
		log:   zap.L().With(zap.String("component", "language_engine")),
	}
}

// Categorize is layer 1: the revenue-type x spot-type lookup. Any pair not
// covered by a fixed table falls back to review, never to silent
// acceptance.
func (e *Engine) Categorize(revenueType, spotType string) model.BusinessCategory {
	rt := strings.TrimSpace(revenueType)
	st := strings.ToUpper(strings.TrimSpace(spotType))

	switch {
	case e.sets.AlwaysEnglish[rt]:
		return model.CategoryDefaultEnglish
	case e.sets.AdvertiserSold[rt] && e.sets.Commercial[st]:
		return model.CategoryLanguageRequired
	default:
		// Advertiser-sold non-commercial, catch-all, and everything
		// uncovered all need human disposition.
		return model.CategoryReviewRequired
	}
}

// Assign is layer 2: the language decision for one spot, driven by the
// layer-1 category and the stored language code. assignedAt is supplied by
// the caller so re-runs can be compared field-for-field.
func (e *Engine) Assign(spotID, revenueType, spotType, languageCode string, assignedAt time.Time) model.LanguageAssignment {
	category := e.Categorize(revenueType, spotType)
	code := strings.ToUpper(strings.TrimSpace(languageCode))

	a := model.LanguageAssignment{
		SpotID:     spotID,
		Category:   category,
		AssignedAt: assignedAt,
	}

	switch category {
	case model.CategoryDefaultEnglish:
		english := e.codes.English()
		a.LanguageCode = english.Code
		a.LanguageName = english.Name
		a.Status = model.StatusDetermined
		a.Confidence = 1.0
		a.Method = methodRevenueDefault

	case model.CategoryLanguageRequired:
		switch {
		case code == "":
			english := e.codes.English()
			a.LanguageCode = english.Code
			a.LanguageName = english.Name
			a.Status = model.StatusDefault
			a.Confidence = 0.5
			a.Method = methodMissingCode
			a.Notes = "no language code on spot, defaulted to English"

		case e.codes.IsUndetermined(code):
			a.LanguageCode = code
			a.Status = model.StatusUndetermined
			a.Confidence = 0.0
			a.Method = methodUndetermined
			a.RequiresReview = true

		default:
			if lang, ok := e.codes.Lookup(code); ok {
				a.LanguageCode = lang.Code
				a.LanguageName = lang.Name
				a.Status = model.StatusDetermined
				a.Confidence = 1.0
				a.Method = methodCodeMapped
			} else {
				a.LanguageCode = code
				a.Status = model.StatusInvalid
				a.Confidence = 0.0
				a.Method = methodInvalidCode
				a.RequiresReview = true
				a.Notes = "language code not in recognized table"
			}
		}

	default: // review_required
		english := e.codes.English()
		a.LanguageCode = english.Code
		a.LanguageName = english.Name
		a.Status = model.StatusDefault
		a.Confidence = 0.5
		a.Method = methodReviewDefault
		a.RequiresReview = true
	}

	return a
}
