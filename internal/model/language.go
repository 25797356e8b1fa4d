package model

import "time"

// BusinessCategory is the layer-1 outcome of the language categorization
// engine, derived from the revenue-type x spot-type pair.
type BusinessCategory string

const (
	// CategoryLanguageRequired marks advertiser-sold commercial spots whose
	// stored language code must be honored.
	CategoryLanguageRequired BusinessCategory = "language_required"
	// CategoryReviewRequired marks pairs that need human disposition before
	// the assignment is trusted in aggregate reporting.
	CategoryReviewRequired BusinessCategory = "review_required"
	// CategoryDefaultEnglish marks revenue types that are contractually
	// always English regardless of spot type.
	CategoryDefaultEnglish BusinessCategory = "default_english"
)

// AssignmentStatus is the layer-2 language decision status.
type AssignmentStatus string

const (
	StatusDetermined   AssignmentStatus = "determined"
	StatusUndetermined AssignmentStatus = "undetermined"
	StatusDefault      AssignmentStatus = "default"
	StatusInvalid      AssignmentStatus = "invalid"
)

// LanguageAssignment is the final language decision for one spot. The
// engine overwrites the row each time it runs; there is exactly one per
// spot at any time. Status and confidence are jointly constrained:
// determined=1.0, default=0.5, undetermined/invalid=0.0.
type LanguageAssignment struct {
	SpotID         string           `json:"spot_id"`
	LanguageCode   string           `json:"language_code"`
	LanguageName   string           `json:"language_name,omitempty"`
	Category       BusinessCategory `json:"category"`
	Status         AssignmentStatus `json:"status"`
	Confidence     float64          `json:"confidence"`
	Method         string           `json:"method"`
	RequiresReview bool             `json:"requires_review"`
	Notes          string           `json:"notes,omitempty"`
	AssignedAt     time.Time        `json:"assigned_at"`
}
