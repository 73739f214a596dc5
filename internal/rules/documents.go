package rules

import (
	"time"

	"github.com/estudio-sgt/sgt-api/internal/models"
)

// DocumentSummary aggregates a document checklist.
type DocumentSummary struct {
	Total             int   `json:"total"`
	Required          int   `json:"required"`
	Optional          int   `json:"optional"`
	Pending           int   `json:"pending"`
	UnderReview       int   `json:"under_review"`
	Approved          int   `json:"approved"`
	Rejected          int   `json:"rejected"`
	Expired           int   `json:"expired"`
	ApprovedRequired  int   `json:"approved_required"`
	CompletionPercent int   `json:"completion_percent"`
	Stage             Stage `json:"stage"`
	Complete          bool  `json:"complete"`
}

// NormalizeDocumentState folds unknown states into pending so that every
// document lands in exactly one approval bucket.
func NormalizeDocumentState(s models.DocumentState) models.DocumentState {
	if s.Valid() {
		return s
	}
	return models.DocumentStatePending
}

// IsExpired reports whether the document carries an expiration date
// strictly before today. The approval state does not matter.
func IsExpired(doc models.Document, today time.Time) bool {
	if doc.ExpiresAt == nil {
		return false
	}
	return calendarDate(*doc.ExpiresAt).Before(calendarDate(today))
}

// SummarizeDocuments partitions docs by required flag and approval state
// and derives the checklist completion.
func SummarizeDocuments(docs []models.Document, today time.Time) DocumentSummary {
	var sum DocumentSummary
	sum.Total = len(docs)
	for _, doc := range docs {
		state := NormalizeDocumentState(doc.State)
		if doc.Required {
			sum.Required++
			if state == models.DocumentStateApproved {
				sum.ApprovedRequired++
			}
		} else {
			sum.Optional++
		}
		switch state {
		case models.DocumentStateUnderReview:
			sum.UnderReview++
		case models.DocumentStateApproved:
			sum.Approved++
		case models.DocumentStateRejected:
			sum.Rejected++
		default:
			sum.Pending++
		}
		if IsExpired(doc, today) {
			sum.Expired++
		}
	}
	sum.CompletionPercent = Percentage(sum.ApprovedRequired, sum.Required)
	sum.Stage = StageFor(sum.CompletionPercent)
	sum.Complete = sum.Required == 0 || sum.ApprovedRequired == sum.Required
	return sum
}
