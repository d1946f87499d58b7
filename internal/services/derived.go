package services

import (
	"fmt"
	"math"
	"time"

	"github.com/ashmitsharp/receivables-api/internal/models"
)

const day = 24 * time.Hour

// DaysOpen returns the whole days an invoice has been outstanding as of now.
// Received invoices and invoices without an issue date are 0. Partial days
// round up and the result never goes below 0.
func DaysOpen(inv models.Invoice, now time.Time) int {
	if inv.IsReceived() {
		return 0
	}
	if inv.IssueDate == nil {
		return 0
	}

	elapsed := now.Sub(*inv.IssueDate)
	days := int(math.Ceil(float64(elapsed) / float64(day)))
	if days < 0 {
		return 0
	}
	return days
}

// AgingBucketFor classifies days outstanding. Boundaries belong to the lower bucket.
func AgingBucketFor(daysOpen int) string {
	switch {
	case daysOpen <= 30:
		return models.Bucket0To30
	case daysOpen <= 60:
		return models.Bucket31To60
	case daysOpen <= 90:
		return models.Bucket61To90
	default:
		return models.Bucket90Plus
	}
}

// IssueMonth formats the issue date as YYYY-MM, or "" without a date
func IssueMonth(issueDate *time.Time) string {
	if issueDate == nil {
		return ""
	}
	return fmt.Sprintf("%d-%02d", issueDate.Year(), int(issueDate.Month()))
}

// applyDerivedFields fills the computed columns once, at load time
func applyDerivedFields(inv *models.Invoice, now time.Time) {
	inv.DaysOpen = DaysOpen(*inv, now)
	inv.AgingBucket = AgingBucketFor(inv.DaysOpen)
	inv.IssueMonth = IssueMonth(inv.IssueDate)
}
