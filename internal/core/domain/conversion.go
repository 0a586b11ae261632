package domain

import "time"

// ConversionState tracks a conversion in the conversion ledger.
type ConversionState string

const (
	ConversionPending   ConversionState = "pending"
	ConversionCompleted ConversionState = "completed"
)

// ConversionRecord outlives the inbox item it describes. A pending record whose inbox item
// still exists marks a conversion that needs reconciliation.
type ConversionRecord struct {
	InboxID              string          `json:"inbox_id"`
	InboxClaimID         string          `json:"inbox_claim_id"`
	ClaimID              string          `json:"claim_id"`
	ExternalClaimID      string          `json:"external_claim_id"`
	State                ConversionState `json:"state"`
	DocumentsTransferred int             `json:"documents_transferred"`
	StartedAt            time.Time       `json:"started_at"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	// PreviousStatus and PreviousProcessedAt hold the inbox item's state before the conversion.
	PreviousStatus      InboxStatus `json:"previous_status,omitempty"`
	PreviousProcessedAt *time.Time  `json:"previous_processed_at,omitempty"`
}

// Matches reports whether ref names the inbox item of r.
func (r ConversionRecord) Matches(ref InboxRef) bool {
	switch ref.Kind {
	case ByExternalID:
		return r.InboxClaimID == ref.Value
	case ByInternalID:
		return r.InboxID == ref.Value
	default:
		return r.InboxClaimID == ref.Value || r.InboxID == ref.Value
	}
}
