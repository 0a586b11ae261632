package domain

import "time"

// InboxReceived is published after an inbound email became an inbox item.
type InboxReceived struct {
	InboxID    string    `json:"inbox_id"`
	ReceivedAt time.Time `json:"received_at"`
}

// ClaimConverted is published after an inbox item was converted into a claim.
type ClaimConverted struct {
	InboxID              string    `json:"inbox_id"`
	ClaimID              string    `json:"claim_id"`
	ExternalClaimID      string    `json:"external_claim_id"`
	DocumentsTransferred int       `json:"documents_transferred"`
	ConvertedAt          time.Time `json:"converted_at"`
}

// InboundEmail is a message delivered by the mail provider webhook.
type InboundEmail struct {
	Sender      string            `json:"sender"`
	Recipient   string            `json:"recipient"`
	Subject     string            `json:"subject"`
	BodyPlain   string            `json:"body_plain"`
	MessageID   string            `json:"message_id"`
	Timestamp   int64             `json:"timestamp"`
	Attachments []EmailAttachment `json:"attachments"`
}

type EmailAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content-type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// IntakeResult describes the inbox item created for an inbound email.
type IntakeResult struct {
	InboxID             string   `json:"inbox_id"`
	InboxClaimID        string   `json:"inbox_claim_id"`
	PolicyholderID      string   `json:"policyholder_id"`
	AttachmentsRecorded []string `json:"attachments_processed"`
}
