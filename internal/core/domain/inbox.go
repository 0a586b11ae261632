package domain

import (
	"fmt"
	"strings"
	"time"
)

type InboxStatus string

const (
	InboxNew        InboxStatus = "new"
	InboxProcessing InboxStatus = "processing"
	InboxConverted  InboxStatus = "converted"
	InboxRejected   InboxStatus = "rejected"
	InboxArchived   InboxStatus = "archived"
)

var inboxStatuses = []InboxStatus{InboxNew, InboxProcessing, InboxConverted, InboxRejected, InboxArchived}

func (s InboxStatus) Valid() bool { return contains(inboxStatuses, s) }

// Open reports whether the item can still be worked on (assigned, re-prioritised, converted).
func (s InboxStatus) Open() bool { return s == InboxNew || s == InboxProcessing }

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool { return contains(priorities, p) }

// Inbox is a staged, not yet validated claim.
type Inbox struct {
	ID      string `json:"id"`
	ClaimID string `json:"claim_id"`
	ClaimDetails
	InboxStatus      InboxStatus `json:"inbox_status"`
	ConvertedClaimID string      `json:"converted_claim_id,omitempty"`
	RejectionReason  string      `json:"rejection_reason,omitempty"`
	AssignedTo       string      `json:"assigned_to,omitempty"`
	Priority         Priority    `json:"priority"`
	RawEmailContent  string      `json:"raw_email_content,omitempty"`
	EmailSubject     string      `json:"email_subject,omitempty"`
	EmailSender      string      `json:"email_sender,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	ProcessedAt      *time.Time  `json:"processed_at,omitempty"`
}

func (i *Inbox) ApplyDefaults() {
	if i.InboxStatus == "" {
		i.InboxStatus = InboxNew
	}
	if i.ClaimStatus == "" {
		i.ClaimStatus = ClaimDraft
	}
	if i.Priority == "" {
		i.Priority = PriorityNormal
	}
	if i.IngestMethod == "" {
		i.IngestMethod = IngestEmail
	}
	if i.Photos == nil {
		i.Photos = []string{}
	}
}

func (i Inbox) Validate() error {
	if err := i.ClaimDetails.Validate(); err != nil {
		return err
	}
	if !i.InboxStatus.Valid() {
		return WrapError(ErrInvalidInput, "validate inbox", fmt.Errorf("inbox_status %q is not supported", i.InboxStatus))
	}
	if i.InboxStatus == InboxConverted {
		return WrapError(ErrInvalidInput, "validate inbox", fmt.Errorf("inbox items can not be created converted"))
	}
	if !i.Priority.Valid() {
		return WrapError(ErrInvalidInput, "validate inbox", fmt.Errorf("priority %q is not supported", i.Priority))
	}
	return nil
}

// InboxRefKind selects which identifier an InboxRef carries.
type InboxRefKind int

const (
	ByExternalID InboxRefKind = iota + 1
	ByInternalID
	ByEitherID
)

// InboxRef addresses one inbox item. ByEitherID matches either column in one query and prefers
// the external id when both would match.
type InboxRef struct {
	Kind  InboxRefKind
	Value string
}

func ExternalInboxRef(id string) InboxRef { return InboxRef{Kind: ByExternalID, Value: id} }
func InternalInboxRef(id string) InboxRef { return InboxRef{Kind: ByInternalID, Value: id} }

// ParseInboxRef classifies a caller-supplied identifier. Values shaped like an external reference
// resolve against claim_id only; everything else matches either column.
func ParseInboxRef(raw string) (InboxRef, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return InboxRef{}, WrapError(ErrInvalidInput, "parse inbox ref", fmt.Errorf("inbox id is required"))
	}
	if IsExternalID(PrefixInbox, value) {
		return ExternalInboxRef(value), nil
	}
	return InboxRef{Kind: ByEitherID, Value: value}, nil
}

func (r InboxRef) String() string { return r.Value }

// InboxFilter narrows an inbox search. Zero values mean no constraint; date bounds are inclusive.
type InboxFilter struct {
	PolicyholderID string
	PolicyID       string
	InboxStatus    InboxStatus
	ClaimStatus    ClaimStatus
	EventType      EventType
	NameSearch     string
	DateFrom       *Date
	DateTo         *Date
	AssignedTo     string
	Priority       Priority
	Page           PageRequest
}

// Validate rejects enumerated filter values outside their sets.
func (f InboxFilter) Validate() error {
	if f.InboxStatus != "" && !f.InboxStatus.Valid() {
		return WrapError(ErrInvalidInput, "inbox filter", fmt.Errorf("inbox_status %q is not supported", f.InboxStatus))
	}
	if f.ClaimStatus != "" && !f.ClaimStatus.Valid() {
		return WrapError(ErrInvalidInput, "inbox filter", fmt.Errorf("claim_status %q is not supported", f.ClaimStatus))
	}
	if f.EventType != "" && !f.EventType.Valid() {
		return WrapError(ErrInvalidInput, "inbox filter", fmt.Errorf("event_type %q is not supported", f.EventType))
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return WrapError(ErrInvalidInput, "inbox filter", fmt.Errorf("priority %q is not supported", f.Priority))
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(f.DateFrom.Time) {
		return WrapError(ErrInvalidInput, "inbox filter", fmt.Errorf("date_to is before date_from"))
	}
	return nil
}

// InboxStats counts inbox items per status.
type InboxStats struct {
	Total       int                 `json:"total"`
	Unprocessed int                 `json:"unprocessed"`
	ByStatus    map[InboxStatus]int `json:"by_status"`
}

// NewInboxStats fills missing statuses with zero and derives the totals.
func NewInboxStats(counts map[InboxStatus]int) InboxStats {
	stats := InboxStats{ByStatus: make(map[InboxStatus]int, len(inboxStatuses))}
	for _, s := range inboxStatuses {
		n := counts[s]
		stats.ByStatus[s] = n
		stats.Total += n
	}
	stats.Unprocessed = stats.ByStatus[InboxNew] + stats.ByStatus[InboxProcessing]
	return stats
}

// InboxSnapshot is the descriptive part of an inbox item that outlives its deletion.
type InboxSnapshot struct {
	ID                string       `json:"id"`
	ClaimID           string       `json:"claim_id"`
	FirstName         string       `json:"first_name"`
	LastName          string       `json:"last_name"`
	EventType         EventType    `json:"event_type"`
	EventDate         Date         `json:"event_date"`
	EventLocation     string       `json:"event_location"`
	DamageDescription string       `json:"damage_description"`
	ContactEmail      string       `json:"contact_email"`
	IngestMethod      IngestMethod `json:"ingest_method"`
	PolicyholderID    string       `json:"policyholder_id,omitempty"`
	Priority          Priority     `json:"priority"`
	AssignedTo        string       `json:"assigned_to,omitempty"`
	EmailSubject      string       `json:"email_subject,omitempty"`
	EmailSender       string       `json:"email_sender,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

func (i Inbox) Snapshot() InboxSnapshot {
	return InboxSnapshot{
		ID:                i.ID,
		ClaimID:           i.ClaimID,
		FirstName:         i.FirstName,
		LastName:          i.LastName,
		EventType:         i.EventType,
		EventDate:         i.EventDate,
		EventLocation:     i.EventLocation,
		DamageDescription: i.DamageDescription,
		ContactEmail:      i.ContactEmail,
		IngestMethod:      i.IngestMethod,
		PolicyholderID:    i.PolicyholderID,
		Priority:          i.Priority,
		AssignedTo:        i.AssignedTo,
		EmailSubject:      i.EmailSubject,
		EmailSender:       i.EmailSender,
		CreatedAt:         i.CreatedAt,
	}
}

// ProjectClaim builds the claim an inbox item converts into. The claim starts submitted with no
// photos; metadata is copied so later edits on either side stay independent.
func (i Inbox) ProjectClaim(id, externalID string, now time.Time) Claim {
	details := i.ClaimDetails
	details.ClaimStatus = ClaimSubmitted
	details.Photos = []string{}
	details.Metadata = cloneMetadata(i.Metadata)
	return Claim{
		ID:           id,
		ClaimID:      externalID,
		ClaimDetails: details,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ConversionResult describes a completed inbox to claim conversion.
type ConversionResult struct {
	ConvertedClaimID         string        `json:"converted_claim_id"`
	ConvertedExternalClaimID string        `json:"converted_external_claim_id"`
	DocumentsTransferred     int           `json:"documents_transferred"`
	OriginalInboxID          string        `json:"original_inbox_id"`
	Inbox                    InboxSnapshot `json:"inbox"`
}

func cloneMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
