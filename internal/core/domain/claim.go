package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type EventType string

const (
	EventCollision       EventType = "collision"
	EventAnimalCollision EventType = "animal_collision"
	EventTheft           EventType = "theft"
	EventVandalism       EventType = "vandalism"
	EventWeather         EventType = "weather"
	EventFire            EventType = "fire"
	EventFlood           EventType = "flood"
	EventOther           EventType = "other"
)

var eventTypes = []EventType{
	EventCollision, EventAnimalCollision, EventTheft, EventVandalism,
	EventWeather, EventFire, EventFlood, EventOther,
}

func (t EventType) Valid() bool { return contains(eventTypes, t) }

type IngestMethod string

const (
	IngestEmail  IngestMethod = "email"
	IngestManual IngestMethod = "manual"
	IngestAPI    IngestMethod = "api"
	IngestPortal IngestMethod = "portal"
	IngestMobile IngestMethod = "mobile"
)

var ingestMethods = []IngestMethod{IngestEmail, IngestManual, IngestAPI, IngestPortal, IngestMobile}

func (m IngestMethod) Valid() bool { return contains(ingestMethods, m) }

type ClaimStatus string

const (
	ClaimDraft              ClaimStatus = "draft"
	ClaimSubmitted          ClaimStatus = "submitted"
	ClaimPendingReview      ClaimStatus = "pending_review"
	ClaimUnderInvestigation ClaimStatus = "under_investigation"
	ClaimApproved           ClaimStatus = "approved"
	ClaimPartiallyApproved  ClaimStatus = "partially_approved"
	ClaimDenied             ClaimStatus = "denied"
	ClaimClosed             ClaimStatus = "closed"
	ClaimReopened           ClaimStatus = "reopened"
)

var claimStatuses = []ClaimStatus{
	ClaimDraft, ClaimSubmitted, ClaimPendingReview, ClaimUnderInvestigation, ClaimApproved,
	ClaimPartiallyApproved, ClaimDenied, ClaimClosed, ClaimReopened,
}

func (s ClaimStatus) Valid() bool { return contains(claimStatuses, s) }

// ClaimDetails holds the event, contact, policy and financial fields shared by claims and inbox items.
type ClaimDetails struct {
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	DateOfBirth           Date           `json:"date_of_birth"`
	EventType             EventType      `json:"event_type"`
	EventDate             Date           `json:"event_date"`
	EventLocation         string         `json:"event_location"`
	VehicleVIN            string         `json:"vehicle_vin,omitempty"`
	DamageDescription     string         `json:"damage_description"`
	EstimatedDamageAmount *float64       `json:"estimated_damage_amount,omitempty"`
	ContactEmail          string         `json:"contact_email"`
	Photos                []string       `json:"photos"`
	IngestMethod          IngestMethod   `json:"ingest_method"`
	PolicyholderID        string         `json:"policyholder_id,omitempty"`
	PolicyID              string         `json:"policy_id,omitempty"`
	CoverageType          string         `json:"coverage_type,omitempty"`
	PolicyEffectiveDate   *Date          `json:"policy_effective_date,omitempty"`
	PolicyExpiryDate      *Date          `json:"policy_expiry_date,omitempty"`
	Deductible            *float64       `json:"deductible,omitempty"`
	CoverageLimit         *float64       `json:"coverage_limit,omitempty"`
	InitialPayoutEstimate *float64       `json:"initial_payout_estimate,omitempty"`
	EligibilityValidated  *bool          `json:"eligibility_validated,omitempty"`
	MatchedBy             string         `json:"matched_by,omitempty"`
	ClaimStatus           ClaimStatus    `json:"claim_status"`
	Metadata              map[string]any `json:"claim_metadata,omitempty"`
}

// Validate checks required fields and enumerations. Defaults must be applied first.
func (d ClaimDetails) Validate() error {
	var problems []string
	if strings.TrimSpace(d.FirstName) == "" {
		problems = append(problems, "first_name is required")
	}
	if strings.TrimSpace(d.LastName) == "" {
		problems = append(problems, "last_name is required")
	}
	if d.DateOfBirth.IsZero() {
		problems = append(problems, "date_of_birth is required")
	}
	if !d.EventType.Valid() {
		problems = append(problems, fmt.Sprintf("event_type %q is not supported", d.EventType))
	}
	if d.EventDate.IsZero() {
		problems = append(problems, "event_date is required")
	}
	if strings.TrimSpace(d.EventLocation) == "" {
		problems = append(problems, "event_location is required")
	}
	if strings.TrimSpace(d.DamageDescription) == "" {
		problems = append(problems, "damage_description is required")
	}
	if _, err := mail.ParseAddress(d.ContactEmail); err != nil {
		problems = append(problems, "contact_email must be a valid email address")
	}
	if !d.IngestMethod.Valid() {
		problems = append(problems, fmt.Sprintf("ingest_method %q is not supported", d.IngestMethod))
	}
	if !d.ClaimStatus.Valid() {
		problems = append(problems, fmt.Sprintf("claim_status %q is not supported", d.ClaimStatus))
	}
	if len(problems) > 0 {
		return WrapError(ErrInvalidInput, "validate claim details", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

// Claim is a formally filed insurance claim.
type Claim struct {
	ID      string `json:"id"`
	ClaimID string `json:"claim_id"`
	ClaimDetails
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClaimFilter narrows a claim search. Zero values mean no constraint.
type ClaimFilter struct {
	PolicyholderID string
	PolicyID       string
	Status         ClaimStatus
	EventType      EventType
	NameSearch     string
	DateFrom       *Date
	DateTo         *Date
	Page           PageRequest
}

func contains[T comparable](set []T, v T) bool {
	for _, item := range set {
		if item == v {
			return true
		}
	}
	return false
}

// ApplyDefaults fills the status, ingest method and photo list of a new claim.
func (d *ClaimDetails) ApplyDefaults() {
	if d.ClaimStatus == "" {
		d.ClaimStatus = ClaimDraft
	}
	if d.IngestMethod == "" {
		d.IngestMethod = IngestManual
	}
	if d.Photos == nil {
		d.Photos = []string{}
	}
}

// Validate rejects enumerated filter values outside their sets.
func (f ClaimFilter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return WrapError(ErrInvalidInput, "claim filter", fmt.Errorf("claim_status %q is not supported", f.Status))
	}
	if f.EventType != "" && !f.EventType.Valid() {
		return WrapError(ErrInvalidInput, "claim filter", fmt.Errorf("event_type %q is not supported", f.EventType))
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(f.DateFrom.Time) {
		return WrapError(ErrInvalidInput, "claim filter", fmt.Errorf("date_to is before date_from"))
	}
	return nil
}
