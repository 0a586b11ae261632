package postgres

import (
	"database/sql"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

// detailColumns are the claim detail columns shared by the claims and inbox tables, in scan order.
const detailColumns = `first_name, last_name, date_of_birth, event_type, event_date, event_location, vehicle_vin,
	damage_description, estimated_damage_amount, contact_email, photos, ingest_method, policyholder_id, policy_id,
	coverage_type, policy_effective_date, policy_expiry_date, deductible, coverage_limit, initial_payout_estimate,
	eligibility_validated, matched_by, claim_status, claim_metadata`

const detailColumnCount = 24

func detailArgs(d domain.ClaimDetails) ([]any, error) {
	photos := d.Photos
	if photos == nil {
		photos = []string{}
	}
	photosJSON, err := marshalJSON(photos)
	if err != nil {
		return nil, err
	}
	metadataJSON, err := marshalMetadata(d.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		d.FirstName, d.LastName, d.DateOfBirth.Time, string(d.EventType), d.EventDate.Time, d.EventLocation,
		nullString(d.VehicleVIN), d.DamageDescription, nullFloat(d.EstimatedDamageAmount), d.ContactEmail,
		photosJSON, string(d.IngestMethod), nullString(d.PolicyholderID), nullString(d.PolicyID),
		nullString(d.CoverageType), nullDate(d.PolicyEffectiveDate), nullDate(d.PolicyExpiryDate),
		nullFloat(d.Deductible), nullFloat(d.CoverageLimit), nullFloat(d.InitialPayoutEstimate),
		nullBool(d.EligibilityValidated), nullString(d.MatchedBy), string(d.ClaimStatus), metadataJSON,
	}, nil
}

// detailRow holds scan destinations for detailColumns.
type detailRow struct {
	firstName, lastName       string
	dateOfBirth, eventDate    time.Time
	eventType, eventLocation  string
	vin                       sql.NullString
	damageDescription         string
	estimatedDamage           sql.NullFloat64
	contactEmail              string
	photos                    []byte
	ingestMethod              string
	policyholderID, policyID  sql.NullString
	coverageType              sql.NullString
	effectiveDate, expiryDate sql.NullTime
	deductible, coverageLimit sql.NullFloat64
	payoutEstimate            sql.NullFloat64
	eligibility               sql.NullBool
	matchedBy                 sql.NullString
	claimStatus               string
	metadata                  []byte
}

func (r *detailRow) dest() []any {
	return []any{
		&r.firstName, &r.lastName, &r.dateOfBirth, &r.eventType, &r.eventDate, &r.eventLocation, &r.vin,
		&r.damageDescription, &r.estimatedDamage, &r.contactEmail, &r.photos, &r.ingestMethod,
		&r.policyholderID, &r.policyID, &r.coverageType, &r.effectiveDate, &r.expiryDate, &r.deductible,
		&r.coverageLimit, &r.payoutEstimate, &r.eligibility, &r.matchedBy, &r.claimStatus, &r.metadata,
	}
}

func (r *detailRow) details() (domain.ClaimDetails, error) {
	photos, err := unmarshalList(r.photos)
	if err != nil {
		return domain.ClaimDetails{}, err
	}
	metadata, err := unmarshalMetadata(r.metadata)
	if err != nil {
		return domain.ClaimDetails{}, err
	}
	return domain.ClaimDetails{
		FirstName:             r.firstName,
		LastName:              r.lastName,
		DateOfBirth:           domain.DateOf(r.dateOfBirth),
		EventType:             domain.EventType(r.eventType),
		EventDate:             domain.DateOf(r.eventDate),
		EventLocation:         r.eventLocation,
		VehicleVIN:            r.vin.String,
		DamageDescription:     r.damageDescription,
		EstimatedDamageAmount: floatPtr(r.estimatedDamage),
		ContactEmail:          r.contactEmail,
		Photos:                photos,
		IngestMethod:          domain.IngestMethod(r.ingestMethod),
		PolicyholderID:        r.policyholderID.String,
		PolicyID:              r.policyID.String,
		CoverageType:          r.coverageType.String,
		PolicyEffectiveDate:   datePtr(r.effectiveDate),
		PolicyExpiryDate:      datePtr(r.expiryDate),
		Deductible:            floatPtr(r.deductible),
		CoverageLimit:         floatPtr(r.coverageLimit),
		InitialPayoutEstimate: floatPtr(r.payoutEstimate),
		EligibilityValidated:  boolPtr(r.eligibility),
		MatchedBy:             r.matchedBy.String,
		ClaimStatus:           domain.ClaimStatus(r.claimStatus),
		Metadata:              metadata,
	}, nil
}
