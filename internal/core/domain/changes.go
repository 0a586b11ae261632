package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

// FieldKind is the storage shape of a patchable column.
type FieldKind int

const (
	FieldText FieldKind = iota + 1
	FieldDate
	FieldFloat
	FieldBool
	FieldList
	FieldObject
)

// FieldSpec describes one patchable JSON field.
type FieldSpec struct {
	Column   string
	Kind     FieldKind
	Required bool
	Check    func(string) bool
}

// Change assigns Value to Column. A nil Value clears the column.
type Change struct {
	Column string
	Value  any
}

// Changes is an ordered set of column assignments for a partial update.
type Changes []Change

func (c Changes) Empty() bool { return len(c) == 0 }

// Value returns the assignment for column, if present.
func (c Changes) Value(column string) (any, bool) {
	for _, ch := range c {
		if ch.Column == column {
			return ch.Value, true
		}
	}
	return nil, false
}

// Set replaces or appends an assignment.
func (c Changes) Set(column string, value any) Changes {
	for i, ch := range c {
		if ch.Column == column {
			c[i].Value = value
			return c
		}
	}
	return append(c, Change{Column: column, Value: value})
}

// DecodeChanges turns a JSON object into column assignments. Only fields present in raw are
// assigned; an explicit null clears the column unless the field is required. Unknown fields are
// rejected.
func DecodeChanges(raw map[string]json.RawMessage, fields map[string]FieldSpec) (Changes, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Changes, 0, len(names))
	for _, name := range names {
		field, ok := fields[name]
		if !ok {
			return nil, WrapError(ErrInvalidInput, "decode changes", fmt.Errorf("field %q can not be updated", name))
		}
		value, err := decodeField(raw[name], field)
		if err != nil {
			return nil, WrapError(ErrInvalidInput, "decode changes", fmt.Errorf("field %q: %w", name, err))
		}
		out = append(out, Change{Column: field.Column, Value: value})
	}
	return out, nil
}

func decodeField(raw json.RawMessage, field FieldSpec) (any, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if field.Required {
			return nil, fmt.Errorf("can not be null")
		}
		return nil, nil
	}
	switch field.Kind {
	case FieldText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("must be a string")
		}
		if field.Required && strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("can not be empty")
		}
		if field.Check != nil && !field.Check(s) {
			return nil, fmt.Errorf("value %q is not allowed", s)
		}
		return s, nil
	case FieldDate:
		var d Date
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		if d.IsZero() {
			if field.Required {
				return nil, fmt.Errorf("can not be empty")
			}
			return nil, nil
		}
		return d.Time, nil
	case FieldFloat:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("must be a number")
		}
		return f, nil
	case FieldBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("must be a boolean")
		}
		return b, nil
	case FieldList:
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("must be a list of strings")
		}
		if list == nil {
			list = []string{}
		}
		return json.Marshal(list)
	case FieldObject:
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("must be an object")
		}
		return json.Marshal(obj)
	default:
		return nil, fmt.Errorf("unsupported field kind %d", field.Kind)
	}
}

func isEmail(s string) bool {
	_, err := mail.ParseAddress(s)
	return err == nil
}

func validEventType(s string) bool    { return EventType(s).Valid() }
func validIngestMethod(s string) bool { return IngestMethod(s).Valid() }
func validClaimStatus(s string) bool  { return ClaimStatus(s).Valid() }
func validPriority(s string) bool     { return Priority(s).Valid() }

// claimDetailFields are the patchable columns shared by claims and inbox items.
func claimDetailFields() map[string]FieldSpec {
	return map[string]FieldSpec{
		"first_name":              {Column: "first_name", Kind: FieldText, Required: true},
		"last_name":               {Column: "last_name", Kind: FieldText, Required: true},
		"date_of_birth":           {Column: "date_of_birth", Kind: FieldDate, Required: true},
		"event_type":              {Column: "event_type", Kind: FieldText, Required: true, Check: validEventType},
		"event_date":              {Column: "event_date", Kind: FieldDate, Required: true},
		"event_location":          {Column: "event_location", Kind: FieldText, Required: true},
		"vehicle_vin":             {Column: "vehicle_vin", Kind: FieldText},
		"damage_description":      {Column: "damage_description", Kind: FieldText, Required: true},
		"estimated_damage_amount": {Column: "estimated_damage_amount", Kind: FieldFloat},
		"contact_email":           {Column: "contact_email", Kind: FieldText, Required: true, Check: isEmail},
		"photos":                  {Column: "photos", Kind: FieldList, Required: true},
		"ingest_method":           {Column: "ingest_method", Kind: FieldText, Required: true, Check: validIngestMethod},
		"policyholder_id":         {Column: "policyholder_id", Kind: FieldText},
		"policy_id":               {Column: "policy_id", Kind: FieldText},
		"coverage_type":           {Column: "coverage_type", Kind: FieldText},
		"policy_effective_date":   {Column: "policy_effective_date", Kind: FieldDate},
		"policy_expiry_date":      {Column: "policy_expiry_date", Kind: FieldDate},
		"deductible":              {Column: "deductible", Kind: FieldFloat},
		"coverage_limit":          {Column: "coverage_limit", Kind: FieldFloat},
		"initial_payout_estimate": {Column: "initial_payout_estimate", Kind: FieldFloat},
		"eligibility_validated":   {Column: "eligibility_validated", Kind: FieldBool},
		"matched_by":              {Column: "matched_by", Kind: FieldText},
		"claim_status":            {Column: "claim_status", Kind: FieldText, Required: true, Check: validClaimStatus},
		"claim_metadata":          {Column: "claim_metadata", Kind: FieldObject},
	}
}

// ClaimFields lists the patchable claim fields.
func ClaimFields() map[string]FieldSpec { return claimDetailFields() }

// InboxFields lists the patchable inbox fields. Status fields move only through the status,
// assign and convert operations.
func InboxFields() map[string]FieldSpec {
	fields := claimDetailFields()
	fields["rejection_reason"] = FieldSpec{Column: "rejection_reason", Kind: FieldText}
	fields["assigned_to"] = FieldSpec{Column: "assigned_to", Kind: FieldText}
	fields["priority"] = FieldSpec{Column: "priority", Kind: FieldText, Required: true, Check: validPriority}
	fields["raw_email_content"] = FieldSpec{Column: "raw_email_content", Kind: FieldText}
	fields["email_subject"] = FieldSpec{Column: "email_subject", Kind: FieldText}
	fields["email_sender"] = FieldSpec{Column: "email_sender", Kind: FieldText}
	return fields
}

func PolicyHolderFields() map[string]FieldSpec {
	return map[string]FieldSpec{
		"first_name":      {Column: "first_name", Kind: FieldText, Required: true},
		"last_name":       {Column: "last_name", Kind: FieldText, Required: true},
		"date_of_birth":   {Column: "date_of_birth", Kind: FieldDate, Required: true},
		"email":           {Column: "email", Kind: FieldText, Required: true, Check: isEmail},
		"phone":           {Column: "phone", Kind: FieldText, Required: true},
		"address":         {Column: "address", Kind: FieldObject, Required: true},
		"linked_policies": {Column: "linked_policies", Kind: FieldList, Required: true},
		"status":          {Column: "status", Kind: FieldText, Required: true},
	}
}
