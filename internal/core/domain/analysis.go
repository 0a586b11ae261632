package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaType names a structured extraction the analysis provider is asked to perform.
type SchemaType string

const (
	SchemaPolicyholderExtract SchemaType = "policyholders/extract_info"
	SchemaPolicyholderClaim   SchemaType = "policyholders/claim_analysis"
	SchemaClaimExtract        SchemaType = "claims/extract_info"
)

var schemaTypes = []SchemaType{SchemaPolicyholderExtract, SchemaPolicyholderClaim, SchemaClaimExtract}

func (s SchemaType) Valid() bool { return contains(schemaTypes, s) }

func SchemaTypes() []SchemaType { return append([]SchemaType(nil), schemaTypes...) }

// Attachment is an in-memory file handed to a generation request.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (a Attachment) IsImage() bool { return strings.HasPrefix(a.MIMEType, "image/") }
func (a Attachment) IsPDF() bool   { return a.MIMEType == "application/pdf" }

// GenerationRequest is one call to a generative model. Zero Temperature and MaxTokens fall back to
// the provider defaults.
type GenerationRequest struct {
	Model       string
	Prompt      string
	Attachment  *Attachment
	JSON        bool
	Temperature *float32
	MaxTokens   int
}

// AnalysisResult is the decoded model output of a structured extraction.
type AnalysisResult map[string]any

// DecodeAnalysis parses a model response as a JSON object. Text that is not a JSON object is kept
// under raw_response.
func DecodeAnalysis(text string) AnalysisResult {
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err == nil && out != nil {
		return out
	}
	if obj, ok := extractJSONObject(text); ok {
		return obj
	}
	return AnalysisResult{"raw_response": text}
}

// AttachmentAnalysis classifies an email attachment by name.
type AttachmentAnalysis struct {
	DocumentType string  `json:"document_type"`
	Department   string  `json:"department"`
	Priority     string  `json:"priority"`
	Confidence   float64 `json:"confidence"`
	Notes        string  `json:"notes"`
}

func DefaultAttachmentAnalysis(notes string) AttachmentAnalysis {
	return AttachmentAnalysis{
		DocumentType: "unknown",
		Department:   "general",
		Priority:     "medium",
		Confidence:   0.5,
		Notes:        strings.TrimSpace(notes),
	}
}

// EmailAnalysis is the claim information extracted from an email body.
type EmailAnalysis struct {
	Topic             string `json:"topic"`
	ClaimType         string `json:"claim_type"`
	IncidentDate      string `json:"incident_date,omitempty"`
	IncidentLocation  string `json:"incident_location,omitempty"`
	DamageDescription string `json:"damage_description,omitempty"`
	ContactInfo       string `json:"contact_info,omitempty"`
	Urgency           string `json:"urgency"`
	Requests          string `json:"requests,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

func DefaultEmailAnalysis(topic, claimType, notes string) EmailAnalysis {
	return EmailAnalysis{Topic: topic, ClaimType: claimType, Urgency: "medium", Notes: strings.TrimSpace(notes)}
}

// ParseModelObject decodes the outermost JSON object in a model response into out.
func ParseModelObject(text string, out any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no json object in model response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}

func extractJSONObject(text string) (map[string]any, bool) {
	var out map[string]any
	if err := ParseModelObject(text, &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

// AnalysisSchema is the prompt and expected output shape of one SchemaType.
type AnalysisSchema struct {
	Type         SchemaType        `yaml:"type" json:"type"`
	Instructions string            `yaml:"instructions" json:"instructions"`
	Fields       map[string]string `yaml:"fields" json:"fields"`
}
