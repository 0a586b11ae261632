package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

type generatorFake struct {
	responses []string
	err       error
	requests  []domain.GenerationRequest
}

func (f *generatorFake) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	out := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return out, nil
}

type catalogFake struct{}

func (catalogFake) Lookup(schemaType domain.SchemaType) (domain.AnalysisSchema, error) {
	if !schemaType.Valid() {
		return domain.AnalysisSchema{}, domain.WrapError(domain.ErrNotFound, "lookup schema", errors.New(string(schemaType)))
	}
	return domain.AnalysisSchema{
		Type:         schemaType,
		Instructions: "Extract claim information from this document.",
		Fields:       map[string]string{"claim_number": "string", "incident_date": "YYYY-MM-DD"},
	}, nil
}

type extractorFake struct {
	text  string
	calls int
}

func (f *extractorFake) Extract(context.Context, domain.Attachment) (string, error) {
	f.calls++
	return f.text, nil
}

func newAnalysisUseCase(gen *generatorFake, ext *extractorFake, inline bool) (*AnalysisUseCase, *memStore, *blobStoreFake) {
	store := newMemStore()
	blobs := newBlobStoreFake()
	uc := NewAnalysisUseCase(gen, catalogFake{}, ext, memDocs{store}, blobs, inline, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return uc, store, blobs
}

func TestAnalyzeDocumentSendsAttachmentAndDecodesJSON(t *testing.T) {
	gen := &generatorFake{responses: []string{`{"claim_number":"A-1"}`}}
	uc, _, _ := newAnalysisUseCase(gen, &extractorFake{}, false)

	result, err := uc.AnalyzeDocument(context.Background(), domain.SchemaClaimExtract, domain.Attachment{
		Name: "form.pdf", MIMEType: "application/pdf", Data: []byte("%PDF"),
	}, domain.GenerationRequest{})
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if result["claim_number"] != "A-1" {
		t.Fatalf("unexpected result %v", result)
	}
	req := gen.requests[0]
	if req.Attachment == nil || !req.JSON || req.Temperature == nil || *req.Temperature != 0.2 || req.MaxTokens != 65535 {
		t.Fatalf("unexpected request %+v", req)
	}
	if !strings.Contains(req.Prompt, "- claim_number: string") {
		t.Fatalf("prompt does not list schema fields: %q", req.Prompt)
	}
}

func TestAnalyzeDocumentKeepsRawResponseWhenNotJSON(t *testing.T) {
	gen := &generatorFake{responses: []string{"I could not read that"}}
	uc, _, _ := newAnalysisUseCase(gen, &extractorFake{}, false)

	result, err := uc.AnalyzeDocument(context.Background(), domain.SchemaPolicyholderExtract, domain.Attachment{
		Name: "id.png", MIMEType: "image/png", Data: []byte{1},
	}, domain.GenerationRequest{})
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if result["raw_response"] != "I could not read that" {
		t.Fatalf("unexpected result %v", result)
	}
}

func TestAnalyzeDocumentInlinesTextForTextOnlyProviders(t *testing.T) {
	gen := &generatorFake{responses: []string{`{}`}}
	ext := &extractorFake{text: "Policy POL-9 collision on Elm St"}
	uc, _, _ := newAnalysisUseCase(gen, ext, true)

	if _, err := uc.AnalyzeDocument(context.Background(), domain.SchemaClaimExtract, domain.Attachment{
		Name: "form.pdf", MIMEType: "application/pdf", Data: []byte("%PDF"),
	}, domain.GenerationRequest{}); err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	req := gen.requests[0]
	if req.Attachment != nil || ext.calls != 1 || !strings.Contains(req.Prompt, "POL-9") {
		t.Fatalf("expected inlined text, got attachment=%v calls=%d prompt=%q", req.Attachment, ext.calls, req.Prompt)
	}
}

func TestAnalyzeDocumentRejectsUnknownSchemaAndEmptyFile(t *testing.T) {
	gen := &generatorFake{}
	uc, _, _ := newAnalysisUseCase(gen, &extractorFake{}, false)

	if _, err := uc.AnalyzeDocument(context.Background(), "claims/unknown", domain.Attachment{Data: []byte{1}}, domain.GenerationRequest{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for schema, got %v", err)
	}
	if _, err := uc.AnalyzeDocument(context.Background(), domain.SchemaClaimExtract, domain.Attachment{}, domain.GenerationRequest{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty file, got %v", err)
	}
	if len(gen.requests) != 0 {
		t.Fatalf("provider called for invalid input")
	}
}

func TestAnalyzeStoredDocumentReadsBlob(t *testing.T) {
	gen := &generatorFake{responses: []string{`{"claim_number":"B-2"}`}}
	uc, store, blobs := newAnalysisUseCase(gen, &extractorFake{}, false)
	doc := store.seedDocument("DOC1", "", "CLM1")
	blobs.objects[doc.FileURL] = []byte("%PDF-1.7")

	result, err := uc.AnalyzeStoredDocument(context.Background(), "DOC1", domain.SchemaClaimExtract)
	if err != nil {
		t.Fatalf("AnalyzeStoredDocument() error = %v", err)
	}
	if result["claim_number"] != "B-2" {
		t.Fatalf("unexpected result %v", result)
	}
	if att := gen.requests[0].Attachment; att == nil || att.MIMEType != "application/pdf" {
		t.Fatalf("unexpected attachment %+v", att)
	}
}

func TestGenerateTextRequiresPromptAndAppliesDefaults(t *testing.T) {
	gen := &generatorFake{responses: []string{"hello"}}
	uc, _, _ := newAnalysisUseCase(gen, &extractorFake{}, false)

	if _, err := uc.GenerateText(context.Background(), domain.GenerationRequest{Prompt: "  "}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	text, err := uc.GenerateText(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	if err != nil || text != "hello" {
		t.Fatalf("GenerateText() = %q, %v", text, err)
	}
	if req := gen.requests[0]; *req.Temperature != 0.7 || req.MaxTokens != 8192 {
		t.Fatalf("unexpected defaults %+v", req)
	}
}

func TestAnalyzeAttachmentNameFallsBackToDefaults(t *testing.T) {
	gen := &generatorFake{responses: []string{"looks like an invoice"}}
	uc, _, _ := newAnalysisUseCase(gen, &extractorFake{}, false)

	got := uc.AnalyzeAttachmentName(context.Background(), "invoice.pdf")
	if got.DocumentType != "unknown" || got.Department != "general" || got.Priority != "medium" || got.Confidence != 0.5 {
		t.Fatalf("unexpected defaults %+v", got)
	}
	if got.Notes != "looks like an invoice" {
		t.Fatalf("expected model text in notes, got %q", got.Notes)
	}

	gen.responses = []string{"Sure: {\"document_type\":\"invoice\",\"department\":\"billing\",\"priority\":\"low\",\"confidence\":0.9,\"notes\":\"\"}"}
	got = uc.AnalyzeAttachmentName(context.Background(), "invoice.pdf")
	if got.DocumentType != "invoice" || got.Confidence != 0.9 {
		t.Fatalf("unexpected analysis %+v", got)
	}
}

func TestExtractEmailDataNeverFails(t *testing.T) {
	gen := &generatorFake{err: errors.New("quota exceeded")}
	uc, _, _ := newAnalysisUseCase(gen, &extractorFake{}, false)

	got := uc.ExtractEmailData(context.Background(), "My car was hit on Elm St")
	if got.Topic != "Error analyzing email" || got.Urgency != "medium" {
		t.Fatalf("unexpected fallback %+v", got)
	}

	gen.err = nil
	gen.responses = []string{`{"topic":"collision","claim_type":"auto","incident_location":"Elm St"}`}
	got = uc.ExtractEmailData(context.Background(), "My car was hit on Elm St")
	if got.ClaimType != "auto" || got.IncidentLocation != "Elm St" || got.Urgency != "medium" {
		t.Fatalf("unexpected analysis %+v", got)
	}
}
