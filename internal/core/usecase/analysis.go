package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

const (
	documentTemperature  float32 = 0.2
	textTemperature      float32 = 0.7
	documentMaxTokens            = 65535
	textMaxTokens                = 8192
	defaultMaxAnalyzeMiB         = 20
)

type AnalysisUseCase struct {
	generator ports.Generator
	catalog   ports.SchemaCatalog
	extractor ports.TextExtractor
	docs      ports.DocumentRepository
	blobs     ports.BlobStore
	logger    *slog.Logger

	// inlineText sends extracted text instead of non-image bytes, for providers that only read text.
	inlineText bool
	maxBytes   int64
}

func NewAnalysisUseCase(
	generator ports.Generator,
	catalog ports.SchemaCatalog,
	extractor ports.TextExtractor,
	docs ports.DocumentRepository,
	blobs ports.BlobStore,
	inlineText bool,
	logger *slog.Logger,
) *AnalysisUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisUseCase{
		generator:  generator,
		catalog:    catalog,
		extractor:  extractor,
		docs:       docs,
		blobs:      blobs,
		logger:     logger,
		inlineText: inlineText,
		maxBytes:   defaultMaxAnalyzeMiB << 20,
	}
}

// WithMaxFileBytes caps how much of a stored document AnalyzeStoredDocument reads.
func (uc *AnalysisUseCase) WithMaxFileBytes(n int64) *AnalysisUseCase {
	if n > 0 {
		uc.maxBytes = n
	}
	return uc
}

// AnalyzeDocument runs the structured extraction of schemaType over att. Output that is not a JSON
// object is returned under raw_response.
func (uc *AnalysisUseCase) AnalyzeDocument(ctx context.Context, schemaType domain.SchemaType, att domain.Attachment, opts domain.GenerationRequest) (domain.AnalysisResult, error) {
	if !schemaType.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze document", fmt.Errorf("schema_type %q is not supported", schemaType))
	}
	if len(att.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze document", errors.New("file is empty"))
	}
	schema, err := uc.catalog.Lookup(schemaType)
	if err != nil {
		return nil, fmt.Errorf("lookup schema: %w", err)
	}

	req := domain.GenerationRequest{
		Model:       opts.Model,
		JSON:        true,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if req.Temperature == nil {
		t := documentTemperature
		req.Temperature = &t
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = documentMaxTokens
	}

	inline := ""
	if uc.inlineText && !att.IsImage() {
		inline, err = uc.extractor.Extract(ctx, att)
		if err != nil {
			return nil, fmt.Errorf("extract document text: %w", err)
		}
	} else {
		attachment := att
		req.Attachment = &attachment
	}
	req.Prompt = buildDocumentPrompt(schema, inline)

	text, err := uc.generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate analysis: %w", err)
	}
	return domain.DecodeAnalysis(text), nil
}

// AnalyzeStoredDocument analyzes the stored bytes of an existing document.
func (uc *AnalysisUseCase) AnalyzeStoredDocument(ctx context.Context, documentID string, schemaType domain.SchemaType) (domain.AnalysisResult, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	rc, err := uc.blobs.Open(ctx, doc.FileURL)
	if err != nil {
		return nil, fmt.Errorf("open document bytes: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document bytes: %w", err)
	}
	if int64(len(data)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze document", fmt.Errorf("document exceeds %d bytes", uc.maxBytes))
	}
	return uc.AnalyzeDocument(ctx, schemaType, domain.Attachment{
		Name:     doc.FileName,
		MIMEType: detectMIME(doc.FileName, doc.ContentType, data),
		Data:     data,
	}, domain.GenerationRequest{})
}

func (uc *AnalysisUseCase) GenerateText(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "generate text", errors.New("prompt is required"))
	}
	if req.Temperature == nil {
		t := textTemperature
		req.Temperature = &t
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = textMaxTokens
	}
	req.Attachment = nil
	text, err := uc.generator.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}
	return text, nil
}

// AnalyzeAttachmentName never fails; provider errors and unparsable output yield the default analysis.
func (uc *AnalysisUseCase) AnalyzeAttachmentName(ctx context.Context, fileName string) domain.AttachmentAnalysis {
	t := documentTemperature
	text, err := uc.generator.Generate(ctx, domain.GenerationRequest{
		Prompt:      buildAttachmentPrompt(fileName, ""),
		JSON:        true,
		Temperature: &t,
		MaxTokens:   textMaxTokens,
	})
	if err != nil {
		uc.logger.WarnContext(ctx, "attachment_analysis_failed", "file_name", fileName, "error", err.Error())
		return domain.DefaultAttachmentAnalysis("analysis unavailable")
	}
	var out domain.AttachmentAnalysis
	if err := domain.ParseModelObject(text, &out); err != nil {
		uc.logger.WarnContext(ctx, "attachment_analysis_unparsable", "file_name", fileName, "error", err.Error())
		return domain.DefaultAttachmentAnalysis(text)
	}
	return out
}

// ExtractEmailData never fails; provider errors and unparsable output yield the default analysis.
func (uc *AnalysisUseCase) ExtractEmailData(ctx context.Context, body string) domain.EmailAnalysis {
	if strings.TrimSpace(body) == "" {
		return domain.DefaultEmailAnalysis("Unknown", "general", "empty email body")
	}
	t := textTemperature
	text, err := uc.generator.Generate(ctx, domain.GenerationRequest{
		Prompt:      buildEmailPrompt(body),
		JSON:        true,
		Temperature: &t,
		MaxTokens:   textMaxTokens,
	})
	if err != nil {
		uc.logger.WarnContext(ctx, "email_analysis_failed", "error", err.Error())
		return domain.DefaultEmailAnalysis("Error analyzing email", "unknown", "Failed to analyze email content")
	}
	var out domain.EmailAnalysis
	if err := domain.ParseModelObject(text, &out); err != nil {
		uc.logger.WarnContext(ctx, "email_analysis_unparsable", "error", err.Error())
		return domain.DefaultEmailAnalysis("Unknown", "general", text)
	}
	if out.Urgency == "" {
		out.Urgency = "medium"
	}
	return out
}

func detectMIME(fileName, declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); byExt != "" {
		if semi := strings.IndexByte(byExt, ';'); semi > 0 {
			byExt = byExt[:semi]
		}
		return byExt
	}
	sniffed := http.DetectContentType(data)
	if semi := strings.IndexByte(sniffed, ';'); semi > 0 {
		sniffed = sniffed[:semi]
	}
	return sniffed
}
