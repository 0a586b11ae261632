package httpadapter

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const defaultAnalyzeTemperature = 0.2

type generateTextRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.parseAnalysisForm(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	rt.runAnalysis(w, r, domain.SchemaType(strings.TrimSpace(r.FormValue("schema_type"))))
}

// analyzeWithSchema serves the fixed-schema shortcuts of /v1/ai/analyze.
func (rt *Router) analyzeWithSchema(schemaType domain.SchemaType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rt.parseAnalysisForm(w, r); err != nil {
			writeError(w, r, err)
			return
		}
		rt.runAnalysis(w, r, schemaType)
	}
}

func (rt *Router) parseAnalysisForm(w http.ResponseWriter, r *http.Request) error {
	if rt.analysisMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.analysisMaxBytes+multipartMemoryBytes)
	}
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "parse analysis form", err)
	}
	return nil
}

func (rt *Router) runAnalysis(w http.ResponseWriter, r *http.Request, schemaType domain.SchemaType) {
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	temperature := float32(defaultAnalyzeTemperature)
	if raw := strings.TrimSpace(r.FormValue("temperature")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 32)
		if err != nil || parsed < 0 || parsed > 2 {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "analyze document", fmt.Errorf("temperature %q is not valid", raw)))
			return
		}
		temperature = float32(parsed)
	}
	att, err := readFormFile(r, "file", rt.analysisMaxBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.svc.Analysis.AnalyzeDocument(r.Context(), schemaType, att, domain.GenerationRequest{
		Model:       strings.TrimSpace(r.FormValue("model")),
		Temperature: &temperature,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, fmt.Sprintf("Document analyzed successfully with schema: %s", schemaType), map[string]any{
		"result": result,
		"metadata": map[string]any{
			"filename":     att.Name,
			"content_type": att.MIMEType,
			"schema_type":  schemaType,
		},
	})
}

func (rt *Router) generateText(w http.ResponseWriter, r *http.Request) {
	var req generateTextRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.MaxTokens < 0 {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "generate text", fmt.Errorf("max_tokens must be >= 0")))
		return
	}
	text, err := rt.svc.Analysis.GenerateText(r.Context(), domain.GenerationRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Text generated successfully", map[string]any{
		"text": text,
		"metadata": map[string]any{
			"model":       req.Model,
			"temperature": req.Temperature,
			"max_tokens":  req.MaxTokens,
		},
	})
}
