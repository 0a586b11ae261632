package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/resilience"
)

const systemPrompt = "You are an insurance claims intake assistant. You read claim documents and emails and return the requested information accurately. When asked for JSON, return a single valid JSON object."

// Client generates content with Gemini models on Vertex AI. It accepts PDF and image attachments natively.
type Client struct {
	base  *genai.Client
	model string
	exec  *resilience.Executor
}

func New(ctx context.Context, projectID, region, model string, exec *resilience.Executor) (*Client, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("gemini: project and region are required")
	}
	base, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-pro"
	}
	return &Client{base: base, model: model, exec: exec}, nil
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	name := c.model
	if req.Model != "" {
		name = req.Model
	}
	model := c.base.GenerativeModel(name)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.GenerationConfig = generationConfig(req)

	parts := requestParts(req)
	text, err := resilience.Call(ctx, c.exec, "gemini.generate", func(ctx context.Context) (string, error) {
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return "", err
		}
		return responseText(resp)
	}, classifyGeminiError)
	if err != nil {
		return "", resilience.WrapTemporary("gemini generate", err, classifyGeminiError)
	}
	return text, nil
}

func generationConfig(req domain.GenerationRequest) genai.GenerationConfig {
	cfg := genai.GenerationConfig{}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = genai.Ptr(int32(req.MaxTokens))
	}
	return cfg
}

// requestParts puts the attachment before the prompt.
func requestParts(req domain.GenerationRequest) []genai.Part {
	parts := make([]genai.Part, 0, 2)
	if req.Attachment != nil && len(req.Attachment.Data) > 0 {
		mimeType := req.Attachment.MIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: req.Attachment.Data})
	}
	return append(parts, genai.Text(req.Prompt))
}

var errEmptyResponse = errors.New("gemini returned no content")

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errEmptyResponse
	}
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	return strings.TrimSpace(strings.TrimSuffix(out, "```")), nil
}

func classifyGeminiError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	if errors.Is(err, errEmptyResponse) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: false}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
