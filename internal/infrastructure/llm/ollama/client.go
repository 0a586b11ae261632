package ollama

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/resilience"
)

// Client talks to a local Ollama server through /api/generate.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, model string, timeout time.Duration, exec *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Images  []string       `json:"images,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// Generate sends one prompt. Image attachments travel base64 encoded; other attachments are
// expected to be inlined into the prompt by the caller.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	body := generateRequest{
		Model:  c.model,
		Prompt: req.Prompt,
		Stream: false,
	}
	if req.Model != "" {
		body.Model = req.Model
	}
	if req.JSON {
		body.Format = "json"
	}
	if req.Attachment != nil && req.Attachment.IsImage() {
		body.Images = []string{base64.StdEncoding.EncodeToString(req.Attachment.Data)}
	}
	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) > 0 {
		body.Options = options
	}

	text, err := resilience.Call(ctx, c.exec, "ollama.generate", func(ctx context.Context) (string, error) {
		return c.generate(ctx, body)
	}, classifyOllamaError)
	if err != nil {
		return "", resilience.WrapTemporary("ollama generate", err, classifyOllamaError)
	}
	return text, nil
}
