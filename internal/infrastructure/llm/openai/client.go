package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/resilience"
)

const systemPrompt = "You are an insurance claims intake assistant. Return only the information requested."

// Client generates text through any OpenAI compatible chat completions endpoint. Images are sent
// as data URLs; other attachments must be inlined into the prompt by the caller.
type Client struct {
	client *openai.Client
	model  string
	exec   *resilience.Executor
}

func New(apiKey, baseURL, model string, exec *resilience.Executor) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{client: openai.NewClientWithConfig(cfg), model: model, exec: exec}, nil
}

func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	chatReq := c.chatRequest(req)
	text, err := resilience.Call(ctx, c.exec, "openai.generate", func(ctx context.Context) (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no response from openai")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}, classifyOpenAIError)
	if err != nil {
		return "", resilience.WrapTemporary("openai generate", err, classifyOpenAIError)
	}
	return text, nil
}

func (c *Client) chatRequest(req domain.GenerationRequest) openai.ChatCompletionRequest {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.Attachment != nil && req.Attachment.IsImage() {
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL(*req.Attachment),
				Detail: openai.ImageURLDetailAuto,
			}},
		}
	} else {
		user.Content = req.Prompt
	}

	out := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			user,
		},
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.JSON {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return out
}

func dataURL(a domain.Attachment) string {
	return "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		retryable := isRetryableStatus(apiErr.HTTPStatusCode)
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		retryable := isRetryableStatus(reqErr.HTTPStatusCode)
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
