package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

// Extractor turns PDF and UTF-8 text attachments into plain text.
type Extractor struct {
	maxChars int
}

func NewExtractor(maxChars int) *Extractor {
	return &Extractor{maxChars: maxChars}
}

func (e *Extractor) Extract(ctx context.Context, att domain.Attachment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch {
	case att.IsPDF():
		text, err = extractPDF(att.Data)
		if err != nil {
			return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf", fmt.Errorf("%s: %w", att.Name, err))
		}
	case utf8.Valid(att.Data):
		text = string(att.Data)
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported binary format: %s", att.Name))
	}

	text = strings.TrimSpace(text)
	if e.maxChars > 0 && len(text) > e.maxChars {
		cut := e.maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
