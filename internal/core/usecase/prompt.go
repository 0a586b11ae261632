package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const (
	maxPreviewChars = 1000
	maxInlineChars  = 12000
)

func buildDocumentPrompt(schema domain.AnalysisSchema, inlineText string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(schema.Instructions))
	b.WriteString("\nReturn one strict JSON object. No markdown.\n")
	if len(schema.Fields) > 0 {
		keys := make([]string, 0, len(schema.Fields))
		for key := range schema.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		b.WriteString("Keys:\n")
		for _, key := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", key, schema.Fields[key])
		}
	}
	if inlineText != "" {
		b.WriteString("\nDocument:\n")
		b.WriteString(truncate(inlineText, maxInlineChars))
	}
	return b.String()
}

func buildAttachmentPrompt(fileName, preview string) string {
	prompt := fmt.Sprintf(`Analyze this file attachment and determine:
1. What type of document this likely is (invoice, policy document, claim form, photo, etc.)
2. Which department it should be routed to
3. Estimated priority level (high, medium, low)

File name: %s
`, fileName)
	if preview != "" {
		prompt += "\nFile content preview:\n" + truncate(preview, maxPreviewChars) + "\n"
	}
	return prompt + `
Return a JSON object with keys:
document_type (string), department (string), priority (string), confidence (number from 0 to 1), notes (string).`
}

func buildEmailPrompt(body string) string {
	return fmt.Sprintf(`Analyze the following email and extract information related to an insurance claim:
topic, claim type (auto, home, health...), incident date, incident location, damage description,
contact information, urgency level and any specific requests.

Email content:
%s

Return a JSON object with keys:
topic, claim_type, incident_date, incident_location, damage_description, contact_info, urgency, requests.
Use empty strings for anything not present.`, truncate(body, maxInlineChars))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
