package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const webhookTokenParam = "auth_token"

func (rt *Router) mailgunWebhook(w http.ResponseWriter, r *http.Request) {
	if !isAuthorizedToken(r.URL.Query().Get(webhookTokenParam), rt.webhookToken) {
		writeError(w, r, domain.WrapError(domain.ErrUnauthorized, "mailgun webhook", errors.New("invalid auth token")))
		return
	}
	email, err := parseMailgunForm(r)
	if err != nil {
		rt.recordEmail(err)
		writeError(w, r, err)
		return
	}
	result, err := rt.svc.Intake.Receive(r.Context(), email)
	rt.recordEmail(err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":               true,
		"message":               "Webhook received and processed successfully",
		"attachments_processed": result.AttachmentsRecorded,
		"metadata": map[string]any{
			"email": map[string]any{
				"sender":    email.Sender,
				"recipient": email.Recipient,
				"subject":   email.Subject,
				"timestamp": email.Timestamp,
			},
			"inbox_id":        result.InboxID,
			"inbox_claim_id":  result.InboxClaimID,
			"policyholder_id": result.PolicyholderID,
		},
	})
}

func (rt *Router) recordEmail(err error) {
	if rt.metrics != nil {
		rt.metrics.RecordEmailReceived(err)
	}
}

// parseMailgunForm reads the routed-message form Mailgun posts, either multipart or url-encoded.
func parseMailgunForm(r *http.Request) (domain.InboundEmail, error) {
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return domain.InboundEmail{}, domain.WrapError(domain.ErrInvalidInput, "parse mailgun form", err)
		}
		if err := r.ParseForm(); err != nil {
			return domain.InboundEmail{}, domain.WrapError(domain.ErrInvalidInput, "parse mailgun form", err)
		}
	} else {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	email := domain.InboundEmail{
		Sender:    firstForm(r, "sender", "From"),
		Recipient: firstForm(r, "recipient", "To"),
		Subject:   firstForm(r, "subject", "Subject"),
		BodyPlain: firstForm(r, "body-plain", "stripped-text"),
		MessageID: firstForm(r, "Message-Id", "message-id"),
	}
	if email.Recipient == "" {
		return domain.InboundEmail{}, domain.WrapError(domain.ErrInvalidInput, "parse mailgun form", errors.New("recipient is required"))
	}
	if raw := firstForm(r, "timestamp"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.InboundEmail{}, domain.WrapError(domain.ErrInvalidInput, "parse mailgun form", fmt.Errorf("timestamp %q is not an integer", raw))
		}
		email.Timestamp = ts
	}
	if raw := firstForm(r, "attachments"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &email.Attachments); err != nil {
			return domain.InboundEmail{}, domain.WrapError(domain.ErrInvalidInput, "parse mailgun form", fmt.Errorf("attachments: %w", err))
		}
	}
	return email, nil
}

func firstForm(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(r.FormValue(name)); v != "" {
			return v
		}
	}
	return ""
}
