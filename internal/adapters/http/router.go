package httpadapter

import (
	"net/http"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/config"
	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

// Services are the inbound ports served over HTTP.
type Services struct {
	PolicyHolders ports.PolicyHolderService
	Autoupload    ports.AutouploadEmailService
	Claims        ports.ClaimService
	Inbox         ports.InboxService
	Converter     ports.InboxConverter
	Documents     ports.DocumentService
	Analysis      ports.AnalysisService
	Intake        ports.EmailIntake
}

// Metrics instruments the HTTP surface. A nil Metrics disables instrumentation.
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
	RecordEmailReceived(err error)
}

type Router struct {
	svc     Services
	metrics Metrics

	webhookToken         string
	uploadMaxBytes       int64
	analysisMaxBytes     int64
	rateLimitRPS         float64
	rateLimitBurst       int
	backpressureInFlight int
	backpressureWait     time.Duration
}

func NewRouter(cfg config.Config, svc Services, metrics Metrics) *Router {
	return &Router{
		svc:                  svc,
		metrics:              metrics,
		webhookToken:         cfg.MailgunWebhookKey,
		uploadMaxBytes:       cfg.UploadMaxBytes,
		analysisMaxBytes:     cfg.AnalysisMaxFileBytes,
		rateLimitRPS:         cfg.APIRateLimitRPS,
		rateLimitBurst:       cfg.APIRateLimitBurst,
		backpressureInFlight: cfg.APIBackpressureMaxInFlight,
		backpressureWait:     cfg.APIBackpressureWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/policyholders", rt.createPolicyHolder)
	mux.HandleFunc("GET /v1/policyholders", rt.listPolicyHolders)
	mux.HandleFunc("GET /v1/policyholders/{id}", rt.getPolicyHolder)
	mux.HandleFunc("PATCH /v1/policyholders/{id}", rt.updatePolicyHolder)
	mux.HandleFunc("DELETE /v1/policyholders/{id}", rt.deletePolicyHolder)

	mux.HandleFunc("GET /v1/autoupload-email/{policyholder_id}", rt.listAutouploadEmails)
	mux.HandleFunc("GET /v1/autoupload-email/{policyholder_id}/{alias}", rt.getAutouploadEmail)
	mux.HandleFunc("POST /v1/autoupload-email/{policyholder_id}", rt.upsertAutouploadEmail)
	mux.HandleFunc("DELETE /v1/autoupload-email/{policyholder_id}/{alias}", rt.deleteAutouploadEmail)

	mux.HandleFunc("POST /v1/claims", rt.createClaim)
	mux.HandleFunc("GET /v1/claims", rt.searchClaims)
	mux.HandleFunc("GET /v1/claims/{id}", rt.getClaim)
	mux.HandleFunc("PATCH /v1/claims/{id}", rt.updateClaim)
	mux.HandleFunc("PATCH /v1/claims/{id}/status", rt.updateClaimStatus)
	mux.HandleFunc("PATCH /v1/claims/{id}/associate", rt.associateClaim)
	mux.HandleFunc("DELETE /v1/claims/{id}", rt.deleteClaim)

	mux.HandleFunc("POST /v1/inbox", rt.createInbox)
	mux.HandleFunc("GET /v1/inbox", rt.searchInbox)
	mux.HandleFunc("GET /v1/inbox/export", rt.exportInbox)
	mux.HandleFunc("GET /v1/inbox/stats", rt.inboxStats)
	mux.HandleFunc("GET /v1/inbox/{id}", rt.getInbox)
	mux.HandleFunc("PATCH /v1/inbox/{id}", rt.updateInbox)
	mux.HandleFunc("PATCH /v1/inbox/{id}/status", rt.updateInboxStatus)
	mux.HandleFunc("PATCH /v1/inbox/{id}/assign", rt.assignInbox)
	mux.HandleFunc("PATCH /v1/inbox/{id}/priority", rt.setInboxPriority)
	mux.HandleFunc("DELETE /v1/inbox/{id}", rt.deleteInbox)
	mux.HandleFunc("POST /v1/inbox/{id}/convert-to-claim", rt.convertInbox)
	mux.HandleFunc("POST /v1/inbox/{id}/reconcile", rt.reconcileInbox)

	mux.HandleFunc("POST /v1/documents/upload", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/claim/{claim_id}", rt.listClaimDocuments)
	mux.HandleFunc("GET /v1/documents/inbox/{inbox_id}", rt.listInboxDocuments)
	mux.HandleFunc("GET /v1/documents/content/{id}", rt.downloadDocument)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	mux.HandleFunc("POST /v1/documents/{id}/analyze", rt.analyzeStoredDocument)
	mux.HandleFunc("DELETE /v1/documents/{id}", rt.deleteDocument)

	mux.HandleFunc("POST /v1/ai/analyze", rt.analyzeDocument)
	mux.HandleFunc("POST /v1/ai/extract-policyholder", rt.analyzeWithSchema(domain.SchemaPolicyholderExtract))
	mux.HandleFunc("POST /v1/ai/analyze-claim", rt.analyzeWithSchema(domain.SchemaPolicyholderClaim))
	mux.HandleFunc("POST /v1/ai/extract-claim-info", rt.analyzeWithSchema(domain.SchemaClaimExtract))
	mux.HandleFunc("POST /v1/ai/generate-text", rt.generateText)

	mux.HandleFunc("POST /v1/webhooks/mailgun", rt.mailgunWebhook)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.backpressureInFlight, rt.backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
