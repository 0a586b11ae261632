package httpadapter

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/config"
	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

type inboxFake struct {
	ports.InboxService
	item      *domain.Inbox
	err       error
	gotRef    domain.InboxRef
	gotFilter domain.InboxFilter
}

func (f *inboxFake) Get(_ context.Context, ref domain.InboxRef) (*domain.Inbox, error) {
	f.gotRef = ref
	return f.item, f.err
}

func (f *inboxFake) Search(_ context.Context, filter domain.InboxFilter) (domain.Page[domain.Inbox], error) {
	f.gotFilter = filter
	if f.err != nil {
		return domain.Page[domain.Inbox]{}, f.err
	}
	var items []domain.Inbox
	if f.item != nil {
		items = append(items, *f.item)
	}
	return domain.NewPage(items, 11, domain.PageRequest{Skip: filter.Page.Skip, Limit: filter.Page.Limit}), nil
}

type converterFake struct {
	ports.InboxConverter
	result *domain.ConversionResult
	err    error
	gotRef domain.InboxRef
}

func (f *converterFake) Convert(_ context.Context, ref domain.InboxRef) (*domain.ConversionResult, error) {
	f.gotRef = ref
	return f.result, f.err
}

type claimsFake struct {
	ports.ClaimService
	calls int
}

func (f *claimsFake) Update(context.Context, string, domain.Changes) (*domain.Claim, error) {
	f.calls++
	return &domain.Claim{ID: "CLM1"}, nil
}

type documentsFake struct {
	ports.DocumentService
	upload   domain.Upload
	body     string
	err      error
	stored   map[string]string
	openedID string
}

func (f *documentsFake) Upload(_ context.Context, upload domain.Upload, body io.Reader) (*domain.Document, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	f.upload = upload
	f.body = string(raw)
	now := time.Now().UTC()
	return &domain.Document{
		ID:        "DOC1",
		FileName:  upload.FileName,
		FileURL:   "file:///claims/DOC1",
		ClaimID:   upload.ClaimID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (f *documentsFake) Get(context.Context, string) (*domain.Document, error) {
	return nil, domain.WrapError(domain.ErrNotFound, "get document", io.EOF)
}

func (f *documentsFake) Open(_ context.Context, id string) (*domain.Document, io.ReadCloser, error) {
	f.openedID = id
	content, ok := f.stored[id]
	if !ok {
		return nil, nil, domain.WrapError(domain.ErrNotFound, "open document", io.EOF)
	}
	size := int64(len(content))
	doc := &domain.Document{ID: id, FileName: "estimate.pdf", ContentType: "application/pdf", SizeBytes: &size}
	return doc, io.NopCloser(strings.NewReader(content)), nil
}

type analysisFake struct {
	ports.AnalysisService
	schema domain.SchemaType
	att    domain.Attachment
	opts   domain.GenerationRequest
}

func (f *analysisFake) AnalyzeDocument(_ context.Context, schemaType domain.SchemaType, att domain.Attachment, opts domain.GenerationRequest) (domain.AnalysisResult, error) {
	f.schema = schemaType
	f.att = att
	f.opts = opts
	return domain.AnalysisResult{"first_name": "Ada"}, nil
}

type intakeFake struct {
	ports.EmailIntake
	email domain.InboundEmail
	err   error
}

func (f *intakeFake) Receive(_ context.Context, email domain.InboundEmail) (*domain.IntakeResult, error) {
	f.email = email
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IntakeResult{
		InboxID:             "INB1",
		InboxClaimID:        "INB-0000000001",
		PolicyholderID:      "ph_1",
		AttachmentsRecorded: []string{"photo.jpg"},
	}, nil
}

type metricsFake struct {
	emails []error
}

func (m *metricsFake) Middleware(next http.Handler) http.Handler { return next }
func (m *metricsFake) Handler() http.Handler { return http.NotFoundHandler() }
func (m *metricsFake) RecordEmailReceived(err error) { m.emails = append(m.emails, err) }

type testServices struct {
	inbox     *inboxFake
	converter *converterFake
	claims    *claimsFake
	documents *documentsFake
	analysis  *analysisFake
	intake    *intakeFake
	metrics   *metricsFake
}

func newTestServices() *testServices {
	return &testServices{
		inbox:     &inboxFake{},
		converter: &converterFake{},
		claims:    &claimsFake{},
		documents: &documentsFake{},
		analysis:  &analysisFake{},
		intake:    &intakeFake{},
		metrics:   &metricsFake{},
	}
}

func (s *testServices) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Services{
		Inbox:     s.inbox,
		Converter: s.converter,
		Claims:    s.claims,
		Documents: s.documents,
		Analysis:  s.analysis,
		Intake:    s.intake,
	}, s.metrics).Handler()
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestServices().handler(cfg)
}
