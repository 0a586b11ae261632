package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

// memStore backs the repository fakes. failures maps an operation name such as
// "claims.Create" to the error that operation returns.
type memStore struct {
	mu            sync.Mutex
	inbox         map[string]domain.Inbox
	claims        map[string]domain.Claim
	docs          map[string]domain.Document
	ledger        map[string]domain.ConversionRecord
	policyholders map[string]domain.PolicyHolder
	aliases       map[string]domain.AutouploadEmail
	failures      map[string]error
	stuckDocs     map[string]bool
	calls         []string
}

func newMemStore() *memStore {
	return &memStore{
		inbox:         map[string]domain.Inbox{},
		claims:        map[string]domain.Claim{},
		docs:          map[string]domain.Document{},
		ledger:        map[string]domain.ConversionRecord{},
		policyholders: map[string]domain.PolicyHolder{},
		aliases:       map[string]domain.AutouploadEmail{},
		failures:      map[string]error{},
		stuckDocs:     map[string]bool{},
	}
}

func (s *memStore) hit(op string) error {
	s.calls = append(s.calls, op)
	return s.failures[op]
}

type memSnapshot struct {
	inbox  map[string]domain.Inbox
	claims map[string]domain.Claim
	docs   map[string]domain.Document
	ledger map[string]domain.ConversionRecord
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{inbox: cloneMap(s.inbox), claims: cloneMap(s.claims), docs: cloneMap(s.docs), ledger: cloneMap(s.ledger)}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox, s.claims, s.docs, s.ledger = snap.inbox, snap.claims, snap.docs, snap.ledger
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memStore) seedInbox(item domain.Inbox) domain.Inbox {
	if item.ID == "" {
		item.ID = domain.NewInboxID()
	}
	if item.ClaimID == "" {
		item.ClaimID = domain.NewExternalInboxID()
	}
	item.ApplyDefaults()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = item.CreatedAt
	s.inbox[item.ID] = item
	return item
}

func (s *memStore) seedDocument(id, inboxID, claimID string) domain.Document {
	now := time.Now().UTC()
	doc := domain.Document{
		ID: id, FileName: id + ".pdf", FileURL: "file:///" + id, InboxID: inboxID, ClaimID: claimID,
		CreatedAt: now, UpdatedAt: now,
	}
	s.docs[id] = doc
	return doc
}

func (s *memStore) documentsOwnedBy(claimID, inboxID string) []domain.Document {
	out := []domain.Document{}
	for _, doc := range s.docs {
		if (claimID != "" && doc.ClaimID == claimID) || (inboxID != "" && doc.InboxID == inboxID) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// memUnitOfWork rolls the store back when fn fails in atomic mode. commitErr simulates a failed
// commit after fn succeeded.
type memUnitOfWork struct {
	store     *memStore
	atomic    bool
	commitErr error
}

func (u *memUnitOfWork) Atomic() bool { return u.atomic }

func (u *memUnitOfWork) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if !u.atomic {
		return fn(ctx)
	}
	snap := u.store.snapshot()
	if err := fn(ports.WithTxContext(ctx, "memtx")); err != nil {
		u.store.restore(snap)
		return err
	}
	if u.commitErr != nil {
		u.store.restore(snap)
		return &ports.CommitError{Err: u.commitErr}
	}
	return nil
}

type memInbox struct{ s *memStore }

func (r memInbox) find(ref domain.InboxRef) (domain.Inbox, bool) {
	var byInternal *domain.Inbox
	for _, item := range r.s.inbox {
		item := item
		if ref.Kind != domain.ByInternalID && item.ClaimID == ref.Value {
			return item, true
		}
		if ref.Kind != domain.ByExternalID && item.ID == ref.Value {
			byInternal = &item
		}
	}
	if byInternal != nil {
		return *byInternal, true
	}
	return domain.Inbox{}, false
}

func (r memInbox) Create(_ context.Context, item *domain.Inbox) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("inbox.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.inbox {
		if existing.ClaimID == item.ClaimID {
			return domain.WrapError(domain.ErrInvalidInput, "insert inbox item", errors.New("duplicate claim_id"))
		}
	}
	r.s.inbox[item.ID] = *item
	return nil
}

func (r memInbox) Get(_ context.Context, ref domain.InboxRef) (*domain.Inbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("inbox.Get"); err != nil {
		return nil, err
	}
	item, ok := r.find(ref)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get inbox item", fmt.Errorf("inbox item %s", ref.Value))
	}
	return &item, nil
}

func (r memInbox) Search(_ context.Context, filter domain.InboxFilter) ([]domain.Inbox, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("inbox.Search"); err != nil {
		return nil, 0, err
	}
	matched := []domain.Inbox{}
	for _, item := range r.s.inbox {
		if inboxMatches(filter, item) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	start := min(filter.Page.Skip, total)
	end := min(start+filter.Page.Limit, total)
	return matched[start:end], total, nil
}

func inboxMatches(f domain.InboxFilter, item domain.Inbox) bool {
	switch {
	case f.PolicyholderID != "" && item.PolicyholderID != f.PolicyholderID,
		f.PolicyID != "" && item.PolicyID != f.PolicyID,
		f.InboxStatus != "" && item.InboxStatus != f.InboxStatus,
		f.ClaimStatus != "" && item.ClaimStatus != f.ClaimStatus,
		f.EventType != "" && item.EventType != f.EventType,
		f.AssignedTo != "" && item.AssignedTo != f.AssignedTo,
		f.Priority != "" && item.Priority != f.Priority,
		f.DateFrom != nil && item.EventDate.Before(f.DateFrom.Time),
		f.DateTo != nil && item.EventDate.After(f.DateTo.Time):
		return false
	}
	if term := strings.ToLower(f.NameSearch); term != "" {
		return strings.Contains(strings.ToLower(item.FirstName), term) || strings.Contains(strings.ToLower(item.LastName), term)
	}
	return true
}

func (r memInbox) CountByStatus(context.Context) (map[domain.InboxStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("inbox.CountByStatus"); err != nil {
		return nil, err
	}
	out := map[domain.InboxStatus]int{}
	for _, item := range r.s.inbox {
		out[item.InboxStatus]++
	}
	return out, nil
}

func (r memInbox) Update(_ context.Context, id string, changes domain.Changes) (*domain.Inbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("inbox.Update"); err != nil {
		return nil, err
	}
	item, ok := r.s.inbox[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "update inbox item", fmt.Errorf("inbox item %s", id))
	}
	for _, ch := range changes {
		text, _ := ch.Value.(string)
		switch ch.Column {
		case "event_location":
			item.EventLocation = text
		case "damage_description":
			item.DamageDescription = text
		case "vehicle_vin":
			item.VehicleVIN = text
		case "policyholder_id":
			item.PolicyholderID = text
		}
	}
	item.UpdatedAt = time.Now().UTC()
	r.s.inbox[id] = item
	return &item, nil
}

func (r memInbox) MergeMetadata(_ context.Context, id string, metadata map[string]any) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("inbox.MergeMetadata"); err != nil {
		return err
	}
	item, ok := r.s.inbox[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "merge inbox metadata", fmt.Errorf("inbox item %s", id))
	}
	merged := cloneMap(item.Metadata)
	for k, v := range metadata {
		merged[k] = v
	}
	item.Metadata = merged
	r.s.inbox[id] = item
	return nil
}

func (r memInbox) transition(op, id string, target domain.InboxStatus, apply func(*domain.Inbox)) (*domain.Inbox, error) {
	if err := r.s.hit(op); err != nil {
		return nil, err
	}
	item, ok := r.s.inbox[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("inbox item %s", id))
	}
	if !item.InboxStatus.Open() && item.InboxStatus != target {
		return nil, domain.WrapError(domain.ErrInvalidState, op, fmt.Errorf("inbox item %s is %s", id, item.InboxStatus))
	}
	apply(&item)
	item.UpdatedAt = time.Now().UTC()
	r.s.inbox[id] = item
	return &item, nil
}

func (r memInbox) UpdateStatus(_ context.Context, id string, update ports.InboxStatusUpdate) (*domain.Inbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.transition("inbox.UpdateStatus", id, update.Status, func(item *domain.Inbox) {
		item.InboxStatus = update.Status
		if update.RejectionReason != "" {
			item.RejectionReason = update.RejectionReason
		}
		if update.Status == domain.InboxRejected && item.ProcessedAt == nil {
			at := update.At
			item.ProcessedAt = &at
		}
		if update.Metadata != nil {
			merged := cloneMap(item.Metadata)
			for k, v := range update.Metadata {
				merged[k] = v
			}
			item.Metadata = merged
		}
	})
}

func (r memInbox) Assign(_ context.Context, id, assignee string) (*domain.Inbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.inbox[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "assign inbox item", fmt.Errorf("inbox item %s", id))
	}
	return r.transition("inbox.Assign", id, item.InboxStatus, func(item *domain.Inbox) {
		item.AssignedTo = assignee
		if item.InboxStatus == domain.InboxNew {
			item.InboxStatus = domain.InboxProcessing
		}
	})
}

func (r memInbox) SetPriority(_ context.Context, id string, priority domain.Priority) (*domain.Inbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.inbox[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "set inbox priority", fmt.Errorf("inbox item %s", id))
	}
	return r.transition("inbox.SetPriority", id, item.InboxStatus, func(item *domain.Inbox) {
		item.Priority = priority
	})
}

func (r memInbox) MarkConverted(_ context.Context, ref domain.InboxRef, claimID string, at time.Time) (*domain.Inbox, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("inbox.MarkConverted"); err != nil {
		return nil, err
	}
	item, ok := r.find(ref)
	if !ok || !item.InboxStatus.Open() {
		return nil, domain.WrapError(domain.ErrInvalidState, "mark inbox converted", fmt.Errorf("no open inbox item %s", ref.Value))
	}
	item.InboxStatus = domain.InboxConverted
	item.ConvertedClaimID = claimID
	item.ProcessedAt = &at
	item.UpdatedAt = at
	r.s.inbox[item.ID] = item
	return &item, nil
}

func (r memInbox) RestoreStatus(_ context.Context, id, claimID string, status domain.InboxStatus, processedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("inbox.RestoreStatus"); err != nil {
		return err
	}
	item, ok := r.s.inbox[id]
	if !ok || item.ConvertedClaimID != claimID {
		return domain.WrapError(domain.ErrNotFound, "restore inbox status", fmt.Errorf("inbox item %s", id))
	}
	item.InboxStatus = status
	item.ConvertedClaimID = ""
	item.ProcessedAt = processedAt
	r.s.inbox[id] = item
	return nil
}

func (r memInbox) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("inbox.Delete"); err != nil {
		return false, err
	}
	if _, ok := r.s.inbox[id]; !ok {
		return false, nil
	}
	delete(r.s.inbox, id)
	for docID, doc := range r.s.docs {
		if doc.InboxID == id {
			doc.InboxID = ""
			r.s.docs[docID] = doc
		}
	}
	return true, nil
}

type memClaims struct{ s *memStore }

func (r memClaims) Create(_ context.Context, claim *domain.Claim) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("claims.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.claims {
		if existing.ClaimID == claim.ClaimID {
			return domain.WrapError(domain.ErrInvalidInput, "insert claim", errors.New("duplicate claim_id"))
		}
	}
	r.s.claims[claim.ID] = *claim
	return nil
}

func (r memClaims) lookup(id string) (domain.Claim, bool) {
	for _, claim := range r.s.claims {
		if claim.ClaimID == id {
			return claim, true
		}
	}
	claim, ok := r.s.claims[id]
	return claim, ok
}

func (r memClaims) Get(_ context.Context, id string) (*domain.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("claims.Get"); err != nil {
		return nil, err
	}
	claim, ok := r.lookup(id)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get claim", fmt.Errorf("claim %s", id))
	}
	return &claim, nil
}

func (r memClaims) Search(_ context.Context, filter domain.ClaimFilter) ([]domain.Claim, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("claims.Search"); err != nil {
		return nil, 0, err
	}
	matched := []domain.Claim{}
	for _, claim := range r.s.claims {
		if (filter.Status == "" || claim.ClaimStatus == filter.Status) &&
			(filter.PolicyholderID == "" || claim.PolicyholderID == filter.PolicyholderID) {
			matched = append(matched, claim)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	start := min(filter.Page.Skip, total)
	end := min(start+filter.Page.Limit, total)
	return matched[start:end], total, nil
}

func (r memClaims) Update(_ context.Context, id string, changes domain.Changes) (*domain.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("claims.Update"); err != nil {
		return nil, err
	}
	claim, ok := r.lookup(id)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "update claim", fmt.Errorf("claim %s", id))
	}
	for _, ch := range changes {
		text, _ := ch.Value.(string)
		switch ch.Column {
		case "policyholder_id":
			claim.PolicyholderID = text
		case "matched_by":
			claim.MatchedBy = text
		case "event_location":
			claim.EventLocation = text
		}
	}
	r.s.claims[claim.ID] = claim
	return &claim, nil
}

func (r memClaims) UpdateStatus(_ context.Context, id string, status domain.ClaimStatus, metadata map[string]any) (*domain.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("claims.UpdateStatus"); err != nil {
		return nil, err
	}
	claim, ok := r.lookup(id)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "update claim status", fmt.Errorf("claim %s", id))
	}
	claim.ClaimStatus = status
	if metadata != nil {
		merged := cloneMap(claim.Metadata)
		for k, v := range metadata {
			merged[k] = v
		}
		claim.Metadata = merged
	}
	r.s.claims[claim.ID] = claim
	return &claim, nil
}

func (r memClaims) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("claims.Delete"); err != nil {
		return false, err
	}
	claim, ok := r.lookup(id)
	if !ok {
		return false, nil
	}
	delete(r.s.claims, claim.ID)
	return true, nil
}

type memDocs struct{ s *memStore }

func (r memDocs) Create(_ context.Context, doc *domain.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("docs.Create"); err != nil {
		return err
	}
	r.s.docs[doc.ID] = *doc
	return nil
}

func (r memDocs) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("docs.GetByID"); err != nil {
		return nil, err
	}
	doc, ok := r.s.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
	}
	return &doc, nil
}

func (r memDocs) List(_ context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("docs.List"); err != nil {
		return nil, 0, err
	}
	matched := []domain.Document{}
	for _, doc := range r.s.docs {
		if (filter.ClaimID == "" || doc.ClaimID == filter.ClaimID) &&
			(filter.InboxID == "" || doc.InboxID == filter.InboxID) &&
			(filter.ContentType == "" || doc.ContentType == filter.ContentType) {
			matched = append(matched, doc)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	start := min(filter.Page.Skip, total)
	end := min(start+filter.Page.Limit, total)
	return matched[start:end], total, nil
}

func (r memDocs) ListByClaim(_ context.Context, claimID string) ([]domain.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("docs.ListByClaim"); err != nil {
		return nil, err
	}
	return r.s.documentsOwnedBy(claimID, ""), nil
}

func (r memDocs) ListByInbox(_ context.Context, inboxID string) ([]domain.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("docs.ListByInbox"); err != nil {
		return nil, err
	}
	return r.s.documentsOwnedBy("", inboxID), nil
}

func (r memDocs) TransferInboxToClaim(_ context.Context, inboxID, claimID string, at time.Time) ([]domain.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("docs.TransferInboxToClaim"); err != nil {
		return nil, err
	}
	moved := []domain.Document{}
	for _, doc := range r.s.documentsOwnedBy("", inboxID) {
		if r.s.stuckDocs[doc.ID] {
			continue
		}
		doc.ClaimID = claimID
		doc.InboxID = ""
		doc.UpdatedAt = at
		r.s.docs[doc.ID] = doc
		moved = append(moved, doc)
	}
	return moved, nil
}

func (r memDocs) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("docs.Delete"); err != nil {
		return false, err
	}
	if _, ok := r.s.docs[id]; !ok {
		return false, nil
	}
	delete(r.s.docs, id)
	return true, nil
}

type memLedger struct{ s *memStore }

func (r memLedger) Begin(_ context.Context, rec domain.ConversionRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ledger.Begin"); err != nil {
		return err
	}
	if _, ok := r.s.ledger[rec.InboxID]; ok {
		return domain.WrapError(domain.ErrInvalidInput, "begin conversion", errors.New("duplicate inbox_id"))
	}
	rec.State = domain.ConversionPending
	r.s.ledger[rec.InboxID] = rec
	return nil
}

func (r memLedger) Complete(_ context.Context, rec domain.ConversionRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ledger.Complete"); err != nil {
		return err
	}
	if existing, ok := r.s.ledger[rec.InboxID]; ok {
		rec.StartedAt = existing.StartedAt
	}
	rec.State = domain.ConversionCompleted
	r.s.ledger[rec.InboxID] = rec
	return nil
}

func (r memLedger) Abandon(_ context.Context, inboxID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ledger.Abandon"); err != nil {
		return err
	}
	if rec, ok := r.s.ledger[inboxID]; ok && rec.State == domain.ConversionPending {
		delete(r.s.ledger, inboxID)
	}
	return nil
}

func (r memLedger) Find(_ context.Context, ref domain.InboxRef) (*domain.ConversionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ledger.Find"); err != nil {
		return nil, err
	}
	for _, rec := range r.s.ledger {
		if rec.Matches(ref) {
			return &rec, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "find conversion", fmt.Errorf("conversion of inbox %s", ref.Value))
}

func (r memLedger) ListPending(_ context.Context, before time.Time, limit int) ([]domain.ConversionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ledger.ListPending"); err != nil {
		return nil, err
	}
	out := []domain.ConversionRecord{}
	for _, rec := range r.s.ledger {
		if rec.State == domain.ConversionPending && rec.StartedAt.Before(before) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memPolicyHolders struct{ s *memStore }

func (r memPolicyHolders) Create(_ context.Context, ph *domain.PolicyHolder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("policyholders.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.policyholders {
		if strings.EqualFold(existing.Email, ph.Email) {
			return domain.WrapError(domain.ErrInvalidInput, "insert policyholder", errors.New("duplicate value violates policyholders_email_key"))
		}
	}
	r.s.policyholders[ph.ID] = *ph
	return nil
}

func (r memPolicyHolders) GetByID(_ context.Context, id string) (*domain.PolicyHolder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("policyholders.GetByID"); err != nil {
		return nil, err
	}
	ph, ok := r.s.policyholders[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get policyholder", fmt.Errorf("policyholder %s", id))
	}
	return &ph, nil
}

func (r memPolicyHolders) List(_ context.Context, page domain.PageRequest) ([]domain.PolicyHolder, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("policyholders.List"); err != nil {
		return nil, 0, err
	}
	all := make([]domain.PolicyHolder, 0, len(r.s.policyholders))
	for _, ph := range r.s.policyholders {
		all = append(all, ph)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	start := min(page.Skip, total)
	end := min(start+page.Limit, total)
	return all[start:end], total, nil
}

func (r memPolicyHolders) Update(_ context.Context, id string, changes domain.Changes) (*domain.PolicyHolder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("policyholders.Update"); err != nil {
		return nil, err
	}
	ph, ok := r.s.policyholders[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "update policyholder", fmt.Errorf("policyholder %s", id))
	}
	for _, ch := range changes {
		text, _ := ch.Value.(string)
		switch ch.Column {
		case "phone":
			ph.Phone = text
		case "status":
			ph.Status = text
		case "email":
			ph.Email = text
		}
	}
	r.s.policyholders[id] = ph
	return &ph, nil
}

func (r memPolicyHolders) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("policyholders.Delete"); err != nil {
		return false, err
	}
	if _, ok := r.s.policyholders[id]; !ok {
		return false, nil
	}
	delete(r.s.policyholders, id)
	for key, alias := range r.s.aliases {
		if alias.PolicyHolderID == id {
			delete(r.s.aliases, key)
		}
	}
	return true, nil
}

type publisherFake struct {
	received  []domain.InboxReceived
	converted []domain.ClaimConverted
	err       error
}

func (f *publisherFake) PublishInboxReceived(_ context.Context, event domain.InboxReceived) error {
	if f.err != nil {
		return f.err
	}
	f.received = append(f.received, event)
	return nil
}

func (f *publisherFake) PublishClaimConverted(_ context.Context, event domain.ClaimConverted) error {
	if f.err != nil {
		return f.err
	}
	f.converted = append(f.converted, event)
	return nil
}

type statsCacheFake struct {
	stats       *domain.InboxStats
	invalidated int
}

func (f *statsCacheFake) Get() (domain.InboxStats, bool) {
	if f.stats == nil {
		return domain.InboxStats{}, false
	}
	return *f.stats, true
}

func (f *statsCacheFake) Set(stats domain.InboxStats) { f.stats = &stats }

func (f *statsCacheFake) Invalidate() {
	f.stats = nil
	f.invalidated++
}

type observerFake struct {
	outcomes []string
}

func (f *observerFake) ConversionFinished(outcome string, _ int, _ time.Duration) {
	f.outcomes = append(f.outcomes, outcome)
}

type blobStoreFake struct {
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newBlobStoreFake() *blobStoreFake {
	return &blobStoreFake{objects: map[string][]byte{}}
}

func (f *blobStoreFake) Put(_ context.Context, key, _ string, data io.Reader) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	url := "mem://" + key
	f.objects[url] = raw
	return url, nil
}

func (f *blobStoreFake) Open(_ context.Context, url string) (io.ReadCloser, error) {
	raw, ok := f.objects[url]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open blob", fmt.Errorf("object %s", url))
	}
	return io.NopCloser(strings.NewReader(string(raw))), nil
}

func (f *blobStoreFake) Delete(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	delete(f.objects, url)
	return nil
}

type memAutoupload struct{ s *memStore }

func aliasKey(policyHolderID, alias string) string { return policyHolderID + "/" + alias }

func (r memAutoupload) ListByPolicyHolder(_ context.Context, policyHolderID, alias string) ([]domain.AutouploadEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.AutouploadEmail{}
	for _, email := range r.s.aliases {
		if email.PolicyHolderID == policyHolderID && (alias == "" || email.Alias == alias) {
			out = append(out, email)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func (r memAutoupload) GetByAlias(_ context.Context, policyHolderID, alias string) (*domain.AutouploadEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email, ok := r.s.aliases[aliasKey(policyHolderID, alias)]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get autoupload email", fmt.Errorf("alias %s", alias))
	}
	return &email, nil
}

func (r memAutoupload) Upsert(_ context.Context, email *domain.AutouploadEmail) (*domain.AutouploadEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("autoupload.Upsert"); err != nil {
		return nil, err
	}
	key := aliasKey(email.PolicyHolderID, email.Alias)
	saved := *email
	if existing, ok := r.s.aliases[key]; ok {
		saved.ID = existing.ID
		saved.CreatedAt = existing.CreatedAt
	}
	r.s.aliases[key] = saved
	return &saved, nil
}

func (r memAutoupload) DeleteByAlias(_ context.Context, policyHolderID, alias string) (*domain.AutouploadEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := aliasKey(policyHolderID, alias)
	email, ok := r.s.aliases[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "delete autoupload email", fmt.Errorf("alias %s", alias))
	}
	delete(r.s.aliases, key)
	return &email, nil
}

func (r memAutoupload) Resolve(_ context.Context, addr domain.AutouploadAddress) (*domain.AutouploadEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("autoupload.Resolve"); err != nil {
		return nil, err
	}
	for _, email := range r.s.aliases {
		if email.Alias == addr.Alias && email.Domain == addr.Domain && strings.EqualFold(email.PolicyHolderID, addr.PolicyHolderID) {
			return &email, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "resolve autoupload email", fmt.Errorf("address %s-%s@%s", addr.Alias, addr.PolicyHolderID, addr.Domain))
}

func (s *memStore) seedPolicyHolder(id string) domain.PolicyHolder {
	now := time.Now().UTC()
	ph := domain.PolicyHolder{
		ID: id, FirstName: "Ada", LastName: "Lovelace", DateOfBirth: domain.NewDate(1990, 1, 2),
		Email: id + "@example.com", Phone: "555-0100", LinkedPolicies: []string{"POL-1"},
		Status: domain.DefaultPolicyHolderStatus, CreatedAt: now, UpdatedAt: now,
	}
	s.policyholders[id] = ph
	return ph
}
