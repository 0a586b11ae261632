package httpadapter

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type inboxStatusRequest struct {
	Status          domain.InboxStatus `json:"status"`
	RejectionReason string             `json:"rejection_reason"`
	Metadata        map[string]any     `json:"metadata"`
}

type assignInboxRequest struct {
	AssignedTo string `json:"assigned_to"`
}

type inboxPriorityRequest struct {
	Priority domain.Priority `json:"priority"`
}

type reconcileInboxRequest struct {
	ClaimID string `json:"claim_id"`
}

func (rt *Router) createInbox(w http.ResponseWriter, r *http.Request) {
	var item domain.Inbox
	if err := decodeJSON(r, &item); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := rt.svc.Inbox.Create(r.Context(), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Inbox item created", created)
}

func (rt *Router) searchInbox(w http.ResponseWriter, r *http.Request) {
	filter, err := inboxFilterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := rt.svc.Inbox.Search(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "Inbox items retrieved", page)
}

func (rt *Router) exportInbox(w http.ResponseWriter, r *http.Request) {
	filter, err := inboxFilterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := rt.svc.Inbox.Export(r.Context(), filter, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	name := "inbox-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func inboxFilterFromQuery(r *http.Request) (domain.InboxFilter, error) {
	page, err := pageFromQuery(r)
	if err != nil {
		return domain.InboxFilter{}, err
	}
	from, err := dateQuery(r, "date_from")
	if err != nil {
		return domain.InboxFilter{}, err
	}
	to, err := dateQuery(r, "date_to")
	if err != nil {
		return domain.InboxFilter{}, err
	}
	return domain.InboxFilter{
		PolicyholderID: query(r, "policyholder_id"),
		PolicyID:       query(r, "policy_id"),
		InboxStatus:    domain.InboxStatus(query(r, "inbox_status")),
		ClaimStatus:    domain.ClaimStatus(query(r, "claim_status")),
		EventType:      domain.EventType(query(r, "event_type")),
		NameSearch:     query(r, "name_search"),
		DateFrom:       from,
		DateTo:         to,
		AssignedTo:     query(r, "assigned_to"),
		Priority:       domain.Priority(query(r, "priority")),
		Page:           page,
	}, nil
}

func (rt *Router) inboxStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.svc.Inbox.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Inbox statistics retrieved", stats)
}

// inboxRef resolves the {id} path value.
func inboxRef(r *http.Request) (domain.InboxRef, error) {
	return domain.ParseInboxRef(r.PathValue("id"))
}

func (rt *Router) getInbox(w http.ResponseWriter, r *http.Request) {
	ref, err := inboxRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := rt.svc.Inbox.Get(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Inbox item retrieved", item)
}

func (rt *Router) updateInbox(w http.ResponseWriter, r *http.Request) {
	ref, err := inboxRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	changes, err := decodeChanges(r, domain.InboxFields())
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := rt.svc.Inbox.Update(r.Context(), ref, changes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Inbox item updated", item)
}

func (rt *Router) updateInboxStatus(w http.ResponseWriter, r *http.Request) {
	ref, err := inboxRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req inboxStatusRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := rt.svc.Inbox.UpdateStatus(r.Context(), ref, req.Status, req.RejectionReason, req.Metadata)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Inbox status updated", item)
}

func (rt *Router) assignInbox(w http.ResponseWriter, r *http.Request) {
	ref, err := inboxRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req assignInboxRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := rt.svc.Inbox.Assign(r.Context(), ref, req.AssignedTo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Inbox item assigned", item)
}

func (rt *Router) setInboxPriority(w http.ResponseWriter, r *http.Request) {
	ref, err := inboxRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req inboxPriorityRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := rt.svc.Inbox.SetPriority(r.Context(), ref, req.Priority)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Inbox priority updated", item)
}

func (rt *Router) deleteInbox(w http.ResponseWriter, r *http.Request) {
	ref, err := inboxRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	existed, err := rt.svc.Inbox.Delete(r.Context(), ref)
	writeDeleted(w, r, "inbox item", ref.Value, existed, err)
}

func (rt *Router) convertInbox(w http.ResponseWriter, r *http.Request) {
	ref, err := inboxRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.svc.Converter.Convert(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Inbox item converted to claim", result)
}

func (rt *Router) reconcileInbox(w http.ResponseWriter, r *http.Request) {
	ref, err := inboxRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reconcileInboxRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.svc.Converter.Reconcile(r.Context(), ref, req.ClaimID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Inbox conversion reconciled", result)
}
