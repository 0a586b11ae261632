package httpadapter

import (
	"net/http"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

type claimStatusRequest struct {
	Status   domain.ClaimStatus `json:"status"`
	Metadata map[string]any     `json:"metadata"`
}

type associateClaimRequest struct {
	PolicyholderID string `json:"policyholder_id"`
	MatchedBy      string `json:"matched_by"`
}

func (rt *Router) createClaim(w http.ResponseWriter, r *http.Request) {
	var details domain.ClaimDetails
	if err := decodeJSON(r, &details); err != nil {
		writeError(w, r, err)
		return
	}
	claim, err := rt.svc.Claims.Create(r.Context(), details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Claim created", claim)
}

func (rt *Router) searchClaims(w http.ResponseWriter, r *http.Request) {
	filter, err := claimFilterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := rt.svc.Claims.Search(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "Claims retrieved", page)
}

func claimFilterFromQuery(r *http.Request) (domain.ClaimFilter, error) {
	page, err := pageFromQuery(r)
	if err != nil {
		return domain.ClaimFilter{}, err
	}
	from, err := dateQuery(r, "date_from")
	if err != nil {
		return domain.ClaimFilter{}, err
	}
	to, err := dateQuery(r, "date_to")
	if err != nil {
		return domain.ClaimFilter{}, err
	}
	return domain.ClaimFilter{
		PolicyholderID: query(r, "policyholder_id"),
		PolicyID:       query(r, "policy_id"),
		Status:         domain.ClaimStatus(query(r, "status")),
		EventType:      domain.EventType(query(r, "event_type")),
		NameSearch:     query(r, "name_search"),
		DateFrom:       from,
		DateTo:         to,
		Page:           page,
	}, nil
}

func (rt *Router) getClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := rt.svc.Claims.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Claim retrieved", claim)
}

func (rt *Router) updateClaim(w http.ResponseWriter, r *http.Request) {
	changes, err := decodeChanges(r, domain.ClaimFields())
	if err != nil {
		writeError(w, r, err)
		return
	}
	claim, err := rt.svc.Claims.Update(r.Context(), r.PathValue("id"), changes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Claim updated", claim)
}

func (rt *Router) updateClaimStatus(w http.ResponseWriter, r *http.Request) {
	var req claimStatusRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	claim, err := rt.svc.Claims.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.Metadata)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Claim status updated", claim)
}

func (rt *Router) associateClaim(w http.ResponseWriter, r *http.Request) {
	var req associateClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	claim, err := rt.svc.Claims.AssociatePolicyHolder(r.Context(), r.PathValue("id"), req.PolicyholderID, req.MatchedBy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Claim associated with policyholder", claim)
}

func (rt *Router) deleteClaim(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existed, err := rt.svc.Claims.Delete(r.Context(), id)
	writeDeleted(w, r, "claim", id, existed, err)
}
