package httpadapter

import (
	"net/http"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

func (rt *Router) createPolicyHolder(w http.ResponseWriter, r *http.Request) {
	var ph domain.PolicyHolder
	if err := decodeJSON(r, &ph); err != nil {
		writeError(w, r, err)
		return
	}
	ph.ID = ""
	created, err := rt.svc.PolicyHolders.Create(r.Context(), ph)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Policyholder created", created)
}

func (rt *Router) listPolicyHolders(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.svc.PolicyHolders.List(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "Policyholders retrieved", result)
}

func (rt *Router) getPolicyHolder(w http.ResponseWriter, r *http.Request) {
	ph, err := rt.svc.PolicyHolders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Policyholder retrieved", ph)
}

func (rt *Router) updatePolicyHolder(w http.ResponseWriter, r *http.Request) {
	changes, err := decodeChanges(r, domain.PolicyHolderFields())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ph, err := rt.svc.PolicyHolders.Update(r.Context(), r.PathValue("id"), changes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Policyholder updated", ph)
}

func (rt *Router) deletePolicyHolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existed, err := rt.svc.PolicyHolders.Delete(r.Context(), id)
	writeDeleted(w, r, "policyholder", id, existed, err)
}
