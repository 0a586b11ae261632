package httpadapter

import (
	"net/http"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

type upsertAutouploadRequest struct {
	Alias           string `json:"alias"`
	Domain          string `json:"domain"`
	IsUserGenerated *bool  `json:"is_user_generated"`
}

func (rt *Router) listAutouploadEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := rt.svc.Autoupload.List(r.Context(), r.PathValue("policyholder_id"), query(r, "alias"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Autoupload emails retrieved", withAddresses(emails))
}

func (rt *Router) getAutouploadEmail(w http.ResponseWriter, r *http.Request) {
	email, err := rt.svc.Autoupload.Get(r.Context(), r.PathValue("policyholder_id"), r.PathValue("alias"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Autoupload email retrieved", withAddress(*email))
}

func (rt *Router) upsertAutouploadEmail(w http.ResponseWriter, r *http.Request) {
	var req upsertAutouploadRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	email := domain.AutouploadEmail{
		PolicyHolderID:  r.PathValue("policyholder_id"),
		Alias:           req.Alias,
		Domain:          req.Domain,
		IsUserGenerated: true,
	}
	if req.IsUserGenerated != nil {
		email.IsUserGenerated = *req.IsUserGenerated
	}
	saved, err := rt.svc.Autoupload.Upsert(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Autoupload email saved", withAddress(*saved))
}

func (rt *Router) deleteAutouploadEmail(w http.ResponseWriter, r *http.Request) {
	deleted, err := rt.svc.Autoupload.Delete(r.Context(), r.PathValue("policyholder_id"), r.PathValue("alias"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Autoupload email deleted", withAddress(*deleted))
}

type autouploadEmailView struct {
	domain.AutouploadEmail
	Address string `json:"address"`
}

func withAddress(email domain.AutouploadEmail) autouploadEmailView {
	return autouploadEmailView{AutouploadEmail: email, Address: email.Address()}
}

func withAddresses(emails []domain.AutouploadEmail) []autouploadEmailView {
	out := make([]autouploadEmailView, 0, len(emails))
	for _, email := range emails {
		out = append(out, withAddress(email))
	}
	return out
}
