package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const maxJSONBodyBytes = 1 << 20

// envelope is the body shape of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorBody struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: true, Message: message})
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message, Error: message})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	if err := dec.Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
	}
	return nil
}

// decodeStrict rejects unknown fields.
func decodeStrict(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
	}
	return nil
}

func decodeChanges(r *http.Request, fields map[string]domain.FieldSpec) (domain.Changes, error) {
	var raw map[string]json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		return nil, err
	}
	changes, err := domain.DecodeChanges(raw, fields)
	if err != nil {
		return nil, err
	}
	if changes.Empty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode changes", errors.New("no fields to update"))
	}
	return changes, nil
}

// pageFromQuery reads skip and limit. Range checks happen in the use cases.
func pageFromQuery(r *http.Request) (domain.PageRequest, error) {
	skip, err := intQuery(r, "skip")
	if err != nil {
		return domain.PageRequest{}, err
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		return domain.PageRequest{}, err
	}
	return domain.PageRequest{Skip: skip, Limit: limit}, nil
}

func intQuery(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse query", fmt.Errorf("%s must be an integer", name))
	}
	return n, nil
}

func dateQuery(r *http.Request, name string) (*domain.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse query", fmt.Errorf("%s: %w", name, err))
	}
	return &d, nil
}

func query(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}

// listEnvelope flattens a page into the response body next to success and message.
type listEnvelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	domain.Page[T]
}

func writePage[T any](w http.ResponseWriter, message string, page domain.Page[T]) {
	writeJSON(w, http.StatusOK, listEnvelope[T]{Success: true, Message: message, Page: page})
}

func writeDeleted(w http.ResponseWriter, r *http.Request, entity, id string, existed bool, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !existed {
		writeError(w, r, domain.WrapError(domain.ErrNotFound, "delete "+entity, fmt.Errorf("id=%s", id)))
		return
	}
	writeMessage(w, http.StatusOK, strings.ToUpper(entity[:1])+entity[1:]+" deleted")
}
