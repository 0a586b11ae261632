package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const multipartMemoryBytes = 8 << 20

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.uploadMaxBytes > 0 {
		if r.ContentLength > rt.uploadMaxBytes {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", rt.uploadMaxBytes))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeErrorMessage(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	upload := domain.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		SizeBytes:   header.Size,
		ClaimID:     formOrQuery(r, "claim_id"),
		InboxID:     formOrQuery(r, "inbox_id"),
	}
	doc, err := rt.svc.Documents.Upload(r.Context(), upload, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "File uploaded successfully", doc)
}

func formOrQuery(r *http.Request, name string) string {
	if v := r.FormValue(name); v != "" {
		return v
	}
	return query(r, name)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := rt.svc.Documents.List(r.Context(), domain.DocumentFilter{
		ClaimID:     query(r, "claim_id"),
		InboxID:     query(r, "inbox_id"),
		ContentType: query(r, "content_type"),
		Page:        page,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "Documents retrieved", result)
}

func (rt *Router) listClaimDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.svc.Documents.ListByClaim(r.Context(), r.PathValue("claim_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "Documents retrieved", domain.NewPage(docs, len(docs), domain.PageRequest{}))
}

func (rt *Router) listInboxDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.svc.Documents.ListByInbox(r.Context(), r.PathValue("inbox_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "Documents retrieved", domain.NewPage(docs, len(docs), domain.PageRequest{}))
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.svc.Documents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Document retrieved", doc)
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, body, err := rt.svc.Documents.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer body.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	if doc.SizeBytes != nil {
		w.Header().Set("Content-Length", strconv.FormatInt(*doc.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func (rt *Router) analyzeStoredDocument(w http.ResponseWriter, r *http.Request) {
	schemaType := domain.SchemaType(query(r, "schema_type"))
	if schemaType == "" {
		schemaType = domain.SchemaClaimExtract
	}
	result, err := rt.svc.Analysis.AnalyzeStoredDocument(r.Context(), r.PathValue("id"), schemaType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Document analyzed", map[string]any{
		"document_id": r.PathValue("id"),
		"schema_type": schemaType,
		"result":      result,
	})
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existed, err := rt.svc.Documents.Delete(r.Context(), id)
	writeDeleted(w, r, "document", id, existed, err)
}

// readFormFile loads one multipart file into memory, rejecting files above limit.
func readFormFile(r *http.Request, field string, limit int64) (domain.Attachment, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return domain.Attachment{}, domain.WrapError(domain.ErrInvalidInput, "read form file", fmt.Errorf("multipart field '%s' is required", field))
	}
	defer file.Close()
	return readAttachment(file, header, limit)
}

func readAttachment(file multipart.File, header *multipart.FileHeader, limit int64) (domain.Attachment, error) {
	var reader io.Reader = file
	if limit > 0 {
		reader = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return domain.Attachment{}, domain.WrapError(domain.ErrInvalidInput, "read form file", fmt.Errorf("%s exceeds %d bytes", header.Filename, limit))
	}
	if len(data) == 0 {
		return domain.Attachment{}, domain.WrapError(domain.ErrInvalidInput, "read form file", fmt.Errorf("%s is empty", header.Filename))
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return domain.Attachment{Name: header.Filename, MIMEType: mimeType, Data: data}, nil
}
