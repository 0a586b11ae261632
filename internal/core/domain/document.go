package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document is a stored file owned by at most one claim or inbox item.
type Document struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	FileURL     string    `json:"file_url"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   *int64    `json:"size_bytes,omitempty"`
	ClaimID     string    `json:"claim_id,omitempty"`
	InboxID     string    `json:"inbox_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidateOwner requires exactly one owner, which holds for every newly created document.
func (d Document) ValidateOwner() error {
	hasClaim := strings.TrimSpace(d.ClaimID) != ""
	hasInbox := strings.TrimSpace(d.InboxID) != ""
	switch {
	case hasClaim && hasInbox:
		return WrapError(ErrInvalidInput, "validate document", fmt.Errorf("only one of claim_id or inbox_id may be set"))
	case !hasClaim && !hasInbox:
		return WrapError(ErrInvalidInput, "validate document", fmt.Errorf("one of claim_id or inbox_id is required"))
	}
	if strings.TrimSpace(d.FileName) == "" {
		return WrapError(ErrInvalidInput, "validate document", fmt.Errorf("file_name is required"))
	}
	if strings.TrimSpace(d.FileURL) == "" {
		return WrapError(ErrInvalidInput, "validate document", fmt.Errorf("file_url is required"))
	}
	return nil
}

type DocumentFilter struct {
	ClaimID     string
	InboxID     string
	ContentType string
	Page        PageRequest
}

// TransferResult lists the documents moved from an inbox item to a claim.
type TransferResult struct {
	InboxID   string     `json:"inbox_id"`
	ClaimID   string     `json:"claim_id"`
	Documents []Document `json:"documents"`
}

func (r TransferResult) Count() int { return len(r.Documents) }

// Upload is a file received for storage before it becomes a Document.
type Upload struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	ClaimID     string
	InboxID     string
}

// Validate requires a file name and exactly one owner.
func (u Upload) Validate() error {
	doc := Document{FileName: u.FileName, FileURL: "-", ClaimID: u.ClaimID, InboxID: u.InboxID}
	return doc.ValidateOwner()
}
