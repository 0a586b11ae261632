package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrAlreadyConverted  = errors.New("inbox item already converted")
	ErrPartialConversion = errors.New("partial conversion failure")
	ErrPartialTransfer   = errors.New("partial document transfer")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
	// ErrConversionRolledBack marks a converted inbox item returned to its open status because
	// its claim was never written.
	ErrConversionRolledBack = errors.New("conversion rolled back")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// AlreadyConvertedError carries the claim an inbox item was converted into.
type AlreadyConvertedError struct {
	InboxID          string
	ConvertedClaimID string
}

func (e *AlreadyConvertedError) Error() string {
	return fmt.Sprintf("inbox item %s already converted to claim %s", e.InboxID, e.ConvertedClaimID)
}

func (e *AlreadyConvertedError) Is(target error) bool {
	return target == ErrAlreadyConverted
}

// ConversionStep names a write of the conversion workflow.
type ConversionStep string

const (
	StepMarkConverted     ConversionStep = "mark_converted"
	StepCreateClaim       ConversionStep = "create_claim"
	StepTransferDocuments ConversionStep = "transfer_documents"
	StepDeleteInbox       ConversionStep = "delete_inbox"
	StepRecordConversion  ConversionStep = "record_conversion"
	StepCommit            ConversionStep = "commit"
)

// PartialConversionError reports a conversion that stopped after the claim was written.
// Recovery is manual: re-run transfer and finalization against ClaimID.
type PartialConversionError struct {
	InboxID string
	ClaimID string
	Step    ConversionStep
	Err     error
}

func (e *PartialConversionError) Error() string {
	return fmt.Sprintf("conversion of inbox %s stopped at %s after claim %s was created: %v", e.InboxID, e.Step, e.ClaimID, e.Err)
}

func (e *PartialConversionError) Unwrap() error { return e.Err }

func (e *PartialConversionError) Is(target error) bool {
	return target == ErrPartialConversion
}

// TransferError lists documents that still reference the source inbox item after a transfer.
type TransferError struct {
	InboxID string
	ClaimID string
	Failed  []string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%d document(s) still owned by inbox %s after transfer to claim %s: %v", len(e.Failed), e.InboxID, e.ClaimID, e.Failed)
}

func (e *TransferError) Is(target error) bool {
	return target == ErrPartialTransfer
}
