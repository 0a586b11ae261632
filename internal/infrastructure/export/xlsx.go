package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

const inboxSheet = "Inbox"

var inboxHeader = []any{
	"Inbox ID", "First name", "Last name", "Event type", "Event date", "Location", "Damage",
	"Estimated amount", "Contact email", "Policyholder", "Status", "Priority", "Assigned to",
	"Converted claim", "Email subject", "Received at",
}

// XLSXExporter writes inbox items as a single-sheet workbook.
type XLSXExporter struct{}

func NewXLSXExporter() *XLSXExporter { return &XLSXExporter{} }

func (XLSXExporter) WriteInbox(w io.Writer, items []domain.Inbox) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", inboxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(inboxSheet, "A1", &inboxHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(inboxHeader))
	if err := f.SetCellStyle(inboxSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := inboxRow(item)
		if err := f.SetSheetRow(inboxSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(inboxSheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(inboxSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func inboxRow(item domain.Inbox) []any {
	var amount any
	if item.EstimatedDamageAmount != nil {
		amount = *item.EstimatedDamageAmount
	}
	return []any{
		item.ClaimID, item.FirstName, item.LastName, string(item.EventType), item.EventDate.String(),
		item.EventLocation, item.DamageDescription, amount, item.ContactEmail, item.PolicyholderID,
		string(item.InboxStatus), string(item.Priority), item.AssignedTo, item.ConvertedClaimID,
		item.EmailSubject, item.CreatedAt.UTC().Format(time.RFC3339),
	}
}
