package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"tradedoc/internal/models"
	"tradedoc/internal/store"
)

const (
	SheetName   = "Transactions"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateLayout  = "02/01/2006"
)

type column struct {
	header string
	value  func(tx models.Transaction, today time.Time) any
}

var deadlineColumns = []column{
	{"Số giao dịch", func(tx models.Transaction, _ time.Time) any { return tx.Trref }},
	{"Mã khách hàng", func(tx models.Transaction, _ time.Time) any { return tx.Custno }},
	{"Tên khách hàng", func(tx models.Transaction, _ time.Time) any { return tx.Custnm }},
	{"Ngày giao dịch", func(tx models.Transaction, _ time.Time) any { return formatDate(tx.Tradate) }},
	{"Loại tiền", func(tx models.Transaction, _ time.Time) any { return tx.Currency }},
	{"Số tiền", func(tx models.Transaction, _ time.Time) any { return tx.Amount.InexactFloat64() }},
	{"Người thụ hưởng", func(tx models.Transaction, _ time.Time) any { return tx.Bencust }},
	{"Nội dung", func(tx models.Transaction, _ time.Time) any { return tx.Remark }},
	{"Hạn khai báo", func(tx models.Transaction, _ time.Time) any { return formatDate(tx.ExpectedDeclarationDate) }},
	{"Trạng thái", func(tx models.Transaction, today time.Time) any { return tx.View(today).Label() }},
}

var postInspectionColumns = append(append([]column{}, deadlineColumns...),
	column{"Số hợp đồng", func(tx models.Transaction, _ time.Time) any { return deref(tx.ContractNumber) }},
	column{"Hạn bổ sung", func(tx models.Transaction, _ time.Time) any { return formatDate(tx.AdditionalDate) }},
	column{"Kiểm duyệt", func(tx models.Transaction, _ time.Time) any { return yesNo(tx.Censored) }},
	column{"Ghi chú kiểm duyệt", func(tx models.Transaction, _ time.Time) any { return deref(tx.NoteCensored) }},
	column{"Hậu kiểm", func(tx models.Transaction, _ time.Time) any { return yesNo(tx.PostInspection) }},
	column{"Ghi chú hậu kiểm", func(tx models.Transaction, _ time.Time) any { return deref(tx.NoteInspection) }},
	column{"Người cập nhật", func(tx models.Transaction, _ time.Time) any { return deref(tx.UpdatedBy) }},
)

// ExportDeadline writes the awaiting or overdue transactions as an xlsx workbook.
func (s *Service) ExportDeadline(ctx context.Context, w io.Writer, view models.View) error {
	if view != models.ViewAwaitingDocuments && view != models.ViewOverdue {
		return fmt.Errorf("%w: %q", ErrUnsupportedView, view)
	}
	today := s.today()
	f, err := viewFilter(view, today)
	if err != nil {
		return err
	}
	return s.export(ctx, w, f, deadlineColumns, today)
}

// ExportPostInspection writes the censored, documents-added transactions whose
// post_inspection flag equals flag.
func (s *Service) ExportPostInspection(ctx context.Context, w io.Writer, flag bool) error {
	added, yes := models.StatusDocumentsAdded, true
	f := store.Filter{Status: &added, Censored: &yes, PostInspection: &flag}
	return s.export(ctx, w, f, postInspectionColumns, s.today())
}

func (s *Service) export(ctx context.Context, w io.Writer, f store.Filter, cols []column, today time.Time) error {
	txs, err := s.store.FindAll(ctx, f)
	if err != nil {
		return err
	}

	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName(book.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.header
	}
	if err := book.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for r, tx := range txs {
		values := make([]any, len(cols))
		for i, c := range cols {
			values[i] = c.value(tx, today)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	if _, err := book.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	s.log.Info().Int("rows", len(txs)).Msg("report exported")
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "Có"
	}
	return "Không"
}
