package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

const (
	requestsSheet = "requests"
	linesSheet    = "order_lines"
	summarySheet  = "summary"
)

var requestColumns = []string{
	"ID", "Title", "Requestor", "Department", "Vendor", "VAT ID",
	"Commodity Group", "Status", "Total Cost", "Created", "Updated",
}

var lineColumns = []string{
	"Request ID", "Position", "Description", "Unit Price", "Amount", "Unit", "Total Price",
}

// RequestsXLSX renders requests and their statistics as a workbook with a
// requests sheet, an order lines sheet and a summary sheet.
func RequestsXLSX(requests []procurement.ProcurementRequest, stats procurement.Statistics) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", requestsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(linesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(requestsSheet, "A1", &requestColumns); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(linesSheet, "A1", &lineColumns); err != nil {
		return nil, err
	}

	lineRow := 2
	for i, r := range requests {
		row := []interface{}{
			r.ID, r.Title, r.RequestorName, r.Department, r.VendorName, r.VATID,
			groupLabel(r.CommodityGroup), string(r.Status), r.TotalCost.InexactFloat64(),
			r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339),
		}
		if err := f.SetSheetRow(requestsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
		for j, l := range r.OrderLines {
			lr := []interface{}{
				r.ID, j + 1, l.PositionDescription, l.UnitPrice.InexactFloat64(), l.Amount, l.Unit, l.TotalPrice.InexactFloat64(),
			}
			if err := f.SetSheetRow(linesSheet, fmt.Sprintf("A%d", lineRow), &lr); err != nil {
				return nil, err
			}
			lineRow++
		}
	}

	if err := writeSummary(f, stats); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeSummary fills the summary sheet: totals, status counts and the commodity breakdown.
func writeSummary(f *excelize.File, stats procurement.Statistics) error {
	rows := [][]interface{}{
		{"Procurement Requests"},
		nil,
		{"Total Requests", stats.TotalRequests},
		{"Total Cost", stats.PriceStats.TotalCost.InexactFloat64()},
		{"Average Cost", stats.PriceStats.AverageCost.InexactFloat64()},
		nil,
		{"Status", "Count"},
	}
	for _, s := range procurement.Statuses {
		if n, ok := stats.StatusDistribution[s]; ok {
			rows = append(rows, []interface{}{string(s), n})
		}
	}
	rows = append(rows, nil, []interface{}{"Commodity Group", "Count", "Total Value"})
	for _, b := range stats.CommodityBreakdown {
		rows = append(rows, []interface{}{b.CommodityGroup, b.Count, b.TotalValue.InexactFloat64()})
	}

	for i, row := range rows {
		if row == nil {
			continue
		}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("summary row %d: %w", i+1, err)
		}
	}
	return nil
}

// RequestPDF renders a one-request summary: header fields, order lines and the
// status history.
func RequestPDF(r procurement.ProcurementRequest) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, tr("Procurement Request: "+r.Title))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	fields := [][2]string{
		{"ID", r.ID},
		{"Requestor", r.RequestorName},
		{"Department", r.Department},
		{"Vendor", r.VendorName},
		{"VAT ID", r.VATID},
		{"Commodity Group", groupLabel(r.CommodityGroup)},
		{"Status", string(r.Status)},
		{"Created", r.CreatedAt.Format(time.RFC3339)},
	}
	for _, kv := range fields {
		pdf.Cell(0, 6, tr(fmt.Sprintf("%s: %s", kv[0], kv[1])))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(80, 6, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Unit Price", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Unit", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Total", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, l := range r.OrderLines {
		pdf.CellFormat(80, 6, tr(l.PositionDescription), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, l.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", l.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, tr(l.Unit), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, l.TotalPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(155, 6, "Total Cost", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, r.TotalCost.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.Ln(10)

	pdf.Cell(0, 6, "Status History")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	for _, h := range r.History {
		from := string(h.From)
		if from == "" {
			from = "-"
		}
		line := fmt.Sprintf("%s  %s -> %s  %s", h.ChangedAt.Format(time.RFC3339), from, h.To, h.Notes)
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func groupLabel(group string) string {
	if group == "" {
		return procurement.NotApplicable
	}
	return group
}
