// Package export renders booking rows for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"carwash/internal/models"

	"github.com/phpdave11/gofpdf"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

const sheetName = "Bookings"

var Headers = []string{"ID", "Name", "Email", "Phone", "Service", "Date", "Time", "Status", "Message", "Created At"}

// ParseFormat accepts csv, xlsx or pdf.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// FileName is bookings_YYYY-MM-DD.<ext> for the given day.
func FileName(f Format, now time.Time) string {
	return fmt.Sprintf("bookings_%s.%s", now.Format(models.DateLayout), f)
}

// Render encodes bookings in the requested format.
func Render(f Format, bookings []*models.Booking, now time.Time) ([]byte, error) {
	switch f {
	case FormatCSV:
		return CSV(bookings)
	case FormatXLSX:
		return XLSX(bookings)
	case FormatPDF:
		return PDF(bookings, now)
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}

func row(b *models.Booking) []string {
	return []string{
		b.ID, b.Name, b.Email, b.Phone, b.Service, b.Date, b.Time,
		string(b.Status), b.Message, b.CreatedAt.Format(models.TimestampLayout),
	}
}

func CSV(bookings []*models.Booking) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Headers); err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if err := w.Write(row(b)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("error writing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX writes a single sheet with a styled header and status-coloured rows.
func XLSX(bookings []*models.Booking) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	styles := make(map[models.BookingStatus]int)
	for i, b := range bookings {
		r := i + 2
		for j, v := range row(b) {
			cell, _ := excelize.CoordinatesToCellName(j+1, r)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		styleID, ok := styles[b.Status]
		if !ok {
			styleID, err = f.NewStyle(&excelize.Style{
				Fill:      excelize.Fill{Type: "pattern", Color: []string{statusColor(b.Status)}, Pattern: 1},
				Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
			})
			if err != nil {
				return nil, err
			}
			styles[b.Status] = styleID
		}
		first, _ := excelize.CoordinatesToCellName(1, r)
		last, _ := excelize.CoordinatesToCellName(len(Headers), r)
		_ = f.SetCellStyle(sheetName, first, last, styleID)
	}

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "B", "D", 22)
	_ = f.SetColWidth(sheetName, "E", "E", 28)
	_ = f.SetColWidth(sheetName, "F", "H", 12)
	_ = f.SetColWidth(sheetName, "I", "I", 40)
	_ = f.SetColWidth(sheetName, "J", "J", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error saving file: %w", err)
	}
	return buf.Bytes(), nil
}

func statusColor(s models.BookingStatus) string {
	switch s {
	case models.StatusPending:
		return "#FFEB9C"
	case models.StatusConfirmed:
		return "#DDEBF7"
	case models.StatusCompleted:
		return "#C6EFCE"
	case models.StatusCancelled:
		return "#FFC7CE"
	default:
		return "#FFFFFF"
	}
}

var pdfWidths = []float64{18, 30, 45, 25, 45, 22, 14, 22, 36, 20}

// PDF is a landscape report: title, per-status totals and a row table.
func PDF(bookings []*models.Booking, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Bookings", false)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Car Wash Bookings")
	pdf.Ln(10)

	var stats models.Stats
	for _, b := range bookings {
		stats.Add(b.Status)
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s", now.Format(models.TimestampLayout)))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Total: %d  Pending: %d  Confirmed: %d  Completed: %d  Cancelled: %d",
		stats.Total, stats.Pending, stats.Confirmed, stats.Completed, stats.Cancelled))
	pdf.Ln(9)

	header := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(221, 235, 247)
		for i, h := range Headers {
			pdf.CellFormat(pdfWidths[i], 7, h, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 7)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, b := range bookings {
		if pdf.GetY()+6 > pageHeight-bottom-12 {
			pdf.AddPage()
			header()
		}
		r := row(b)
		r[len(r)-1] = b.CreatedAt.Format(models.DateLayout)
		for i, v := range r {
			pdf.CellFormat(pdfWidths[i], 6, tr(truncate(v, pdfWidths[i])), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("error writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// truncate keeps roughly as many characters as fit a column at 7pt.
func truncate(s string, width float64) string {
	limit := int(width / 1.6)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 1 {
		return string(r[:limit])
	}
	return string(r[:limit-1]) + "…"
}
