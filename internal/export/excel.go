package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"calbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// BookingSource is the slice of storage the exporter reads.
type BookingSource interface {
	GetDailyBookings(ctx context.Context, from, to time.Time) (map[string][]models.Booking, error)
}

// Exporter writes booking ranges to XLSX files for the host.
type Exporter struct {
	source BookingSource
	path   string
	logger *zerolog.Logger
}

func NewExporter(source BookingSource, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{source: source, path: path, logger: logger}
}

const sheetName = "Bookings"

// ExportBookings writes every booking in [from, to] to a dated XLSX file
// and returns its path. Days come out in ascending order, one row per
// booking.
func (e *Exporter) ExportBookings(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	daily, err := e.source.GetDailyBookings(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Bookings %s to %s",
		from.Format(models.DateFormat), to.Format(models.DateFormat)))
	_ = f.MergeCell(sheetName, "A1", "H1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	writeHeaderRow(f)

	row := 3
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		for _, booking := range daily[day.Format(models.DateFormat)] {
			writeBookingRow(f, row, booking)
			row++
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "B", "C", 10)
	_ = f.SetColWidth(sheetName, "D", "D", 25)
	_ = f.SetColWidth(sheetName, "E", "F", 25)
	_ = f.SetColWidth(sheetName, "G", "G", 14)
	_ = f.SetColWidth(sheetName, "H", "H", 38)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		from.Format(models.DateFormat), to.Format(models.DateFormat))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("rows", row-3).Msg("Excel export created")
	return filePath, nil
}

func writeHeaderRow(f *excelize.File) {
	headers := []string{"Date", "Start", "End", "Event type", "Booker", "Email", "Status", "Booking UID"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
}

func writeBookingRow(f *excelize.File, row int, b models.Booking) {
	start := b.StartTime.UTC()
	end := b.EndTime.UTC()
	values := []any{
		start.Format(models.DateFormat),
		start.Format(models.ClockFormat),
		end.Format(models.ClockFormat),
		b.EventTypeTitle,
		b.BookerName,
		b.BookerEmail,
		b.Status,
		b.UID,
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheetName, cell, v)
	}

	if b.Status != models.StatusConfirmed {
		style, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Color: "#808080", Italic: true},
		})
		if err == nil {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(values), row)
			_ = f.SetCellStyle(sheetName, first, last, style)
		}
	}
}
