package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"rentcrm/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet = "Bookings"
	TimelineSheet = "Timeline"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	timeLayout = "2006-01-02 15:04"
)

var bookingColumns = []string{
	"ID", "Status", "Customer", "Email", "Phone", "Rental Company", "Confirmation",
	"Pickup Location", "Pickup Date", "Pickup Time", "Dropoff Location", "Dropoff Date", "Dropoff Time",
	"Total", "MCO", "Payable at Pickup", "Refund", "Modification Fees", "Sales Agent", "Created At",
}

var timelineColumns = []string{"Booking ID", "Date", "Agent", "Message", "Changes"}

// FileName is the suggested attachment name for an export made at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", t.Format("2006-01-02_1504"))
}

// WriteBookings renders bookings into an xlsx workbook with one row per
// booking and one row per timeline entry.
func WriteBookings(w io.Writer, bookings []*models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", BookingsSheet); err != nil {
		return fmt.Errorf("error renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(TimelineSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}
	statusStyles, err := newStatusStyles(f)
	if err != nil {
		return err
	}

	if err := writeHeader(f, BookingsSheet, bookingColumns, headerStyle); err != nil {
		return err
	}
	if err := writeHeader(f, TimelineSheet, timelineColumns, headerStyle); err != nil {
		return err
	}

	timelineRow := 2
	for i, b := range bookings {
		row := i + 2
		if err := writeRow(f, BookingsSheet, row, bookingValues(b)); err != nil {
			return err
		}
		if style, ok := statusStyles[b.Status]; ok {
			cell, _ := excelize.CoordinatesToCellName(2, row)
			_ = f.SetCellStyle(BookingsSheet, cell, cell, style)
		}

		for _, e := range b.Timeline {
			values := []interface{}{b.ID, e.Date.Format(timeLayout), e.AgentName, e.Message, strings.Join(e.Lines(), "\n")}
			if err := writeRow(f, TimelineSheet, timelineRow, values); err != nil {
				return err
			}
			timelineRow++
		}
	}

	_ = f.SetColWidth(BookingsSheet, "A", "A", 38)
	_ = f.SetColWidth(BookingsSheet, "B", "T", 18)
	_ = f.SetColWidth(TimelineSheet, "A", "A", 38)
	_ = f.SetColWidth(TimelineSheet, "B", "D", 24)
	_ = f.SetColWidth(TimelineSheet, "E", "E", 60)
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func newStatusStyles(f *excelize.File) (map[string]int, error) {
	colors := map[string]string{
		models.StatusBooked:    "#E2EFDA",
		models.StatusModified:  "#FFF2CC",
		models.StatusCancelled: "#F8CBAD",
	}
	styles := make(map[string]int, len(colors))
	for status, color := range colors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return nil, fmt.Errorf("error creating style: %w", err)
		}
		styles[status] = id
	}
	return styles, nil
}

func writeHeader(f *excelize.File, sheet string, columns []string, style int) error {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := writeRow(f, sheet, 1, values); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("error writing row %d: %w", row, err)
	}
	return nil
}

func bookingValues(b *models.Booking) []interface{} {
	return []interface{}{
		b.ID,
		b.Status,
		b.FullName,
		b.Email,
		b.Phone,
		b.RentalCompany,
		b.ConfirmationNumber,
		b.PickupLocation,
		b.PickupDate,
		b.PickupTime,
		b.DropoffLocation,
		b.DropoffDate,
		b.DropoffTime,
		b.Total,
		b.MCO,
		b.PayableAtPickup,
		b.RefundAmount,
		strings.Join(b.ModificationFees, ", "),
		b.SalesAgent,
		b.CreatedAt.Format(timeLayout),
	}
}
