package export

import (
	"io"
	"time"

	"gigbook/internal/models"
)

// ContentType is the MIME type of the workbook WriteBookings produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the sheet WriteBookings fills.
const SheetName = "Bookings"

var bookingColumns = []string{
	"Gig Date", "Venue", "Comedian", "Email", "Requested Spot", "Assigned Spot", "Status", "Created",
}

// WriteBookings writes one row per booking. gigs maps gig ids to their gig;
// bookings of unknown gigs get blank gig columns.
func WriteBookings(out io.Writer, bookings []models.Booking, gigs map[string]*models.Gig) error {
	w := newSheetWriter()
	defer w.close()

	if err := w.addSheet(SheetName); err != nil {
		return err
	}
	if err := w.writeHeader(bookingColumns); err != nil {
		return err
	}

	for i := range bookings {
		b := &bookings[i]
		var date, venue, assigned string
		if g, ok := gigs[b.GigID]; ok && g != nil {
			date = g.Date
			venue = g.Venue
			assigned = g.SpotLabel(b.AssignedSpotIndex)
		}
		row := []interface{}{
			date,
			venue,
			b.ComedianName,
			b.ComedianEmail,
			b.RequestedSpotType,
			assigned,
			string(b.Status),
			b.CreatedAt.UTC().Format(time.DateTime),
		}
		if err := w.writeRow(row); err != nil {
			return err
		}
	}

	return w.save(out)
}
