package store

import "gigbook/internal/models"

// OpKind is the kind of write in a batch.
type OpKind int

const (
	OpInsertGig OpKind = iota
	OpUpdateGig
	OpDeleteGig
	OpInsertBooking
	OpUpdateBooking
	OpDeleteGigBookings
	OpPutComedian
)

func (k OpKind) String() string {
	switch k {
	case OpInsertGig:
		return "insert_gig"
	case OpUpdateGig:
		return "update_gig"
	case OpDeleteGig:
		return "delete_gig"
	case OpInsertBooking:
		return "insert_booking"
	case OpUpdateBooking:
		return "update_booking"
	case OpDeleteGigBookings:
		return "delete_gig_bookings"
	case OpPutComedian:
		return "put_comedian"
	default:
		return "unknown"
	}
}

// Op is one write. Exactly one of the document fields is set, except for
// deletes which only carry ID.
type Op struct {
	Kind     OpKind
	ID       string
	Gig      *models.Gig
	Booking  *models.Booking
	Comedian *models.Comedian
}

// Batch collects writes applied atomically by Store.Apply.
type Batch struct {
	Ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// InsertGig adds a new gig. Its version becomes 1.
func (b *Batch) InsertGig(g *models.Gig) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpInsertGig, ID: g.ID, Gig: g})
	return b
}

// UpdateGig replaces a gig if its stored version equals g.Version.
func (b *Batch) UpdateGig(g *models.Gig) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpUpdateGig, ID: g.ID, Gig: g})
	return b
}

// DeleteGig removes a gig.
func (b *Batch) DeleteGig(id string) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpDeleteGig, ID: id})
	return b
}

// InsertBooking adds a new booking. Its version becomes 1.
func (b *Batch) InsertBooking(bk *models.Booking) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpInsertBooking, ID: bk.ID, Booking: bk})
	return b
}

// UpdateBooking replaces a booking if its stored version equals bk.Version.
func (b *Batch) UpdateBooking(bk *models.Booking) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpUpdateBooking, ID: bk.ID, Booking: bk})
	return b
}

// DeleteGigBookings removes every booking of a gig.
func (b *Batch) DeleteGigBookings(gigID string) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpDeleteGigBookings, ID: gigID})
	return b
}

// PutComedian inserts a profile when c.Version is 0, otherwise updates it
// conditionally on the version.
func (b *Batch) PutComedian(c *models.Comedian) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpPutComedian, ID: c.ID, Comedian: c})
	return b
}

// Empty reports whether the batch has no writes.
func (b *Batch) Empty() bool {
	return b == nil || len(b.Ops) == 0
}

// TouchesGigs reports whether the batch writes any gig document.
func (b *Batch) TouchesGigs() bool {
	for _, op := range b.Ops {
		switch op.Kind {
		case OpInsertGig, OpUpdateGig, OpDeleteGig:
			return true
		}
	}
	return false
}

// Committed advances the in-memory versions after a successful apply.
// Backends call it once the writes are durable.
func (b *Batch) Committed() {
	for _, op := range b.Ops {
		switch op.Kind {
		case OpInsertGig:
			op.Gig.Version = 1
		case OpUpdateGig:
			op.Gig.Version++
		case OpInsertBooking:
			op.Booking.Version = 1
		case OpUpdateBooking:
			op.Booking.Version++
		case OpPutComedian:
			op.Comedian.Version++
		}
	}
}
