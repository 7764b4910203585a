package models

import "time"

// BookingStatus is the lifecycle state of a booking request.
type BookingStatus string

const (
	StatusPending  BookingStatus = "pending"
	StatusApproved BookingStatus = "approved"
	StatusRejected BookingStatus = "rejected"
	StatusRemoved  BookingStatus = "removed"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusRemoved:
		return true
	}
	return false
}

// Active reports whether a booking in this status blocks a new request for the same gig.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Booking is a comedian's request for a spot on a gig.
type Booking struct {
	ID                string        `json:"id" bson:"_id"`
	GigID             string        `json:"gigId" bson:"gigId"`
	ComedianID        string        `json:"comedianId" bson:"comedianId"`
	ComedianEmail     string        `json:"comedianEmail" bson:"comedianEmail"`
	ComedianName      string        `json:"comedianName" bson:"comedianName"`
	RequestedSpotType string        `json:"requestedSpotType" bson:"requestedSpotType"`
	Message           string        `json:"message,omitempty" bson:"message,omitempty"`
	Status            BookingStatus `json:"status" bson:"status"`
	AssignedSpotIndex *int          `json:"assignedSpotIndex" bson:"assignedSpotIndex"` // set on approval
	RejectionReason   string        `json:"rejectionReason,omitempty" bson:"rejectionReason,omitempty"`
	ApprovedBy        string        `json:"approvedBy,omitempty" bson:"approvedBy,omitempty"`
	ApprovedAt        *time.Time    `json:"approvedAt,omitempty" bson:"approvedAt,omitempty"`
	CreatedAt         time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt" bson:"updatedAt"`
	Version           int64         `json:"version" bson:"version"`
}

// Clone returns a copy that does not share pointer fields.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.AssignedSpotIndex != nil {
		idx := *b.AssignedSpotIndex
		c.AssignedSpotIndex = &idx
	}
	if b.ApprovedAt != nil {
		at := *b.ApprovedAt
		c.ApprovedAt = &at
	}
	return &c
}

// BookingWithGig is a booking enriched with its gig for listings.
type BookingWithGig struct {
	Booking
	Gig *Gig `json:"gig,omitempty"`
}
