package models

import (
	"strconv"
	"time"
)

// SpotKind distinguishes host spots from timed performance spots.
type SpotKind string

const (
	SpotHost  SpotKind = "host"
	SpotTimed SpotKind = "timed"
)

// Gig statuses.
const (
	GigOpen      = "open"
	GigClosed    = "closed"
	GigCancelled = "cancelled"
)

// DateLayout is the wire format of Gig.Date.
const DateLayout = "2006-01-02"

// Spot describes one performance slot of a gig.
type Spot struct {
	Kind    SpotKind `json:"kind" bson:"kind" yaml:"kind"`
	Minutes int      `json:"minutes,omitempty" bson:"minutes,omitempty" yaml:"minutes,omitempty"`
}

// Label returns the human label used to match requested spot types.
func (s Spot) Label() string {
	if s.Kind == SpotHost {
		return "Host"
	}
	return strconv.Itoa(s.Minutes) + "min"
}

// Valid reports whether the spot is well formed.
func (s Spot) Valid() bool {
	switch s.Kind {
	case SpotHost:
		return true
	case SpotTimed:
		return s.Minutes > 0
	default:
		return false
	}
}

// LineupEntry is one performer in a gig's running order.
type LineupEntry struct {
	ComedianID string `json:"comedianId" bson:"comedianId"`
	Name       string `json:"name" bson:"name"`
	Email      string `json:"email" bson:"email"`
	Order      int    `json:"order" bson:"order"`
	SpotIndex  *int   `json:"spotIndex,omitempty" bson:"spotIndex,omitempty"` // index into Gig.Spots
}

// Gig is a scheduled event with a bounded lineup.
type Gig struct {
	ID          string        `json:"id" bson:"_id"`
	Venue       string        `json:"venue" bson:"venue"`
	Date        string        `json:"date" bson:"date"`
	Time        string        `json:"time" bson:"time"`
	Description string        `json:"description,omitempty" bson:"description,omitempty"`
	Spots       []Spot        `json:"spots,omitempty" bson:"spots,omitempty"`
	SlotsTotal  int           `json:"slotsTotal,omitempty" bson:"slotsTotal,omitempty"` // legacy gigs without spots
	Lineup      []LineupEntry `json:"lineup" bson:"lineup"`
	Status      string        `json:"status" bson:"status"`
	CreatedAt   time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt" bson:"updatedAt"`
	Version     int64         `json:"version" bson:"version"`
}

// HasSpots reports whether the gig describes its slots individually.
func (g *Gig) HasSpots() bool {
	return len(g.Spots) > 0
}

// Capacity returns the maximum lineup length.
func (g *Gig) Capacity() int {
	if g.HasSpots() {
		return len(g.Spots)
	}
	return g.SlotsTotal
}

// SlotsAvailable returns how many lineup places are still free.
func (g *Gig) SlotsAvailable() int {
	n := g.Capacity() - len(g.Lineup)
	if n < 0 {
		return 0
	}
	return n
}

// IsFull reports whether the lineup has reached capacity.
func (g *Gig) IsFull() bool {
	return len(g.Lineup) >= g.Capacity()
}

// LineupIndex returns the position of the comedian in the lineup or -1.
func (g *Gig) LineupIndex(comedianID string) int {
	for i := range g.Lineup {
		if g.Lineup[i].ComedianID == comedianID {
			return i
		}
	}
	return -1
}

// SpotLabel returns the label of the spot at idx, or "" for nil or out of range.
func (g *Gig) SpotLabel(idx *int) string {
	if idx == nil || *idx < 0 || *idx >= len(g.Spots) {
		return ""
	}
	return g.Spots[*idx].Label()
}

// Day parses Gig.Date.
func (g *Gig) Day() (time.Time, error) {
	return time.Parse(DateLayout, g.Date)
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (g *Gig) Clone() *Gig {
	if g == nil {
		return nil
	}
	c := *g
	if g.Spots != nil {
		c.Spots = append([]Spot(nil), g.Spots...)
	}
	if g.Lineup != nil {
		c.Lineup = make([]LineupEntry, len(g.Lineup))
		for i, e := range g.Lineup {
			if e.SpotIndex != nil {
				idx := *e.SpotIndex
				e.SpotIndex = &idx
			}
			c.Lineup[i] = e
		}
	}
	return &c
}

// Renumber re-stamps Order as the 1-based array position.
func Renumber(lineup []LineupEntry) {
	for i := range lineup {
		lineup[i].Order = i + 1
	}
}

// IntPtr is a small helper for optional indices.
func IntPtr(v int) *int {
	return &v
}
