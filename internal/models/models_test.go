package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpot_Label(t *testing.T) {
	tests := []struct {
		spot     Spot
		expected string
	}{
		{Spot{Kind: SpotHost}, "Host"},
		{Spot{Kind: SpotTimed, Minutes: 5}, "5min"},
		{Spot{Kind: SpotTimed, Minutes: 10}, "10min"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.spot.Label())
	}
}

func TestSpot_Valid(t *testing.T) {
	assert.True(t, Spot{Kind: SpotHost}.Valid())
	assert.True(t, Spot{Kind: SpotTimed, Minutes: 7}.Valid())
	assert.False(t, Spot{Kind: SpotTimed}.Valid())
	assert.False(t, Spot{Kind: "open-mic"}.Valid())
}

func TestGig_Capacity(t *testing.T) {
	t.Run("spots take precedence", func(t *testing.T) {
		g := &Gig{Spots: []Spot{{Kind: SpotHost}, {Kind: SpotTimed, Minutes: 5}}, SlotsTotal: 10}
		assert.Equal(t, 2, g.Capacity())
	})

	t.Run("legacy slots total", func(t *testing.T) {
		g := &Gig{SlotsTotal: 4, Lineup: []LineupEntry{{ComedianID: "a"}}}
		assert.Equal(t, 4, g.Capacity())
		assert.Equal(t, 3, g.SlotsAvailable())
		assert.False(t, g.IsFull())
	})

	t.Run("empty spots fall back to slots total", func(t *testing.T) {
		g := &Gig{Spots: []Spot{}, SlotsTotal: 1, Lineup: []LineupEntry{{ComedianID: "a"}}}
		assert.Equal(t, 1, g.Capacity())
		assert.True(t, g.IsFull())
		assert.Equal(t, 0, g.SlotsAvailable())
	})
}

func TestGig_CloneDoesNotAlias(t *testing.T) {
	g := &Gig{
		ID:     "g1",
		Spots:  []Spot{{Kind: SpotHost}},
		Lineup: []LineupEntry{{ComedianID: "a", Order: 1, SpotIndex: IntPtr(0)}},
	}

	c := g.Clone()
	c.Lineup[0].Order = 5
	*c.Lineup[0].SpotIndex = 3
	c.Spots[0].Kind = SpotTimed

	assert.Equal(t, 1, g.Lineup[0].Order)
	assert.Equal(t, 0, *g.Lineup[0].SpotIndex)
	assert.Equal(t, SpotHost, g.Spots[0].Kind)
}

func TestRenumber(t *testing.T) {
	lineup := []LineupEntry{{ComedianID: "a", Order: 1}, {ComedianID: "c", Order: 3}}
	Renumber(lineup)
	assert.Equal(t, 1, lineup[0].Order)
	assert.Equal(t, 2, lineup[1].Order)
}

func TestGig_SpotLabel(t *testing.T) {
	g := &Gig{Spots: []Spot{{Kind: SpotHost}, {Kind: SpotTimed, Minutes: 5}}}
	assert.Equal(t, "5min", g.SpotLabel(IntPtr(1)))
	assert.Equal(t, "", g.SpotLabel(IntPtr(2)))
	assert.Equal(t, "", g.SpotLabel(nil))
}

func TestBookingStatus_Active(t *testing.T) {
	assert.True(t, StatusPending.Active())
	assert.True(t, StatusApproved.Active())
	assert.False(t, StatusRejected.Active())
	assert.False(t, StatusRemoved.Active())
	assert.False(t, BookingStatus("unknown").Valid())
}
