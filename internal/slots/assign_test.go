package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gigbook/internal/models"
)

func standardSpots() []models.Spot {
	return []models.Spot{
		{Kind: models.SpotHost},
		{Kind: models.SpotTimed, Minutes: 5},
		{Kind: models.SpotTimed, Minutes: 5},
		{Kind: models.SpotTimed, Minutes: 10},
	}
}

func occupy(idx ...int) []models.LineupEntry {
	var lineup []models.LineupEntry
	for i, x := range idx {
		lineup = append(lineup, models.LineupEntry{ComedianID: string(rune('a' + i)), Order: i + 1, SpotIndex: models.IntPtr(x)})
	}
	return lineup
}

func TestAssign(t *testing.T) {
	tests := []struct {
		name      string
		spots     []models.Spot
		lineup    []models.LineupEntry
		requested string
		wantIdx   int
		wantOK    bool
	}{
		{"first 5min", standardSpots(), nil, "5min", 1, true},
		{"second 5min", standardSpots(), occupy(1), "5min", 2, true},
		{"no 5min left falls back to first free", standardSpots(), occupy(1, 2), "5min", 0, true},
		{"exact match beats earlier free slot", standardSpots(), nil, "10min", 3, true},
		{"host", standardSpots(), nil, "Host", 0, true},
		{"empty request falls back", standardSpots(), occupy(0), "", 1, true},
		{"unknown label falls back", standardSpots(), nil, "open mic", 0, true},
		{"label match is exact", standardSpots(), nil, "host", 0, true},
		{"all taken", standardSpots(), occupy(0, 1, 2, 3), "5min", 0, false},
		{"legacy gig", nil, nil, "5min", 0, false},
		{"entries without spot index ignored", standardSpots(), []models.LineupEntry{{ComedianID: "x"}}, "Host", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := Assign(tt.spots, tt.lineup, tt.requested)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantIdx, idx)
			}
		})
	}
}

func TestAssignSequenceIsDeterministic(t *testing.T) {
	spots := standardSpots()
	var lineup []models.LineupEntry

	for _, req := range []string{"5min", "5min", "5min"} {
		idx, ok := Assign(spots, lineup, req)
		assert.True(t, ok)
		lineup = append(lineup, models.LineupEntry{SpotIndex: models.IntPtr(idx)})
	}

	got := []int{*lineup[0].SpotIndex, *lineup[1].SpotIndex, *lineup[2].SpotIndex}
	assert.Equal(t, []int{1, 2, 0}, got)

	again, _ := Assign(spots, lineup, "5min")
	repeat, _ := Assign(spots, lineup, "5min")
	assert.Equal(t, again, repeat)
}

func TestDescribe(t *testing.T) {
	g := &models.Gig{
		Spots:  standardSpots(),
		Lineup: []models.LineupEntry{{ComedianID: "a", Name: "Ann", SpotIndex: models.IntPtr(1)}},
	}

	info := Describe(g)
	assert.Len(t, info, 4)
	assert.Equal(t, "5min", info[1].Label)
	assert.False(t, info[1].Available)
	assert.Equal(t, "Ann", info[1].Comedian)
	assert.True(t, info[0].Available)

	assert.Nil(t, Describe(&models.Gig{SlotsTotal: 3}))
}
