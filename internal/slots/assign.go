// Package slots picks the spot a newly approved booking occupies.
package slots

import "gigbook/internal/models"

// SpotInfo is a simplified view of one spot for listings and emails.
type SpotInfo struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
	Comedian  string `json:"comedian,omitempty"`
}

// Occupied returns the set of spot indices held by lineup entries.
func Occupied(lineup []models.LineupEntry) map[int]bool {
	taken := make(map[int]bool, len(lineup))
	for _, e := range lineup {
		if e.SpotIndex != nil {
			taken[*e.SpotIndex] = true
		}
	}
	return taken
}

// Assign returns the first free spot whose label equals requested, or failing
// that the first free spot. ok is false when there are no spots or all are taken.
func Assign(spots []models.Spot, lineup []models.LineupEntry, requested string) (int, bool) {
	if len(spots) == 0 {
		return 0, false
	}
	taken := Occupied(lineup)

	for i, s := range spots {
		if !taken[i] && s.Label() == requested {
			return i, true
		}
	}
	for i := range spots {
		if !taken[i] {
			return i, true
		}
	}
	return 0, false
}

// Describe lists every spot of the gig with its occupant, if any.
func Describe(g *models.Gig) []SpotInfo {
	if g == nil || !g.HasSpots() {
		return nil
	}
	holders := make(map[int]string, len(g.Lineup))
	for _, e := range g.Lineup {
		if e.SpotIndex != nil {
			holders[*e.SpotIndex] = e.Name
		}
	}

	out := make([]SpotInfo, 0, len(g.Spots))
	for i, s := range g.Spots {
		name, taken := holders[i]
		out = append(out, SpotInfo{
			Index:     i,
			Label:     s.Label(),
			Available: !taken,
			Comedian:  name,
		})
	}
	return out
}
