package engine

import (
	"github.com/anrdraft/draft-backend/internal/cards"
)

// SummaryEntry is one drafted card with the number of copies the player
// registers when building a deck from the pool.
type SummaryEntry struct {
	Card   cards.Card
	Copies int
}

// PicksSummary is the final pool for one player, grouped by side in pick
// order.
type PicksSummary struct {
	Player string
	Sides  map[cards.Side][]SummaryEntry
}

// copyCount follows the deck-building convention for drafted pools: the five
// identity picks at the front count once each, the band at picks 26-30 counts
// once, and everything else counts three times. The rule is a deck-building
// convention, not draft logic, so it stays confined to summary building.
func copyCount(i int) int {
	if i < 5 {
		return 1
	}
	if i >= 25 && i < 30 {
		return 1
	}
	return 3
}

func buildSummary(p *PlayerState) *PicksSummary {
	sum := &PicksSummary{
		Player: p.Name,
		Sides:  map[cards.Side][]SummaryEntry{},
	}
	for _, side := range cards.Sides {
		entries := make([]SummaryEntry, 0, len(p.Picks[side]))
		for i, c := range p.Picks[side] {
			entries = append(entries, SummaryEntry{Card: c, Copies: copyCount(i)})
		}
		sum.Sides[side] = entries
	}
	return sum
}

// Summary builds the current (possibly mid-draft) pool view for one player.
// Used for the self-service "show my picks" command.
func Summary(s *State, player string) (*PicksSummary, error) {
	p, ok := s.Players[player]
	if !ok {
		return nil, ErrNotParticipant
	}
	return buildSummary(p), nil
}
