package engine

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/anrdraft/draft-backend/internal/cards"
)

// Fixed draft shape: per side, one identity pack of 5 cards per player plus
// three 15-card main packs per player.
const (
	identityPerPlayer = 5
	mainPackRounds    = 3
	cardsPerMainPack  = 15
)

// allocate deals the catalog into per-player pack sequences and assigns
// seats. It is apply-or-abort: every draw is validated before any player
// state changes, so an undersized catalog leaves the draft untouched.
//
// With the same rng seed, catalog, and join order, the deal is identical
// across runs.
func allocate(s *State, catalog *cards.Catalog, rng *rand.Rand) error {
	n := len(s.Order)
	if n <= 0 {
		return fmt.Errorf("%w: no players", ErrInsufficientCards)
	}

	// [player][pack] in the fixed sequence: id A, main A1..A3, id B, main B1..B3.
	sequences := make([][]Pack, n)

	for _, side := range cards.Sides {
		ids, err := draw(rng, catalog.Identities[side], identityPerPlayer*n, string(side)+" identities")
		if err != nil {
			return err
		}
		mains, err := draw(rng, catalog.Mains[side], cardsPerMainPack*mainPackRounds*n, string(side)+" cards")
		if err != nil {
			return err
		}

		idPacks := dealIdentityPacks(ids, n)
		mainPacks := dealMainPacks(mains, n)
		for i := 0; i < n; i++ {
			sequences[i] = append(sequences[i], idPacks[i])
			sequences[i] = append(sequences[i], mainPacks[i]...)
		}
	}

	// Seats are a random permutation of the table, fixed for the whole draft.
	perm := rng.Perm(n)

	for i, name := range s.Order {
		p := s.Players[name]
		p.Seat = perm[i]
		p.Packs = sequences[i]
	}
	return nil
}

// draw shuffles a copy of the catalog subset and keeps exactly want cards.
func draw(rng *rand.Rand, from []cards.Card, want int, what string) ([]cards.Card, error) {
	if len(from) < want {
		return nil, fmt.Errorf("%w: need %d %s, have %d", ErrInsufficientCards, want, what, len(from))
	}
	shuffled := slices.Clone(from)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:want], nil
}

// dealIdentityPacks hands cards out one at a time round-robin until fewer
// than n remain; stragglers are discarded. Every pack comes out equal sized.
func dealIdentityPacks(drawn []cards.Card, n int) []Pack {
	packs := make([]Pack, n)
	for len(drawn) >= n {
		for i := 0; i < n; i++ {
			packs[i] = append(packs[i], drawn[0])
			drawn = drawn[1:]
		}
	}
	return packs
}

// dealMainPacks splits the drawn cards evenly into mainPackRounds packs per
// player, dealing round-robin and advancing to the next pack round only once
// everyone's current pack is full.
func dealMainPacks(drawn []cards.Card, n int) [][]Pack {
	perPack := len(drawn) / (n * mainPackRounds)
	packs := make([][]Pack, n)
	for i := range packs {
		packs[i] = make([]Pack, mainPackRounds)
	}

	round := 0
	for len(drawn) >= n && round < mainPackRounds {
		for i := 0; i < n; i++ {
			packs[i][round] = append(packs[i][round], drawn[0])
			drawn = drawn[1:]
		}
		if len(packs[n-1][round]) == perPack {
			round++
		}
	}
	return packs
}
