package engine

import (
	"slices"

	"github.com/anrdraft/draft-backend/internal/cards"
)

// Pack is an ordered group of cards that circulates between players as a
// single unit.
type Pack []cards.Card

func (p Pack) indexOf(code string) int {
	for i, c := range p {
		if c.Code == code {
			return i
		}
	}
	return -1
}

// PlayerState tracks one participant's position in the draft.
//
// Packs holds the stored pack rounds not yet opened, front first. Inbox holds
// packs that have been passed to this player; the front inbox entry is the
// pack currently awaiting a pick iff HasOpenPack is true.
type PlayerState struct {
	Name        string
	UserID      string
	Seat        int
	Packs       []Pack
	Inbox       []Pack
	HasOpenPack bool
	Picks       map[cards.Side][]cards.Card
}

// State is the full draft aggregate. It is owned by a single lobby goroutine;
// Apply mutates it in place and guarantees no mutation on error.
type State struct {
	Creator string
	Started bool
	Done    bool
	Order   []string // join order; seating is a random permutation assigned at start
	Players map[string]*PlayerState
}

func NewState(creatorName, creatorID string) *State {
	s := &State{
		Creator: creatorName,
		Players: map[string]*PlayerState{},
	}
	s.addPlayer(creatorName, creatorID)
	return s
}

func (s *State) addPlayer(name, userID string) {
	s.Order = append(s.Order, name)
	s.Players[name] = &PlayerState{
		Name:   name,
		UserID: userID,
		Seat:   -1,
		Picks: map[cards.Side][]cards.Card{
			cards.SideCorp:   {},
			cards.SideRunner: {},
		},
	}
}

func (s *State) removePlayer(name string) {
	delete(s.Players, name)
	for i, n := range s.Order {
		if n == name {
			s.Order = append(s.Order[:i], s.Order[i+1:]...)
			break
		}
	}
}

func (s *State) bySeat(seat int) *PlayerState {
	for _, p := range s.Players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

// anyInFlight reports whether any pack is still circulating: queued in an
// inbox or open in front of a player. Stored pack rounds don't count.
func (s *State) anyInFlight() bool {
	for _, p := range s.Players {
		if len(p.Inbox) > 0 {
			return true
		}
	}
	return false
}

func (s *State) anyStored() bool {
	for _, p := range s.Players {
		if len(p.Packs) > 0 {
			return true
		}
	}
	return false
}

// isComplete is true once no player holds any pack, stored or circulating.
func (s *State) isComplete() bool {
	return !s.anyInFlight() && !s.anyStored()
}

// Clone returns a deep copy of the state, detached from the original down to
// the individual packs and pick lists.
func (s *State) Clone() *State {
	c := &State{
		Creator: s.Creator,
		Started: s.Started,
		Done:    s.Done,
		Order:   slices.Clone(s.Order),
		Players: make(map[string]*PlayerState, len(s.Players)),
	}
	for name, p := range s.Players {
		cp := &PlayerState{
			Name:        p.Name,
			UserID:      p.UserID,
			Seat:        p.Seat,
			HasOpenPack: p.HasOpenPack,
			Picks:       make(map[cards.Side][]cards.Card, len(p.Picks)),
		}
		for _, pack := range p.Packs {
			cp.Packs = append(cp.Packs, slices.Clone(pack))
		}
		for _, pack := range p.Inbox {
			cp.Inbox = append(cp.Inbox, slices.Clone(pack))
		}
		for side, picks := range p.Picks {
			cp.Picks[side] = slices.Clone(picks)
		}
		c.Players[name] = cp
	}
	return c
}

// UserIDOf resolves a participant name to the chat user it joined as.
func (s *State) UserIDOf(name string) string {
	if p := s.Players[name]; p != nil {
		return p.UserID
	}
	return ""
}
