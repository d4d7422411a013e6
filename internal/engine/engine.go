package engine

import (
	"errors"
	"math/rand"
	"slices"
	"sort"

	"github.com/anrdraft/draft-backend/internal/cards"
)

// Validation errors: returned to the caller as a rejection, nothing mutated.
var ErrAlreadyStarted = errors.New("draft already started")
var ErrAlreadyJoined = errors.New("player already in draft")
var ErrNotParticipant = errors.New("player not in draft")
var ErrNotCreator = errors.New("only the draft creator may do this")
var ErrNotStarted = errors.New("draft has not started")
var ErrDraftCompleted = errors.New("draft already completed")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Protocol errors: the transport sent a pick the state can't honor, which
// means a stale button or a desynced client rather than a user mistake.
var ErrNoOpenPack = errors.New("no open pack awaiting a pick")
var ErrCardNotInPack = errors.New("card not in the open pack")

// Setup errors.
var ErrInsufficientCards = errors.New("not enough cards in the catalog")

type CommandType string

const (
	CmdJoin   CommandType = "Join"
	CmdLeave  CommandType = "Leave"
	CmdStart  CommandType = "Start"
	CmdCancel CommandType = "Cancel"
	CmdPick   CommandType = "Pick"
)

type Command struct {
	Type     CommandType
	Player   string // acting participant
	UserID   string // join only
	CardCode string // pick only

	// start only: the card feed and the shuffle source. A fixed seed makes
	// the whole allocation reproducible.
	Catalog *cards.Catalog
	Rand    *rand.Rand
}

type EventType string

const (
	EvtPlayerJoined   EventType = "PlayerJoined"
	EvtPlayerLeft     EventType = "PlayerLeft"
	EvtDraftStarted   EventType = "DraftStarted"
	EvtPackDelivered  EventType = "PackDelivered"
	EvtDraftCancelled EventType = "DraftCancelled"
	EvtDraftComplete  EventType = "DraftComplete"
)

// Event is an outbound notification for the transport adapter. Player is the
// participant the event concerns; for membership events the adapter routes it
// to the creator instead.
type Event struct {
	Type    EventType
	Player  string
	Count   int // participant count after a join/leave
	Pack    Pack
	Reason  string
	Summary *PicksSummary
}

// Apply runs one command against the draft state. On error the state is
// untouched; on success it is mutated in place and the returned events carry
// everything the transport needs to notify players.
func Apply(s *State, cmd Command) ([]Event, error) {
	if s.Done {
		return nil, ErrDraftCompleted
	}

	switch cmd.Type {
	case CmdJoin:
		if s.Started {
			return nil, ErrAlreadyStarted
		}
		if _, ok := s.Players[cmd.Player]; ok {
			return nil, ErrAlreadyJoined
		}
		s.addPlayer(cmd.Player, cmd.UserID)
		return []Event{{Type: EvtPlayerJoined, Player: cmd.Player, Count: len(s.Order)}}, nil

	case CmdLeave:
		if s.Started {
			return nil, ErrAlreadyStarted
		}
		if _, ok := s.Players[cmd.Player]; !ok {
			return nil, ErrNotParticipant
		}
		if cmd.Player == s.Creator {
			// The creator walking away takes the whole draft with them.
			return s.cancel(cmd.Player, "the draft creator left"), nil
		}
		s.removePlayer(cmd.Player)
		return []Event{{Type: EvtPlayerLeft, Player: cmd.Player, Count: len(s.Order)}}, nil

	case CmdCancel:
		if _, ok := s.Players[cmd.Player]; !ok {
			return nil, ErrNotParticipant
		}
		if cmd.Player != s.Creator {
			return nil, ErrNotCreator
		}
		return s.cancel(cmd.Player, "the draft was cancelled by its creator"), nil

	case CmdStart:
		if s.Started {
			return nil, ErrAlreadyStarted
		}
		if cmd.Player != s.Creator {
			return nil, ErrNotCreator
		}
		// allocate builds the whole deal before touching player state, so a
		// short catalog leaves the draft joinable and retryable.
		if err := allocate(s, cmd.Catalog, cmd.Rand); err != nil {
			return nil, err
		}
		s.Started = true
		events := make([]Event, 0, 2*len(s.Order))
		for _, name := range s.seatOrder() {
			events = append(events, Event{Type: EvtDraftStarted, Player: name})
		}
		return append(events, s.openNextRound()...), nil

	case CmdPick:
		return s.applyPick(cmd.Player, cmd.CardCode)

	default:
		return nil, ErrUnsupportedCommand
	}
}

// applyPick removes the chosen card from the player's open pack, passes the
// remainder along the table, and sweeps deliveries. The whole pipeline runs
// as one unit under the lobby actor, so rotation always sees a consistent
// snapshot.
func (s *State) applyPick(player, cardCode string) ([]Event, error) {
	if !s.Started {
		return nil, ErrNotStarted
	}
	p, ok := s.Players[player]
	if !ok {
		return nil, ErrNotParticipant
	}
	if !p.HasOpenPack || len(p.Inbox) == 0 {
		// Stale button click: the pack this pick targeted was already
		// picked from. Reject rather than double-apply.
		return nil, ErrNoOpenPack
	}

	pack := p.Inbox[0]
	i := pack.indexOf(cardCode)
	if i < 0 {
		return nil, ErrCardNotInPack
	}

	picked := pack[i]
	rest := slices.Delete(slices.Clone(pack), i, i+1)
	p.Inbox = p.Inbox[1:]
	p.HasOpenPack = false
	side := cards.Side(picked.SideCode)
	p.Picks[side] = append(p.Picks[side], picked)

	if len(rest) > 0 {
		s.passPack(p, rest)
	}

	events := s.advanceDelivery()
	if !s.anyInFlight() {
		// Nothing circulating: either the next stored round opens for the
		// whole table, or the draft is over.
		if s.isComplete() {
			events = append(events, s.complete()...)
		} else {
			events = append(events, s.openNextRound()...)
		}
	}
	return events, nil
}

// passPack hands a pack to the next seat around the table. Rotation is
// strictly by seat number, never by name or join order.
func (s *State) passPack(from *PlayerState, pack Pack) {
	next := s.bySeat((from.Seat + 1) % len(s.Players))
	next.Inbox = append(next.Inbox, pack)
}

// advanceDelivery opens the front inbox pack for every player who is idle.
func (s *State) advanceDelivery() []Event {
	var events []Event
	for _, name := range s.seatOrder() {
		p := s.Players[name]
		if len(p.Inbox) > 0 && !p.HasOpenPack {
			p.HasOpenPack = true
			events = append(events, Event{Type: EvtPackDelivered, Player: name, Pack: p.Inbox[0]})
		}
	}
	return events
}

// openNextRound pops the next stored pack for every player and delivers it.
// Called once at start and again whenever a full round has been drafted out.
func (s *State) openNextRound() []Event {
	var events []Event
	for _, name := range s.seatOrder() {
		p := s.Players[name]
		if len(p.Packs) == 0 {
			continue
		}
		pack := p.Packs[0]
		p.Packs = p.Packs[1:]
		p.Inbox = append(p.Inbox, pack)
		p.HasOpenPack = true
		events = append(events, Event{Type: EvtPackDelivered, Player: name, Pack: pack})
	}
	return events
}

func (s *State) complete() []Event {
	s.Done = true
	events := make([]Event, 0, len(s.Order))
	for _, name := range s.seatOrder() {
		events = append(events, Event{
			Type:    EvtDraftComplete,
			Player:  name,
			Summary: buildSummary(s.Players[name]),
		})
	}
	return events
}

// cancel tears the draft down. Everyone except the actor gets notified; the
// actor already has a synchronous answer in hand.
func (s *State) cancel(actor, reason string) []Event {
	s.Done = true
	var events []Event
	for _, name := range s.Order {
		if name == actor {
			continue
		}
		events = append(events, Event{Type: EvtDraftCancelled, Player: name, Reason: reason})
	}
	return events
}

// seatOrder returns player names in seat order once seated, join order before.
func (s *State) seatOrder() []string {
	names := slices.Clone(s.Order)
	if s.Started {
		sort.Slice(names, func(i, j int) bool {
			return s.Players[names[i]].Seat < s.Players[names[j]].Seat
		})
	}
	return names
}
