package lobby

import (
	"context"
	"errors"
	"math/rand"

	"github.com/anrdraft/draft-backend/internal/cards"
	"github.com/anrdraft/draft-backend/internal/engine"
)

// ErrClosed is returned for commands aimed at a lobby that already tore down.
var ErrClosed = errors.New("lobby closed")

// Notifier is the outbound half of the transport adapter. Calls are
// fire-and-forget from the lobby's perspective: delivery failures are the
// adapter's problem and never flow back into draft state.
type Notifier interface {
	DraftStarted(userID, code string)
	PackDelivered(userID, code string, pack engine.Pack)
	ParticipantJoined(creatorID, code, player string, count int)
	ParticipantLeft(creatorID, code, player string, count int)
	DraftCancelled(userID, code, reason string)
	DraftComplete(userID, code string, summary *engine.PicksSummary)
}

type Msg interface{ isLobbyMsg() }

// FromClient carries one engine command plus a reply channel for the
// synchronous accept/reject answer the chat platform expects.
type FromClient struct {
	Cmd   engine.Command
	Reply chan error
}

func (FromClient) isLobbyMsg() {}

// Join registers an observer that wants state snapshots.
type Join struct {
	ClientID string
	Outbox   chan Snapshot
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// GetPicks asks for one player's current pool.
type GetPicks struct {
	Player string
	Reply  chan PicksReply
}

func (GetPicks) isLobbyMsg() {}

type PicksReply struct {
	Summary *engine.PicksSummary
	Err     error
}

// PlayerView is the public slice of one player's state: counts only, never
// pack contents, so observers can't scout the draft.
type PlayerView struct {
	Name        string `json:"name"`
	Seat        int    `json:"seat"`
	PacksLeft   int    `json:"packs_left"`
	InboxLen    int    `json:"inbox_len"`
	HasOpenPack bool   `json:"has_open_pack"`
	Picked      int    `json:"picked"`
}

type Snapshot struct {
	Version int          `json:"version"`
	Code    string       `json:"code"`
	Started bool         `json:"started"`
	Done    bool         `json:"done"`
	Creator string       `json:"creator"`
	Players []PlayerView `json:"players"`
}

type View struct {
	Version    int
	NumClients int
	Snapshot   Snapshot
	State      *engine.State
}

// Lobby is the single-writer actor owning one draft. All reads and writes of
// the draft state happen on its loop goroutine, which is what makes the
// pick/pass/deliver pipeline atomic.
type Lobby struct {
	code    string
	inbox   chan Msg
	state   *engine.State
	catalog *cards.Catalog
	rng     *rand.Rand
	version int

	clients  map[string]chan Snapshot
	notifier Notifier
	notify   chan func()

	// onTerminate reports teardown to the registry with the final member
	// list, so draft and player entries disappear together.
	onTerminate func(players []string)

	ctx    context.Context
	cancel context.CancelFunc
}

type Config struct {
	Code        string
	State       *engine.State
	Catalog     *cards.Catalog
	Rand        *rand.Rand
	Notifier    Notifier
	OnTerminate func(players []string)
}

func NewLobby(parent context.Context, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		code:        cfg.Code,
		inbox:       make(chan Msg, 64),
		state:       cfg.State,
		catalog:     cfg.Catalog,
		rng:         cfg.Rand,
		clients:     map[string]chan Snapshot{},
		notifier:    cfg.Notifier,
		notify:      make(chan func(), 256),
		onTerminate: cfg.OnTerminate,
		ctx:         ctx,
		cancel:      cancel,
	}

	go l.loop()
	go l.drainNotify()
	return l
}

// Inbox exposes the actor mailbox to the hub, transport, and tests.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done closes once the lobby has shut down, whether by completion,
// cancellation, or parent context.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Apply submits one command and waits for the synchronous verdict the chat
// platform needs for its reply.
func (l *Lobby) Apply(cmd engine.Command) error {
	reply := make(chan error, 1)
	select {
	case l.inbox <- FromClient{Cmd: cmd, Reply: reply}:
	case <-l.ctx.Done():
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-l.ctx.Done():
		// The loop may have answered just before shutting down.
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// Picks fetches a player's current pool.
func (l *Lobby) Picks(player string) (*engine.PicksSummary, error) {
	reply := make(chan PicksReply, 1)
	select {
	case l.inbox <- GetPicks{Player: player, Reply: reply}:
	case <-l.ctx.Done():
		return nil, ErrClosed
	}
	select {
	case r := <-reply:
		return r.Summary, r.Err
	case <-l.ctx.Done():
		select {
		case r := <-reply:
			return r.Summary, r.Err
		default:
			return nil, ErrClosed
		}
	}
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- l.snapshot()

			case Leave:
				// Close the outbox so the client's writer loop unblocks;
				// broadcast may have already dropped this client.
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case FromClient:
				cmd := msg.Cmd
				if cmd.Type == engine.CmdStart {
					cmd.Catalog = l.catalog
					cmd.Rand = l.rng
				}
				events, err := engine.Apply(l.state, cmd)
				if msg.Reply != nil {
					msg.Reply <- err
				}
				if err != nil {
					break
				}
				l.dispatch(events)
				l.version++
				l.broadcast(l.snapshot())
				if l.state.Done {
					l.terminate()
					return
				}

			case GetPicks:
				sum, err := engine.Summary(l.state, msg.Player)
				msg.Reply <- PicksReply{Summary: sum, Err: err}

			case GetState:
				// test-only: a detached copy, safe to read off-loop
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Snapshot:   l.snapshot(),
					State:      l.state.Clone(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// dispatch resolves event recipients against the current state and queues the
// notifications in order. The queue is drained off the loop goroutine so slow
// chat deliveries never stall pick handling.
func (l *Lobby) dispatch(events []engine.Event) {
	creatorID := l.state.UserIDOf(l.state.Creator)
	for _, e := range events {
		ev := e
		var fn func()
		switch ev.Type {
		case engine.EvtPlayerJoined:
			fn = func() { l.notifier.ParticipantJoined(creatorID, l.code, ev.Player, ev.Count) }
		case engine.EvtPlayerLeft:
			fn = func() { l.notifier.ParticipantLeft(creatorID, l.code, ev.Player, ev.Count) }
		case engine.EvtDraftStarted:
			userID := l.state.UserIDOf(ev.Player)
			fn = func() { l.notifier.DraftStarted(userID, l.code) }
		case engine.EvtPackDelivered:
			userID := l.state.UserIDOf(ev.Player)
			fn = func() { l.notifier.PackDelivered(userID, l.code, ev.Pack) }
		case engine.EvtDraftCancelled:
			userID := l.state.UserIDOf(ev.Player)
			fn = func() { l.notifier.DraftCancelled(userID, l.code, ev.Reason) }
		case engine.EvtDraftComplete:
			userID := l.state.UserIDOf(ev.Player)
			fn = func() { l.notifier.DraftComplete(userID, l.code, ev.Summary) }
		}
		if fn != nil {
			l.notify <- fn
		}
	}
}

func (l *Lobby) drainNotify() {
	for fn := range l.notify {
		fn()
	}
}

func (l *Lobby) snapshot() Snapshot {
	snap := Snapshot{
		Version: l.version,
		Code:    l.code,
		Started: l.state.Started,
		Done:    l.state.Done,
		Creator: l.state.Creator,
	}
	for _, name := range l.state.Order {
		p := l.state.Players[name]
		picked := 0
		for _, side := range cards.Sides {
			picked += len(p.Picks[side])
		}
		snap.Players = append(snap.Players, PlayerView{
			Name:        p.Name,
			Seat:        p.Seat,
			PacksLeft:   len(p.Packs),
			InboxLen:    len(p.Inbox),
			HasOpenPack: p.HasOpenPack,
			Picked:      picked,
		})
	}
	return snap
}

func (l *Lobby) terminate() {
	players := append([]string(nil), l.state.Order...)
	if l.onTerminate != nil {
		// Async so the lobby never blocks on (or deadlocks with) the hub.
		go l.onTerminate(players)
	}
	l.shutdown()
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	close(l.notify)
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
			// ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
		}
	}
}
