package lobby

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anrdraft/draft-backend/internal/cards"
	"github.com/anrdraft/draft-backend/internal/engine"
)

// fakeNotifier forwards every outbound notification as a short tag so tests
// can assert on delivery without a chat platform.
type fakeNotifier struct {
	events chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{events: make(chan string, 1024)}
}

func (f *fakeNotifier) DraftStarted(userID, code string) {
	f.events <- "started:" + userID
}

func (f *fakeNotifier) PackDelivered(userID, code string, pack engine.Pack) {
	f.events <- fmt.Sprintf("pack:%s:%d", userID, len(pack))
}

func (f *fakeNotifier) ParticipantJoined(creatorID, code, player string, count int) {
	f.events <- fmt.Sprintf("joined:%s:%s:%d", creatorID, player, count)
}

func (f *fakeNotifier) ParticipantLeft(creatorID, code, player string, count int) {
	f.events <- fmt.Sprintf("left:%s:%s:%d", creatorID, player, count)
}

func (f *fakeNotifier) DraftCancelled(userID, code, reason string) {
	f.events <- "cancelled:" + userID
}

func (f *fakeNotifier) DraftComplete(userID, code string, summary *engine.PicksSummary) {
	f.events <- "complete:" + userID
}

// helper: receive one notification with a timeout so tests never hang
func recvEvent(t *testing.T, f *fakeNotifier, within time.Duration) string {
	t.Helper()
	select {
	case e := <-f.events:
		return e
	case <-time.After(within):
		t.Fatalf("timed out waiting for notification")
		return "" // unreachable
	}
}

func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvView(t *testing.T, lb *Lobby, within time.Duration) View {
	t.Helper()
	v, alive := recvViewOrDone(t, lb, within)
	if !alive {
		t.Fatalf("lobby shut down while waiting for view")
	}
	return v
}

// recvViewOrDone fetches a view, reporting alive=false if the lobby tore
// down first.
func recvViewOrDone(t *testing.T, lb *Lobby, within time.Duration) (View, bool) {
	t.Helper()
	reply := make(chan View, 1)
	select {
	case lb.Inbox() <- GetState{Reply: reply}:
	case <-lb.Done():
		return View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-lb.Done():
		select {
		case v := <-reply:
			return v, true
		default:
			return View{}, false
		}
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{}, false // unreachable
	}
}

func testCatalog(n int) *cards.Catalog {
	c := &cards.Catalog{
		Identities: map[cards.Side][]cards.Card{},
		Mains:      map[cards.Side][]cards.Card{},
	}
	for _, side := range cards.Sides {
		for i := 0; i < 5*n; i++ {
			c.Identities[side] = append(c.Identities[side], cards.Card{
				Code:     fmt.Sprintf("%s-id-%03d", side, i),
				Title:    fmt.Sprintf("%s identity %d", side, i),
				TypeCode: "identity",
				SideCode: string(side),
			})
		}
		for i := 0; i < 45*n; i++ {
			c.Mains[side] = append(c.Mains[side], cards.Card{
				Code:     fmt.Sprintf("%s-main-%03d", side, i),
				Title:    fmt.Sprintf("%s card %d", side, i),
				TypeCode: "program",
				SideCode: string(side),
			})
		}
	}
	return c
}

type lobbyFixture struct {
	lb         *Lobby
	notifier   *fakeNotifier
	terminated chan []string
}

func newLobbyFixture(t *testing.T, players int) *lobbyFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &lobbyFixture{
		notifier:   newFakeNotifier(),
		terminated: make(chan []string, 1),
	}
	f.lb = NewLobby(ctx, Config{
		Code:     "test",
		State:    engine.NewState("p0", "U0"),
		Catalog:  testCatalog(players),
		Rand:     rand.New(rand.NewSource(1)),
		Notifier: f.notifier,
		OnTerminate: func(names []string) {
			f.terminated <- names
		},
	})
	for i := 1; i < players; i++ {
		require.NoError(t, f.lb.Apply(engine.Command{
			Type:   engine.CmdJoin,
			Player: fmt.Sprintf("p%d", i),
			UserID: fmt.Sprintf("U%d", i),
		}))
	}
	return f
}

func TestLobby_StartBroadcastsSnapshotAndNotifies(t *testing.T) {
	f := newLobbyFixture(t, 2)

	out := make(chan Snapshot, 8)
	f.lb.Inbox() <- Join{ClientID: "obs", Outbox: out}
	first := recvSnapshot(t, out, time.Second)
	assert.False(t, first.Started)
	assert.Equal(t, 1, first.Version) // one join already applied

	require.NoError(t, f.lb.Apply(engine.Command{Type: engine.CmdStart, Player: "p0"}))

	snap := recvSnapshot(t, out, time.Second)
	assert.True(t, snap.Started)
	assert.Equal(t, 2, snap.Version)
	require.Len(t, snap.Players, 2)
	for _, p := range snap.Players {
		assert.True(t, p.HasOpenPack)
		assert.Equal(t, 7, p.PacksLeft)
	}

	// Two welcome messages and two first packs went out.
	got := map[string]int{}
	for i := 0; i < 4; i++ {
		got[recvEvent(t, f.notifier, time.Second)]++
	}
	assert.Equal(t, 1, got["started:U0"])
	assert.Equal(t, 1, got["started:U1"])
	assert.Equal(t, 1, got["pack:U0:5"])
	assert.Equal(t, 1, got["pack:U1:5"])
}

func TestLobby_RejectionsDoNotBroadcast(t *testing.T) {
	f := newLobbyFixture(t, 2)

	out := make(chan Snapshot, 8)
	f.lb.Inbox() <- Join{ClientID: "obs", Outbox: out}
	recvSnapshot(t, out, time.Second)

	err := f.lb.Apply(engine.Command{Type: engine.CmdStart, Player: "p1"})
	assert.ErrorIs(t, err, engine.ErrNotCreator)

	select {
	case snap := <-out:
		t.Fatalf("expected no snapshot after a rejected command, got %+v", snap)
	case <-time.After(100 * time.Millisecond):
		// good: no snapshot
	}
}

func TestLobby_LeaveClosesObserverOutbox(t *testing.T) {
	f := newLobbyFixture(t, 2)

	out := make(chan Snapshot, 8)
	f.lb.Inbox() <- Join{ClientID: "obs", Outbox: out}
	recvSnapshot(t, out, time.Second)

	f.lb.Inbox() <- Leave{ClientID: "obs"}

	// The websocket writer ranges over the outbox until it closes; a Leave
	// that only forgot the channel would park that goroutine forever.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("outbox never closed after the observer left")
		}
	}
}

func TestLobby_ViewStateIsDetached(t *testing.T) {
	f := newLobbyFixture(t, 2)
	require.NoError(t, f.lb.Apply(engine.Command{Type: engine.CmdStart, Player: "p0"}))

	view := recvView(t, f.lb, time.Second)
	view.State.Done = true
	view.State.Players["p0"].Inbox[0][0].Code = "tampered"
	view.State.Players["p0"].Seat = 99

	fresh := recvView(t, f.lb, time.Second)
	assert.False(t, fresh.Snapshot.Done)
	assert.NotEqual(t, "tampered", fresh.State.Players["p0"].Inbox[0][0].Code)
	assert.NotEqual(t, 99, fresh.State.Players["p0"].Seat)
}

func TestLobby_StalePickRejected(t *testing.T) {
	f := newLobbyFixture(t, 2)
	require.NoError(t, f.lb.Apply(engine.Command{Type: engine.CmdStart, Player: "p0"}))

	view := recvView(t, f.lb, time.Second)
	p0 := view.State.Players["p0"]
	first := p0.Inbox[0][0].Code

	require.NoError(t, f.lb.Apply(engine.Command{Type: engine.CmdPick, Player: "p0", CardCode: first}))

	err := f.lb.Apply(engine.Command{Type: engine.CmdPick, Player: "p0", CardCode: first})
	assert.ErrorIs(t, err, engine.ErrNoOpenPack)
}

func TestLobby_CompletionTearsDown(t *testing.T) {
	f := newLobbyFixture(t, 2)
	require.NoError(t, f.lb.Apply(engine.Command{Type: engine.CmdStart, Player: "p0"}))

	// Drive the draft to the end, always picking the front card. The final
	// pick tears the lobby down, so views may stop coming at any point.
	for steps := 0; ; steps++ {
		require.Less(t, steps, 10000, "draft did not complete")
		view, alive := recvViewOrDone(t, f.lb, time.Second)
		if !alive || view.Snapshot.Done {
			break
		}
		picked := false
		for _, name := range view.State.Order {
			p := view.State.Players[name]
			if !p.HasOpenPack {
				continue
			}
			require.NoError(t, f.lb.Apply(engine.Command{
				Type: engine.CmdPick, Player: name, CardCode: p.Inbox[0][0].Code,
			}))
			picked = true
			break
		}
		require.True(t, picked, "no open pack anywhere but draft not done")
	}

	select {
	case names := <-f.terminated:
		assert.ElementsMatch(t, []string{"p0", "p1"}, names)
	case <-time.After(time.Second):
		t.Fatal("lobby never reported termination")
	}

	select {
	case <-f.lb.Done():
	case <-time.After(time.Second):
		t.Fatal("lobby never shut down")
	}

	// Exactly one completion summary per player.
	complete := map[string]int{}
	drain := time.After(time.Second)
	for complete["complete:U0"] == 0 || complete["complete:U1"] == 0 {
		select {
		case e := <-f.notifier.events:
			complete[e]++
		case <-drain:
			t.Fatal("missing completion notifications")
		}
	}
	assert.Equal(t, 1, complete["complete:U0"])
	assert.Equal(t, 1, complete["complete:U1"])

	// Commands after teardown fail cleanly.
	err := f.lb.Apply(engine.Command{Type: engine.CmdPick, Player: "p0", CardCode: "x"})
	assert.Error(t, err)
}

func TestLobby_CancelNotifiesOthersAndTerminates(t *testing.T) {
	f := newLobbyFixture(t, 3)

	require.NoError(t, f.lb.Apply(engine.Command{Type: engine.CmdCancel, Player: "p0"}))

	cancelled := map[string]int{}
	deadline := time.After(time.Second)
	for cancelled["cancelled:U1"] == 0 || cancelled["cancelled:U2"] == 0 {
		select {
		case e := <-f.notifier.events:
			cancelled[e]++
		case <-deadline:
			t.Fatal("missing cancellation notifications")
		}
	}
	// The creator asked; no DM back to them.
	assert.Zero(t, cancelled["cancelled:U0"])

	select {
	case names := <-f.terminated:
		assert.ElementsMatch(t, []string{"p0", "p1", "p2"}, names)
	case <-time.After(time.Second):
		t.Fatal("lobby never reported termination")
	}
}

func TestLobby_PicksQuery(t *testing.T) {
	f := newLobbyFixture(t, 2)
	require.NoError(t, f.lb.Apply(engine.Command{Type: engine.CmdStart, Player: "p0"}))

	view := recvView(t, f.lb, time.Second)
	first := view.State.Players["p0"].Inbox[0][0]
	require.NoError(t, f.lb.Apply(engine.Command{Type: engine.CmdPick, Player: "p0", CardCode: first.Code}))

	sum, err := f.lb.Picks("p0")
	require.NoError(t, err)
	side := cards.Side(first.SideCode)
	require.Len(t, sum.Sides[side], 1)
	assert.Equal(t, first.Code, sum.Sides[side][0].Card.Code)

	_, err = f.lb.Picks("stranger")
	assert.ErrorIs(t, err, engine.ErrNotParticipant)
}
