package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	mrand "math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/anrdraft/draft-backend/internal/cards"
	"github.com/anrdraft/draft-backend/internal/engine"
	"github.com/anrdraft/draft-backend/internal/lobby"
)

var ErrNotFound = errors.New("draft not found")
var ErrNotEnrolled = errors.New("player is not in any draft")
var ErrAlreadyDrafting = errors.New("player is already in a draft")
var ErrCodeSpaceExhausted = errors.New("could not generate a unique draft code")

const (
	codeLength      = 4
	codeAlphabet    = "abcdefghijklmnopqrstuvwxyz"
	maxCodeAttempts = 100
)

type HubMsg interface{ isHubMsg() }

type CreateDraft struct {
	CreatorName string
	CreatorID   string
	Reply       chan CreateReply
}

type CreateReply struct {
	Code string
	Err  error
}

type JoinDraft struct {
	Code   string
	Name   string
	UserID string
	Reply  chan JoinReply
}

type JoinReply struct {
	Creator string
	Err     error
}

type LeaveDraft struct {
	Code  string
	Name  string
	Reply chan error
}

type GetDraft struct {
	Code  string
	Reply chan *lobby.Lobby
}

// FindByPlayer is the reverse lookup behind self-service commands.
type FindByPlayer struct {
	Name  string
	Reply chan FindReply
}

type FindReply struct {
	Code  string
	Lobby *lobby.Lobby
	Err   error
}

// removeDraft is posted by a lobby's terminate callback; it deletes the draft
// and every member's reverse-lookup entry in one registry step.
type removeDraft struct {
	Code    string
	Players []string
}

type ShutdownHub struct{}

func (CreateDraft) isHubMsg()  {}
func (JoinDraft) isHubMsg()    {}
func (LeaveDraft) isHubMsg()   {}
func (GetDraft) isHubMsg()     {}
func (FindByPlayer) isHubMsg() {}
func (removeDraft) isHubMsg()  {}
func (ShutdownHub) isHubMsg()  {}

// Hub is the session registry: one actor owning the draft-code table and the
// player reverse map, so membership changes and teardown are serialized.
type Hub struct {
	inbox    chan HubMsg
	drafts   map[string]*lobby.Lobby
	players  map[string]string // player name -> draft code
	creators map[string]string // draft code -> creator name

	catalog  *cards.Catalog
	notifier lobby.Notifier
	seed     int64
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type Config struct {
	Catalog  *cards.Catalog
	Notifier lobby.Notifier
	// Seed fixes every lobby's shuffle source when non-zero. Zero seeds from
	// the clock, one stream per draft.
	Seed int64
	Log  *zap.Logger
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		drafts:   map[string]*lobby.Lobby{},
		players:  map[string]string{},
		creators: map[string]string{},
		catalog:  cfg.Catalog,
		notifier: cfg.Notifier,
		seed:     cfg.Seed,
		log:      cfg.Log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateDraft:
				msg.Reply <- h.create(msg.CreatorName, msg.CreatorID)

			case JoinDraft:
				msg.Reply <- h.join(msg.Code, msg.Name, msg.UserID)

			case LeaveDraft:
				msg.Reply <- h.leave(msg.Code, msg.Name)

			case GetDraft:
				msg.Reply <- h.drafts[msg.Code] // May be nil

			case FindByPlayer:
				code, ok := h.players[msg.Name]
				if !ok {
					msg.Reply <- FindReply{Err: ErrNotEnrolled}
					break
				}
				msg.Reply <- FindReply{Code: code, Lobby: h.drafts[code]}

			case removeDraft:
				h.remove(msg.Code, msg.Players)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(name, userID string) CreateReply {
	// A player runs or plays in at most one draft at a time.
	if _, busy := h.players[name]; busy {
		return CreateReply{Err: ErrAlreadyDrafting}
	}

	code, err := h.newCode()
	if err != nil {
		return CreateReply{Err: err}
	}

	seed := h.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	lb := lobby.NewLobby(h.ctx, lobby.Config{
		Code:     code,
		State:    engine.NewState(name, userID),
		Catalog:  h.catalog,
		Rand:     mrand.New(mrand.NewSource(seed)),
		Notifier: h.notifier,
		OnTerminate: func(players []string) {
			h.inbox <- removeDraft{Code: code, Players: players}
		},
	})

	h.drafts[code] = lb
	h.players[name] = code
	h.creators[code] = name
	h.log.Info("draft created", zap.String("draft_id", code), zap.String("player", name))
	return CreateReply{Code: code}
}

func (h *Hub) join(code, name, userID string) JoinReply {
	lb := h.drafts[code]
	if lb == nil {
		return JoinReply{Err: ErrNotFound}
	}
	if _, busy := h.players[name]; busy {
		return JoinReply{Err: ErrAlreadyDrafting}
	}
	if err := h.apply(lb, engine.Command{Type: engine.CmdJoin, Player: name, UserID: userID}); err != nil {
		return JoinReply{Err: err}
	}
	h.players[name] = code
	h.log.Info("player joined", zap.String("draft_id", code), zap.String("player", name))
	return JoinReply{Creator: h.creators[code]}
}

func (h *Hub) leave(code, name string) error {
	lb := h.drafts[code]
	if lb == nil {
		return ErrNotFound
	}
	if h.players[name] != code {
		return engine.ErrNotParticipant
	}
	err := h.apply(lb, engine.Command{Type: engine.CmdLeave, Player: name})
	if err != nil {
		return err
	}
	if h.creators[code] == name {
		// Creator leaving cancels the draft; the lobby's terminate callback
		// removes everyone in one step.
		return nil
	}
	delete(h.players, name)
	h.log.Info("player left", zap.String("draft_id", code), zap.String("player", name))
	return nil
}

func (h *Hub) remove(code string, players []string) {
	if _, ok := h.drafts[code]; !ok {
		return
	}
	delete(h.drafts, code)
	delete(h.creators, code)
	for _, name := range players {
		if h.players[name] == code {
			delete(h.players, name)
		}
	}
	h.log.Info("draft removed", zap.String("draft_id", code), zap.Int("players", len(players)))
}

func (h *Hub) newCode() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.drafts[code]; !taken {
			return code, nil
		}
		h.log.Warn("collision on draft code, regenerating", zap.String("draft_id", code))
	}
	return "", ErrCodeSpaceExhausted
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// apply forwards one command to a lobby, mapping a torn-down lobby to the
// same answer a missing one gives.
func (h *Hub) apply(lb *lobby.Lobby, cmd engine.Command) error {
	err := lb.Apply(cmd)
	if errors.Is(err, lobby.ErrClosed) {
		return ErrNotFound
	}
	return err
}

func (h *Hub) shutdown() {
	for _, lb := range h.drafts {
		lb.Inbox() <- lobby.Shutdown{}
	}
	clear(h.drafts)
	clear(h.players)
	clear(h.creators)
	h.cancel()
}
