package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/anrdraft/draft-backend/internal/engine"
	"github.com/anrdraft/draft-backend/internal/hub"
	"github.com/anrdraft/draft-backend/internal/lobby"
	"github.com/anrdraft/draft-backend/internal/slackbot"
)

// API translates Slack slash commands and button clicks into hub and lobby
// commands, and rejections back into user-facing text. The core never formats
// strings for users; that all happens here.
type API struct {
	Hub           *hub.Hub
	SigningSecret string
	Log           *zap.Logger
}

func (a *API) CreateDraft(w http.ResponseWriter, r *http.Request) {
	cmd, ok := a.slashCommand(w, r)
	if !ok {
		return
	}
	reply := make(chan hub.CreateReply, 1)
	a.Hub.Inbox() <- hub.CreateDraft{CreatorName: cmd.UserName, CreatorID: cmd.UserID, Reply: reply}
	res := <-reply
	if res.Err != nil {
		a.reject(w, r, res.Err)
		return
	}
	respond(w, fmt.Sprintf(
		"Draft successfully created. Your draft ID is `%s`. "+
			"Other players can use this code with the `/joindraft` command to join the draft.",
		res.Code))
}

func (a *API) JoinDraft(w http.ResponseWriter, r *http.Request) {
	cmd, ok := a.slashCommand(w, r)
	if !ok {
		return
	}
	code := strings.TrimSpace(cmd.Text)
	if code == "" {
		respond(w, "You must provide a draft ID, e.g. `/joindraft abcd`.")
		return
	}
	reply := make(chan hub.JoinReply, 1)
	a.Hub.Inbox() <- hub.JoinDraft{Code: code, Name: cmd.UserName, UserID: cmd.UserID, Reply: reply}
	res := <-reply
	if res.Err != nil {
		a.reject(w, r, res.Err)
		return
	}
	respond(w, fmt.Sprintf(
		"Successfully joined draft `%s`. Please wait for `%s` to begin the draft.",
		code, res.Creator))
}

func (a *API) LeaveDraft(w http.ResponseWriter, r *http.Request) {
	cmd, ok := a.slashCommand(w, r)
	if !ok {
		return
	}
	code := strings.TrimSpace(cmd.Text)
	if code == "" {
		found, err := a.findByPlayer(cmd.UserName)
		if err != nil {
			a.reject(w, r, err)
			return
		}
		code = found.Code
	}
	reply := make(chan error, 1)
	a.Hub.Inbox() <- hub.LeaveDraft{Code: code, Name: cmd.UserName, Reply: reply}
	if err := <-reply; err != nil {
		a.reject(w, r, err)
		return
	}
	respond(w, fmt.Sprintf("You left draft `%s`.", code))
}

func (a *API) StartDraft(w http.ResponseWriter, r *http.Request) {
	cmd, ok := a.slashCommand(w, r)
	if !ok {
		return
	}
	lb, err := a.resolveDraft(cmd.UserName, cmd.Text)
	if err != nil {
		a.reject(w, r, err)
		return
	}
	if err := lb.Apply(engine.Command{Type: engine.CmdStart, Player: cmd.UserName}); err != nil {
		a.reject(w, r, err)
		return
	}
	respond(w, "Draft successfully started.")
}

func (a *API) CancelDraft(w http.ResponseWriter, r *http.Request) {
	cmd, ok := a.slashCommand(w, r)
	if !ok {
		return
	}
	lb, err := a.resolveDraft(cmd.UserName, cmd.Text)
	if err != nil {
		a.reject(w, r, err)
		return
	}
	if err := lb.Apply(engine.Command{Type: engine.CmdCancel, Player: cmd.UserName}); err != nil {
		a.reject(w, r, err)
		return
	}
	respond(w, "Draft cancelled.")
}

func (a *API) ShowPicks(w http.ResponseWriter, r *http.Request) {
	cmd, ok := a.slashCommand(w, r)
	if !ok {
		return
	}
	found, err := a.findByPlayer(cmd.UserName)
	if err != nil {
		a.reject(w, r, err)
		return
	}
	sum, err := found.Lobby.Picks(cmd.UserName)
	if err != nil {
		a.reject(w, r, err)
		return
	}
	respond(w, slackbot.RenderSummary(sum))
}

// Actions receives interaction callbacks. Pick buttons carry a structured
// value; the acting player is taken from the verified payload user.
func (a *API) Actions(w http.ResponseWriter, r *http.Request) {
	body, err := slackbot.VerifyRequest(r, a.SigningSecret)
	if err != nil {
		a.Log.Warn("rejected unsigned interaction", zap.Error(err))
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(vals.Get("payload")), &cb); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	pick, isPick, err := slackbot.PickFromCallback(&cb)
	if err != nil {
		a.Log.Error("malformed pick action", zap.Error(err))
		http.Error(w, "bad action", http.StatusBadRequest)
		return
	}
	if !isPick {
		w.WriteHeader(http.StatusOK)
		return
	}

	player := cb.User.Name
	text := a.applyPick(pick, player)
	if cb.ResponseURL != "" {
		err := slack.PostWebhook(cb.ResponseURL, &slack.WebhookMessage{
			Text:            text,
			ReplaceOriginal: false,
		})
		if err != nil {
			a.Log.Error("pick ack failed", zap.String("draft_id", pick.DraftID), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (a *API) applyPick(pick slackbot.PickAction, player string) string {
	reply := make(chan *lobby.Lobby, 1)
	a.Hub.Inbox() <- hub.GetDraft{Code: pick.DraftID, Reply: reply}
	lb := <-reply
	if lb == nil {
		return rejectionText(hub.ErrNotFound)
	}
	err := lb.Apply(engine.Command{Type: engine.CmdPick, Player: player, CardCode: pick.Card})
	if err != nil {
		a.Log.Warn("pick rejected",
			zap.String("draft_id", pick.DraftID),
			zap.String("player", player),
			zap.String("card", pick.Card),
			zap.Error(err))
		return rejectionText(err)
	}
	return "Pick locked in!"
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// slashCommand verifies the request signature and parses the command form.
func (a *API) slashCommand(w http.ResponseWriter, r *http.Request) (slack.SlashCommand, bool) {
	if _, err := slackbot.VerifyRequest(r, a.SigningSecret); err != nil {
		a.Log.Warn("rejected unsigned command", zap.Error(err))
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return slack.SlashCommand{}, false
	}
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "bad command", http.StatusBadRequest)
		return slack.SlashCommand{}, false
	}
	return cmd, true
}

// resolveDraft picks the draft addressed by a command: explicit code if the
// user typed one, otherwise whichever draft they're enrolled in.
func (a *API) resolveDraft(player, text string) (*lobby.Lobby, error) {
	if code := strings.TrimSpace(text); code != "" {
		reply := make(chan *lobby.Lobby, 1)
		a.Hub.Inbox() <- hub.GetDraft{Code: code, Reply: reply}
		lb := <-reply
		if lb == nil {
			return nil, hub.ErrNotFound
		}
		return lb, nil
	}
	found, err := a.findByPlayer(player)
	if err != nil {
		return nil, err
	}
	return found.Lobby, nil
}

func (a *API) findByPlayer(name string) (hub.FindReply, error) {
	reply := make(chan hub.FindReply, 1)
	a.Hub.Inbox() <- hub.FindByPlayer{Name: name, Reply: reply}
	res := <-reply
	if res.Err != nil {
		return hub.FindReply{}, res.Err
	}
	if res.Lobby == nil {
		return hub.FindReply{}, hub.ErrNotFound
	}
	return res, nil
}

func (a *API) reject(w http.ResponseWriter, r *http.Request, err error) {
	respond(w, rejectionText(err))
}

// rejectionText maps core errors to the text a player sees. Protocol errors
// get an operator-flavored message since they mean a desynced client.
func rejectionText(err error) string {
	switch {
	case errors.Is(err, hub.ErrNotFound), errors.Is(err, lobby.ErrClosed):
		// A lobby mid-teardown answers like a draft that's already gone.
		return "Draft does not exist."
	case errors.Is(err, hub.ErrNotEnrolled):
		return "You are not in a draft."
	case errors.Is(err, hub.ErrAlreadyDrafting):
		return "You are already in a draft. Leave it before joining another."
	case errors.Is(err, engine.ErrAlreadyStarted):
		return "That draft has already started."
	case errors.Is(err, engine.ErrAlreadyJoined):
		return "You have already joined that draft."
	case errors.Is(err, engine.ErrNotParticipant):
		return "You are not in that draft."
	case errors.Is(err, engine.ErrNotCreator):
		return "Only the draft creator can do that."
	case errors.Is(err, engine.ErrNotStarted):
		return "That draft has not started yet."
	case errors.Is(err, engine.ErrInsufficientCards):
		return "Not enough cards in the catalog for this many players."
	case errors.Is(err, engine.ErrNoOpenPack):
		return "That pack has already been picked from."
	case errors.Is(err, engine.ErrCardNotInPack):
		return "That card is no longer in your pack. If this keeps happening, tell an admin."
	case errors.Is(err, engine.ErrDraftCompleted):
		return "That draft is already over."
	default:
		return "Something went wrong. Try again."
	}
}

func respond(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}
