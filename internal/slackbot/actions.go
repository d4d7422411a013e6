package slackbot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/slack-go/slack"
)

const pickActionID = "pick_card"

// PickAction is the structured button payload: the draft and the card, typed
// and validated at the transport boundary. The acting player always comes
// from the verified interaction user, never from the button value.
type PickAction struct {
	DraftID string `json:"draft_id"`
	Card    string `json:"card"`
}

func (a PickAction) Encode() string {
	b, _ := json.Marshal(a)
	return string(b)
}

func DecodePickAction(value string) (PickAction, error) {
	var a PickAction
	if err := json.Unmarshal([]byte(value), &a); err != nil {
		return PickAction{}, fmt.Errorf("bad action value: %w", err)
	}
	if a.DraftID == "" || a.Card == "" {
		return PickAction{}, fmt.Errorf("bad action value: missing fields")
	}
	return a, nil
}

// PickFromCallback pulls the pick out of an interaction callback, if the
// clicked element was one of ours.
func PickFromCallback(cb *slack.InteractionCallback) (PickAction, bool, error) {
	for _, action := range cb.ActionCallback.BlockActions {
		if action.ActionID != pickActionID {
			continue
		}
		a, err := DecodePickAction(action.Value)
		return a, true, err
	}
	return PickAction{}, false, nil
}

// VerifyRequest checks the Slack signature and hands back the body for
// parsing. Requests that fail verification must not reach any handler logic.
func VerifyRequest(r *http.Request, signingSecret string) ([]byte, error) {
	verifier, err := slack.NewSecretsVerifier(r.Header, signingSecret)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.TeeReader(r.Body, &verifier))
	if err != nil {
		return nil, err
	}
	if err := verifier.Ensure(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
