package slackbot

import (
	"fmt"
	"sync"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/anrdraft/draft-backend/internal/engine"
)

// Messenger is the slice of the Slack client the notifier needs; tests swap
// in a recorder.
type Messenger interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	OpenConversation(params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
}

// Notifier renders engine events into Slack DMs. Deliveries are best-effort:
// a failed post is logged and dropped, never reported back into draft state.
type Notifier struct {
	client Messenger
	log    *zap.Logger

	mu  sync.Mutex
	dms map[string]string // user ID -> DM channel ID
}

func NewNotifier(client Messenger, log *zap.Logger) *Notifier {
	return &Notifier{
		client: client,
		log:    log,
		dms:    map[string]string{},
	}
}

func (n *Notifier) DraftStarted(userID, code string) {
	n.post(userID, code, slack.MsgOptionText(
		"Welcome to the draft! Your first pack is on its way. Good luck!", false))
}

func (n *Notifier) PackDelivered(userID, code string, pack engine.Pack) {
	blocks := []slack.Block{slack.NewDividerBlock()}
	for _, c := range pack {
		text := slack.NewTextBlockObject(slack.MarkdownType, cardText(c), false, false)
		button := slack.NewButtonBlockElement(
			pickActionID,
			PickAction{DraftID: code, Card: c.Code}.Encode(),
			slack.NewTextBlockObject(slack.PlainTextType, "Pick "+c.Title, true, false),
		).WithStyle(slack.StylePrimary)
		blocks = append(blocks,
			slack.NewSectionBlock(text, nil, slack.NewAccessory(button)),
			slack.NewDividerBlock(),
		)
	}
	n.post(userID, code, slack.MsgOptionBlocks(blocks...))
}

func (n *Notifier) ParticipantJoined(creatorID, code, player string, count int) {
	n.post(creatorID, code, slack.MsgOptionText(
		fmt.Sprintf("`%s` joined draft `%s`. %d players are in.", player, code, count), false))
}

func (n *Notifier) ParticipantLeft(creatorID, code, player string, count int) {
	n.post(creatorID, code, slack.MsgOptionText(
		fmt.Sprintf("`%s` left draft `%s`. %d players remain.", player, code, count), false))
}

func (n *Notifier) DraftCancelled(userID, code, reason string) {
	n.post(userID, code, slack.MsgOptionText(
		fmt.Sprintf("Draft `%s` was called off: %s.", code, reason), false))
}

func (n *Notifier) DraftComplete(userID, code string, summary *engine.PicksSummary) {
	n.post(userID, code, slack.MsgOptionText(
		fmt.Sprintf("Draft `%s` is complete! Here is your pool:\n%s", code, RenderSummary(summary)), false))
}

func (n *Notifier) post(userID, code string, opt slack.MsgOption) {
	channel, err := n.dmChannel(userID)
	if err != nil {
		n.log.Error("open dm failed", zap.String("draft_id", code), zap.String("user", userID), zap.Error(err))
		return
	}
	if _, _, err := n.client.PostMessage(channel, opt); err != nil {
		n.log.Error("post failed", zap.String("draft_id", code), zap.String("user", userID), zap.Error(err))
	}
}

func (n *Notifier) dmChannel(userID string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.dms[userID]; ok {
		return ch, nil
	}
	channel, _, _, err := n.client.OpenConversation(&slack.OpenConversationParameters{
		Users:    []string{userID},
		ReturnIM: true,
	})
	if err != nil {
		return "", err
	}
	n.dms[userID] = channel.ID
	return channel.ID, nil
}
