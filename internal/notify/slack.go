package notify

import (
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/pkg/types"
)

// SlackSender posts drafted messages to Slack. The chat message goes to
// the assignment channel; the one-line status update goes to the status
// channel when one is configured.
type SlackSender struct {
	client        *slack.Client
	logger        *zap.Logger
	channel       string
	statusChannel string
}

// NewSlackSender creates a Slack sender from a bot token.
func NewSlackSender(token, channel, statusChannel string, logger *zap.Logger) (*SlackSender, error) {
	if token == "" {
		return nil, fmt.Errorf("slack token is required")
	}

	return &SlackSender{
		client:        slack.New(token),
		logger:        logger,
		channel:       channel,
		statusChannel: statusChannel,
	}, nil
}

// Send posts the notification's chat message and status update.
func (s *SlackSender) Send(n *types.Notification) error {
	_, ts, err := s.client.PostMessage(s.channel,
		slack.MsgOptionText(n.ChatMessage, false),
	)
	if err != nil {
		return fmt.Errorf("failed to post chat message for %s: %w", n.ItemID, err)
	}

	s.logger.Info("posted slack message",
		zap.String("item_id", n.ItemID),
		zap.String("channel", s.channel),
		zap.String("ts", ts),
	)

	if s.statusChannel == "" || n.StatusUpdate == "" {
		return nil
	}

	if _, _, err := s.client.PostMessage(s.statusChannel,
		slack.MsgOptionText(n.StatusUpdate, false),
	); err != nil {
		return fmt.Errorf("failed to post status update for %s: %w", n.ItemID, err)
	}
	return nil
}
