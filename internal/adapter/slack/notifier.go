// Package slack posts operator messages about ingest runs.
package slack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// Notifier posts plain-text messages to one channel.
type Notifier struct {
	client  *slack.Client
	channel string
	logger  *slog.Logger
}

// NewNotifier creates a notifier authenticated with a bot token. Options are
// passed through to the Slack client.
func NewNotifier(token, channel string, logger *slog.Logger, opts ...slack.Option) *Notifier {
	return &Notifier{
		client:  slack.New(token, opts...),
		channel: channel,
		logger:  logger,
	}
}

// Notify posts text to the configured channel.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	_, ts, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post slack message to %s: %w", n.channel, err)
	}
	n.logger.Debug("slack message posted", "channel", n.channel, "ts", ts)
	return nil
}
