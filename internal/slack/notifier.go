// Package slack posts merge-suggestion activity to a Slack channel.
package slack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/feedbackhq/feedback/internal/logger"
	"github.com/feedbackhq/feedback/internal/notify"
	"github.com/feedbackhq/feedback/internal/utils"
)

const (
	postTimeout       = 10 * time.Second
	maxTitleChars     = 120
	maxReasoningChars = 300
)

// Notifier implements notify.Notifier. It announces new suggestions and
// expiry runs; accept and dismiss are admin actions and are not echoed.
type Notifier struct {
	client   *slack.Client
	resolver *ChannelResolver
	channel  string
}

// NewNotifier creates a notifier posting to channel (name or ID)
func NewNotifier(botToken, channel string, options ...slack.Option) *Notifier {
	options = append([]slack.Option{slack.OptionDebug(false)}, options...)
	client := slack.New(botToken, options...)
	return &Notifier{
		client:   client,
		resolver: NewChannelResolver(client),
		channel:  channel,
	}
}

func (n *Notifier) Notify(ctx context.Context, event notify.Event) {
	text, blocks, ok := buildMessage(event)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postTimeout)
	defer cancel()

	log := logger.L().With(zap.String("event", string(event.Type)))
	channelID, err := n.resolver.ResolveChannel(ctx, n.channel)
	if err != nil {
		log.Warn("Failed to resolve slack channel", zap.String("channel", n.channel), zap.Error(err))
		return
	}

	_, ts, err := n.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "channel_not_found") || strings.Contains(err.Error(), "is_archived") {
			n.resolver.Forget(n.channel)
		}
		log.Warn("Failed to post slack message", zap.Error(err))
		return
	}
	log.Debug("Posted slack message", zap.String("channel_id", channelID), zap.String("ts", ts))
}

// buildMessage renders event as fallback text plus blocks. ok is false for
// events that are not announced.
func buildMessage(event notify.Event) (string, []slack.Block, bool) {
	switch event.Type {
	case notify.EventSuggestionCreated:
		if event.Suggestion == nil {
			return "", nil, false
		}
		s := event.Suggestion
		text := fmt.Sprintf("Possible duplicate: %q looks like %q", titleOr(event.SourceTitle, s.SourcePostID), titleOr(event.TargetTitle, s.TargetPostID))

		var body strings.Builder
		body.WriteString("*Possible duplicate found*\n")
		fmt.Fprintf(&body, "*Merge:* %s\n", titleOr(event.SourceTitle, s.SourcePostID))
		fmt.Fprintf(&body, "*Into:* %s\n", titleOr(event.TargetTitle, s.TargetPostID))
		if s.LLMReasoning != "" {
			fmt.Fprintf(&body, "> %s", utils.TruncateText(s.LLMReasoning, maxReasoningChars))
		}

		blocks := []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, body.String(), false, false), nil, nil),
			slack.NewContextBlock("",
				slack.NewTextBlockObject(slack.MarkdownType,
					fmt.Sprintf("Confidence %.0f%% · similarity %.2f · suggestion `%s`", s.LLMConfidence*100, s.HybridScore, s.ID),
					false, false),
			),
		}
		return text, blocks, true

	case notify.EventSuggestionExpired:
		if event.Count <= 0 {
			return "", nil, false
		}
		text := fmt.Sprintf("Expired %s stale merge suggestion(s)", utils.FormatNumber(int(event.Count)))
		blocks := []slack.Block{
			slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, text, false, false)),
		}
		return text, blocks, true

	default:
		return "", nil, false
	}
}

func titleOr(title, fallback string) string {
	if title == "" {
		return fallback
	}
	return utils.TruncateText(title, maxTitleChars)
}
