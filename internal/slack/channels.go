package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/feedbackhq/feedback/internal/logger"
)

// ErrChannelNotFound is returned when no channel visible to the bot has the name
var ErrChannelNotFound = errors.New("slack channel not found")

const channelCacheTTL = time.Hour

type cachedChannel struct {
	id         string
	resolvedAt time.Time
}

// ChannelResolver maps the configured channel name to its ID. Results are
// cached for an hour so a renamed or recreated channel is picked up without
// a restart.
type ChannelResolver struct {
	client *slack.Client
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedChannel
}

// NewChannelResolver creates a new channel resolver
func NewChannelResolver(client *slack.Client) *ChannelResolver {
	return &ChannelResolver{
		client: client,
		ttl:    channelCacheTTL,
		now:    time.Now,
		cache:  make(map[string]cachedChannel),
	}
}

// ResolveChannel accepts a channel ID (C0123ABCD, G0123ABCD) or a name with
// or without the leading '#', and returns the channel ID.
func (r *ChannelResolver) ResolveChannel(ctx context.Context, nameOrID string) (string, error) {
	nameOrID = strings.TrimSpace(nameOrID)
	if nameOrID == "" {
		return "", fmt.Errorf("channel name/ID is empty")
	}
	if isChannelID(nameOrID) {
		return nameOrID, nil
	}
	name := strings.ToLower(strings.TrimPrefix(nameOrID, "#"))

	r.mu.Lock()
	entry, ok := r.cache[name]
	r.mu.Unlock()
	if ok && r.now().Sub(entry.resolvedAt) < r.ttl {
		return entry.id, nil
	}

	id, err := r.lookupChannel(ctx, name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[name] = cachedChannel{id: id, resolvedAt: r.now()}
	r.mu.Unlock()

	logger.L().Debug("Resolved slack channel", zap.String("channel", name), zap.String("channel_id", id))
	return id, nil
}

// Forget drops a cached name so the next call looks it up again
func (r *ChannelResolver) Forget(nameOrID string) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(nameOrID), "#"))
	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()
}

// lookupChannel pages through the bot's conversations. Without the groups
// scope the private listing fails, in which case only public channels are searched.
func (r *ChannelResolver) lookupChannel(ctx context.Context, name string) (string, error) {
	types := []string{"public_channel", "private_channel"}
	cursor := ""
	for {
		channels, next, err := r.client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Cursor:          cursor,
			ExcludeArchived: true,
			Limit:           1000,
			Types:           types,
		})
		if err != nil {
			if len(types) > 1 && strings.Contains(err.Error(), "missing_scope") {
				logger.L().Warn("Cannot list private slack channels, searching public channels only", zap.Error(err))
				types = types[:1]
				cursor = ""
				continue
			}
			return "", fmt.Errorf("failed to list slack channels: %w", err)
		}

		for _, channel := range channels {
			if strings.EqualFold(channel.Name, name) {
				return channel.ID, nil
			}
		}
		if next == "" {
			return "", fmt.Errorf("%w: #%s", ErrChannelNotFound, name)
		}
		cursor = next
	}
}

// isChannelID reports whether s looks like a public (C) or private (G)
// channel ID: the prefix followed by 8 to 14 upper-case alphanumerics
func isChannelID(s string) bool {
	if len(s) < 9 || len(s) > 15 {
		return false
	}
	if s[0] != 'C' && s[0] != 'G' {
		return false
	}
	for _, c := range s[1:] {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
