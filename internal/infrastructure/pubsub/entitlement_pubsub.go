package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/adedayo14/shopifycart-sub000/internal/domain"

	"github.com/rs/zerolog"
)

// EntitlementChannel represents one subscriber to the entitlement feed.
type EntitlementChannel struct {
	ID     string
	Shop   string // empty matches every shop
	Events chan *domain.EntitlementEvent
	ctx    context.Context
	cancel context.CancelFunc
}

// EntitlementPubSub broadcasts entitlement changes to in-process
// subscribers (the SSE event feed). Publishing never blocks: slow
// subscribers drop events.
type EntitlementPubSub struct {
	mu       sync.RWMutex
	channels map[string]*EntitlementChannel
	logger   zerolog.Logger
	nextID   int64
}

// NewEntitlementPubSub creates a new entitlement pub/sub system.
func NewEntitlementPubSub(logger zerolog.Logger) *EntitlementPubSub {
	return &EntitlementPubSub{
		channels: make(map[string]*EntitlementChannel),
		logger:   logger,
	}
}

// Subscribe creates a subscription scoped to one shop, or to all shops when
// shop is empty. The channel is torn down when ctx is cancelled.
func (ps *EntitlementPubSub) Subscribe(ctx context.Context, shop string) *EntitlementChannel {
	subCtx, cancel := context.WithCancel(ctx)

	ps.mu.Lock()
	ps.nextID++
	channel := &EntitlementChannel{
		ID:     fmt.Sprintf("channel-%d", ps.nextID),
		Shop:   shop,
		Events: make(chan *domain.EntitlementEvent, 10),
		ctx:    subCtx,
		cancel: cancel,
	}
	ps.channels[channel.ID] = channel
	ps.mu.Unlock()

	ps.logger.Info().
		Str("channelId", channel.ID).
		Str("shop", shop).
		Msg("Entitlement subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(channel.ID)
	}()

	return channel
}

// Unsubscribe removes a subscription channel.
func (ps *EntitlementPubSub) Unsubscribe(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.channels[channelID]
	if !exists {
		return
	}

	close(channel.Events)
	channel.cancel()
	delete(ps.channels, channelID)

	ps.logger.Info().
		Str("channelId", channelID).
		Msg("Entitlement subscription removed")
}

// Publish broadcasts an entitlement event to all matching subscribers.
func (ps *EntitlementPubSub) Publish(event *domain.EntitlementEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, channel := range ps.channels {
		if channel.Shop != "" && channel.Shop != event.Shop {
			continue
		}
		select {
		case channel.Events <- event:
		case <-channel.ctx.Done():
		default:
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Msg("Channel buffer full, dropping event")
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (ps *EntitlementPubSub) SubscriberCount() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.channels)
}
