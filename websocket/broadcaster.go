package websocket

import (
	"climate-repair-server/models"
)

// EventMessageType tags request lifecycle events on the feed.
const EventMessageType = "request_event"

// Broadcaster publishes request events to every client of a hub.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Publish implements services.EventPublisher.
func (b *Broadcaster) Publish(event models.RequestEvent) {
	b.hub.BroadcastJSON(&Message{
		Type:      EventMessageType,
		Timestamp: event.CreatedAt,
		Data:      event,
	})
}
