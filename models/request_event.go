package models

import "time"

type EventType string

const (
	EventCreated       EventType = "created"
	EventUpdated       EventType = "updated"
	EventAssigned      EventType = "assigned"
	EventStatusChanged EventType = "status_changed"
	EventCommented     EventType = "commented"
	EventFeedback      EventType = "feedback"
	EventDeleted       EventType = "deleted"
)

// RequestEvent is one entry in a repair request's history. The same value is pushed
// to live subscribers.
type RequestEvent struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	RequestID uint          `json:"request_id" gorm:"not null;index"`
	Number    string        `json:"number" gorm:"size:50"`
	ActorID   *uint         `json:"actor_id"`
	Type      EventType     `json:"type" gorm:"size:30;not null"`
	Status    RequestStatus `json:"status" gorm:"size:50"`
	Details   string        `json:"details" gorm:"type:text"`
	CreatedAt time.Time     `json:"created_at"`
}

func (RequestEvent) TableName() string {
	return "request_events"
}
