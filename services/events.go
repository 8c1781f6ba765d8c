package services

import (
	"climate-repair-server/models"
)

// EventPublisher receives every lifecycle event after it has been stored.
type EventPublisher interface {
	Publish(event models.RequestEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.RequestEvent) {}

// NopPublisher drops events. Used when no live feed is running.
var NopPublisher EventPublisher = nopPublisher{}
