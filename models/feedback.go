package models

import (
	"time"
)

// DefaultClientName is recorded when feedback is left without a display name.
const DefaultClientName = "Anonymous"

// MaxClientNameLength matches the client_name column size.
const MaxClientNameLength = 100

// Feedback is a rating left on a repair request. Rows are never edited.
type Feedback struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	RepairRequestID uint      `json:"repair_request_id" gorm:"column:repair_request_id;not null;index"`
	Rating          int       `json:"rating" gorm:"type:int;not null;check:rating >= 1 AND rating <= 5"`
	Comment         string    `json:"comment" gorm:"type:text;not null"`
	ClientName      string    `json:"client_name" gorm:"column:client_name;size:100"`
	CreatedAt       time.Time `json:"created_at" gorm:"column:created_at"`
}

// TableName sets custom table name
func (Feedback) TableName() string { return "feedback" }

// FeedbackInput accepts the rating as a number so fractional values can be rejected
// with a validation error instead of a decode error.
type FeedbackInput struct {
	Rating     *float64 `json:"rating"`
	Comment    string   `json:"comment"`
	ClientName *string  `json:"client_name"`
}

type FeedbackSummary struct {
	Feedbacks     []Feedback `json:"feedbacks"`
	AverageRating *string    `json:"averageRating"`
}
