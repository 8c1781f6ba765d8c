package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"climate-repair-server/models"
)

// FeedbackLedger is the append-only store of ratings left on repair requests.
type FeedbackLedger struct {
	db     *gorm.DB
	events EventPublisher
	now    func() time.Time
}

func NewFeedbackLedger(db *gorm.DB, events EventPublisher) *FeedbackLedger {
	if events == nil {
		events = NopPublisher
	}
	return &FeedbackLedger{db: db, events: events, now: time.Now}
}

// Add appends a rating to the request. Anyone may leave feedback on any existing
// request; the actor is recorded in the request history.
func (l *FeedbackLedger) Add(ctx context.Context, actor models.Actor, requestID uint, in models.FeedbackInput) (*models.Feedback, error) {
	rating, err := validateRating(in.Rating)
	if err != nil {
		return nil, err
	}
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return nil, validationError("comment is required")
	}
	name := models.DefaultClientName
	if in.ClientName != nil {
		if trimmed := strings.TrimSpace(*in.ClientName); trimmed != "" {
			name = trimmed
		}
	}
	if utf8.RuneCountInString(name) > models.MaxClientNameLength {
		return nil, validationError("client_name must be at most %d characters", models.MaxClientNameLength)
	}

	var req models.RepairRequest
	if err := l.db.WithContext(ctx).First(&req, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("repair request")
		}
		return nil, storageError("find request", err)
	}

	fb := models.Feedback{
		RepairRequestID: req.ID,
		Rating:          rating,
		Comment:         comment,
		ClientName:      name,
		CreatedAt:       l.now(),
	}
	event := newEvent(&req, actor, models.EventFeedback, fmt.Sprintf("rating %d", rating), fb.CreatedAt)
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&fb).Error; err != nil {
			return err
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return nil, storageError("add feedback", err)
	}
	l.events.Publish(event)
	return &fb, nil
}

// List returns the request's feedback newest first with the rounded average.
func (l *FeedbackLedger) List(ctx context.Context, requestID uint) (*models.FeedbackSummary, error) {
	var count int64
	if err := l.db.WithContext(ctx).Model(&models.RepairRequest{}).Where("id = ?", requestID).Count(&count).Error; err != nil {
		return nil, storageError("find request", err)
	}
	if count == 0 {
		return nil, notFound("repair request")
	}

	feedbacks := []models.Feedback{}
	if err := l.db.WithContext(ctx).
		Where("repair_request_id = ?", requestID).
		Order("created_at DESC, id DESC").
		Find(&feedbacks).Error; err != nil {
		return nil, storageError("list feedback", err)
	}

	ratings := make([]int, len(feedbacks))
	for i, f := range feedbacks {
		ratings[i] = f.Rating
	}
	return &models.FeedbackSummary{
		Feedbacks:     feedbacks,
		AverageRating: Average(ratings),
	}, nil
}

// Average returns the mean rating rounded half-up to one decimal, formatted as
// "4.0". It is nil when there are no ratings.
func Average(ratings []int) *string {
	if len(ratings) == 0 {
		return nil
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	s := strconv.FormatFloat(roundTo(float64(sum)/float64(len(ratings)), 1), 'f', 1, 64)
	return &s
}

func validateRating(v *float64) (int, error) {
	if v == nil {
		return 0, validationError("rating is required")
	}
	r := *v
	if r != math.Trunc(r) || r < 1 || r > 5 {
		return 0, validationError("rating must be an integer between 1 and 5")
	}
	return int(r), nil
}
