package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"climate-repair-server/models"
	"climate-repair-server/policy"
)

// RequestService owns the repair request lifecycle: creation, edits, assignment,
// status changes, comments and deletion. Every change is written to the request's
// history and handed to the event publisher.
type RequestService struct {
	db      *gorm.DB
	numbers *NumberGenerator
	events  EventPublisher
	now     func() time.Time
}

func NewRequestService(db *gorm.DB, events EventPublisher) *RequestService {
	if events == nil {
		events = NopPublisher
	}
	return &RequestService{
		db:      db,
		numbers: NewNumberGenerator(db),
		events:  events,
		now:     time.Now,
	}
}

// Create files a new request owned by the actor. The request starts Open.
func (s *RequestService) Create(ctx context.Context, actor models.Actor, in models.CreateRequestInput) (*models.RepairRequest, error) {
	if !policy.Can(actor.Role, policy.CreateRequest, false) {
		return nil, forbidden("you are not allowed to create requests")
	}

	techType := strings.TrimSpace(in.ClimateTechType)
	techModel := strings.TrimSpace(in.ClimateTechModel)
	description := strings.TrimSpace(in.Description)
	if techType == "" || techModel == "" || description == "" {
		return nil, validationError("climateTechType, climateTechModel and description are required")
	}

	var req models.RepairRequest
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := s.numbers.Next(ctx)
		if err != nil {
			return nil, err
		}

		req = models.RepairRequest{
			Number:             number,
			DateAdded:          s.now(),
			ClimateTechType:    techType,
			ClimateTechModel:   techModel,
			ProblemDescription: description,
			Status:             models.StatusOpen,
			ClientID:           actor.ID,
		}

		var event models.RequestEvent
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit(clause.Associations).Create(&req).Error; err != nil {
				return err
			}
			event = newEvent(&req, actor, models.EventCreated, "", req.DateAdded)
			return tx.Create(&event).Error
		})
		if err == nil {
			s.events.Publish(event)
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) || attempt == maxNumberAttempts-1 {
			return nil, storageError("create request", err)
		}
		log.Printf("requests: number %s collided, retrying", number)
	}

	log.Printf("requests: %s created by user %d", req.Number, actor.ID)
	return s.load(ctx, req.ID)
}

// List returns requests visible to the actor, newest first. Staff see every
// request, everyone else only the ones they filed.
func (s *RequestService) List(ctx context.Context, actor models.Actor) ([]models.RepairRequest, error) {
	q := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Master").
		Order("id DESC")
	if !policy.Can(actor.Role, policy.ListAllRequests, false) {
		q = q.Where("client_id = ?", actor.ID)
	}

	var requests []models.RepairRequest
	if err := q.Find(&requests).Error; err != nil {
		return nil, storageError("list requests", err)
	}
	return requests, nil
}

// Get returns one request with its client, master and comments.
func (s *RequestService) Get(ctx context.Context, actor models.Actor, id uint) (*models.RepairRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Can(actor.Role, policy.ViewRequest, req.IsOwnedBy(actor.ID)) {
		return nil, forbidden("you are not allowed to view this request")
	}
	return req, nil
}

// Update applies a partial edit. Blank fields are ignored; a status written here
// follows the same completion-date rule as SetStatus.
func (s *RequestService) Update(ctx context.Context, actor models.Actor, id uint, in models.UpdateRequestInput) (*models.RepairRequest, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Can(actor.Role, policy.UpdateRequest, req.IsOwnedBy(actor.ID)) {
		return nil, forbidden("you are not allowed to edit this request")
	}

	var changed []string
	if v, ok := nonBlank(in.ClimateTechType); ok {
		req.ClimateTechType = v
		changed = append(changed, "climateTechType")
	}
	if v, ok := nonBlank(in.ClimateTechModel); ok {
		req.ClimateTechModel = v
		changed = append(changed, "climateTechModel")
	}
	if v, ok := nonBlank(in.Description); ok {
		req.ProblemDescription = v
		changed = append(changed, "problemDescription")
	}
	if v, ok := nonBlank(in.RepairParts); ok {
		req.RepairParts = &v
		changed = append(changed, "repairParts")
	}
	if v, ok := nonBlank(in.RequestStatus); ok {
		req.ApplyStatus(models.RequestStatus(v), s.now())
		changed = append(changed, "requestStatus")
	}
	if len(changed) == 0 {
		return s.load(ctx, id)
	}

	details := strings.Join(changed, ",")
	if err := s.save(ctx, req, actor, models.EventUpdated, details); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// SetStatus overwrites the status. Any non-empty label is accepted.
func (s *RequestService) SetStatus(ctx context.Context, actor models.Actor, id uint, status string) (*models.RepairRequest, error) {
	if !policy.Can(actor.Role, policy.SetStatus, false) {
		return nil, forbidden("you are not allowed to change request status")
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, validationError("status is required")
	}

	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := req.Status
	req.ApplyStatus(models.RequestStatus(status), s.now())
	if !req.Status.IsKnown() {
		log.Printf("requests: %s moved to unlisted status %q", req.Number, req.Status)
	}

	details := fmt.Sprintf("%s -> %s", previous, req.Status)
	if err := s.save(ctx, req, actor, models.EventStatusChanged, details); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Assign hands the request to a specialist and moves it to Assigned.
func (s *RequestService) Assign(ctx context.Context, actor models.Actor, id, specialistID uint) (*models.RepairRequest, error) {
	if !policy.Can(actor.Role, policy.AssignSpecialist, false) {
		return nil, forbidden("you are not allowed to assign specialists")
	}

	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	var specialist models.User
	if err := s.db.WithContext(ctx).First(&specialist, specialistID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validationError("specialist %d does not exist", specialistID)
		}
		return nil, storageError("find specialist", err)
	}
	if !specialist.IsSpecialist() {
		return nil, validationError("user %d is not a specialist", specialistID)
	}

	req.MasterID = &specialist.ID
	req.ApplyStatus(models.StatusAssigned, s.now())

	details := fmt.Sprintf("specialist %d", specialist.ID)
	if err := s.save(ctx, req, actor, models.EventAssigned, details); err != nil {
		return nil, err
	}
	log.Printf("requests: %s assigned to specialist %d by %d", req.Number, specialist.ID, actor.ID)
	return s.load(ctx, id)
}

// Remove deletes the request with its comments, feedback and history.
func (s *RequestService) Remove(ctx context.Context, actor models.Actor, id uint) error {
	if !policy.Can(actor.Role, policy.DeleteRequest, false) {
		return forbidden("you are not allowed to delete requests")
	}

	req, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteRequestRows(tx, id)
	})
	if err != nil {
		return storageError("delete request", err)
	}

	s.events.Publish(models.RequestEvent{
		RequestID: req.ID,
		Number:    req.Number,
		ActorID:   actorID(actor),
		Type:      models.EventDeleted,
		Status:    req.Status,
		CreatedAt: s.now(),
	})
	log.Printf("requests: %s deleted by user %d", req.Number, actor.ID)
	return nil
}

// AddComment records a staff note on the request. The actor becomes the comment's master.
func (s *RequestService) AddComment(ctx context.Context, actor models.Actor, id uint, in models.CreateCommentInput) (*models.Comment, error) {
	if !policy.Can(actor.Role, policy.AddComment, false) {
		return nil, forbidden("you are not allowed to comment on requests")
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, validationError("message is required")
	}

	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		Message:   message,
		MasterID:  actor.ID,
		RequestID: req.ID,
	}
	var event models.RequestEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&comment).Error; err != nil {
			return err
		}
		event = newEvent(req, actor, models.EventCommented, fmt.Sprintf("comment %d", comment.ID), s.now())
		return tx.Create(&event).Error
	})
	if err != nil {
		return nil, storageError("add comment", err)
	}
	s.events.Publish(event)

	if err := s.db.WithContext(ctx).Preload("Master").First(&comment, comment.ID).Error; err != nil {
		return nil, storageError("reload comment", err)
	}
	return &comment, nil
}

// ListComments returns the request's comments, oldest first.
func (s *RequestService) ListComments(ctx context.Context, actor models.Actor, id uint) ([]models.Comment, error) {
	if _, err := s.viewable(ctx, actor, id); err != nil {
		return nil, err
	}

	var comments []models.Comment
	if err := s.db.WithContext(ctx).
		Preload("Master").
		Where("request_id = ?", id).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, storageError("list comments", err)
	}
	return comments, nil
}

// History returns the request's lifecycle events in the order they happened.
func (s *RequestService) History(ctx context.Context, actor models.Actor, id uint) ([]models.RequestEvent, error) {
	if _, err := s.viewable(ctx, actor, id); err != nil {
		return nil, err
	}

	var events []models.RequestEvent
	if err := s.db.WithContext(ctx).
		Where("request_id = ?", id).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, storageError("load history", err)
	}
	return events, nil
}

func (s *RequestService) viewable(ctx context.Context, actor models.Actor, id uint) (*models.RepairRequest, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Can(actor.Role, policy.ViewRequest, req.IsOwnedBy(actor.ID)) {
		return nil, forbidden("you are not allowed to view this request")
	}
	return req, nil
}

// find loads the bare row without associations.
func (s *RequestService) find(ctx context.Context, id uint) (*models.RepairRequest, error) {
	var req models.RepairRequest
	if err := s.db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("repair request")
		}
		return nil, storageError("find request", err)
	}
	return &req, nil
}

func (s *RequestService) load(ctx context.Context, id uint) (*models.RepairRequest, error) {
	var req models.RepairRequest
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Master").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC, comments.id ASC")
		}).
		Preload("Comments.Master").
		First(&req, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("repair request")
		}
		return nil, storageError("load request", err)
	}
	return &req, nil
}

// save writes the row and its history entry in one transaction, then publishes the entry.
func (s *RequestService) save(ctx context.Context, req *models.RepairRequest, actor models.Actor, kind models.EventType, details string) error {
	var event *models.RequestEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(req).Error; err != nil {
			return err
		}
		e := newEvent(req, actor, kind, details, s.now())
		if err := tx.Create(&e).Error; err != nil {
			return err
		}
		event = &e
		return nil
	})
	if err != nil {
		return storageError("save request", err)
	}
	s.events.Publish(*event)
	return nil
}

func newEvent(req *models.RepairRequest, actor models.Actor, kind models.EventType, details string, at time.Time) models.RequestEvent {
	return models.RequestEvent{
		RequestID: req.ID,
		Number:    req.Number,
		ActorID:   actorID(actor),
		Type:      kind,
		Status:    req.Status,
		Details:   details,
		CreatedAt: at,
	}
}

func actorID(actor models.Actor) *uint {
	if actor.ID == 0 {
		return nil
	}
	id := actor.ID
	return &id
}

// deleteRequestRows removes a request and everything that references it. Callers
// run it inside a transaction.
func deleteRequestRows(tx *gorm.DB, id uint) error {
	if err := tx.Where("request_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("repair_request_id = ?", id).Delete(&models.Feedback{}).Error; err != nil {
		return err
	}
	if err := tx.Where("request_id = ?", id).Delete(&models.RequestEvent{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.RepairRequest{}, id).Error
}

func nonBlank(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	t := strings.TrimSpace(*v)
	return t, t != ""
}
