package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"climate-repair-server/models"
	"climate-repair-server/testutil"
)

type fixture struct {
	db       *gorm.DB
	requests *RequestService
	feedback *FeedbackLedger
	users    *UserDirectory
	stats    *StatisticsService
	events   *recordingPublisher
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	events := &recordingPublisher{}
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	requests := NewRequestService(db, events)
	requests.now = clock.Now
	requests.numbers.now = clock.Now
	feedback := NewFeedbackLedger(db, events)
	feedback.now = clock.Now

	return &fixture{
		db:       db,
		requests: requests,
		feedback: feedback,
		users:    NewUserDirectory(db),
		stats:    NewStatisticsService(db),
		events:   events,
		clock:    clock,
	}
}

// user inserts an account directly; password hashing is exercised by the directory tests.
func (f *fixture) user(t *testing.T, login string, role models.Role) models.Actor {
	t.Helper()
	u := models.User{
		FullName:     "User " + login,
		Phone:        "+7900" + login,
		Login:        login,
		PasswordHash: "x",
		Role:         role,
	}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", login, err)
	}
	return models.Actor{ID: u.ID, Login: u.Login, Role: u.Role}
}

func (f *fixture) request(t *testing.T, owner models.Actor, techType string) *models.RepairRequest {
	t.Helper()
	req, err := f.requests.Create(context.Background(), owner, models.CreateRequestInput{
		ClimateTechType:  techType,
		ClimateTechModel: "Model X",
		Description:      "does not cool",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.RequestEvent
}

func (p *recordingPublisher) Publish(e models.RequestEvent) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func wantKind(t *testing.T, err error, kind *Error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("err = %v, want %s", err, kind.Kind)
	}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
