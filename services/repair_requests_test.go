package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"climate-repair-server/models"
)

var numberPattern = regexp.MustCompile(`^REQ-\d{14}-[0-9A-F]{8}$`)

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCustomer)

	req, err := f.requests.Create(context.Background(), alice, models.CreateRequestInput{
		ClimateTechType:  "  Air conditioner ",
		ClimateTechModel: "LG S12",
		Description:      " noisy fan ",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != models.StatusOpen {
		t.Errorf("status = %q, want Open", req.Status)
	}
	if !numberPattern.MatchString(req.Number) {
		t.Errorf("number %q does not match %s", req.Number, numberPattern)
	}
	if req.ClimateTechType != "Air conditioner" || req.ProblemDescription != "noisy fan" {
		t.Errorf("inputs not trimmed: %+v", req)
	}
	if req.Client == nil || req.Client.ID != alice.ID {
		t.Errorf("client = %+v, want %d", req.Client, alice.ID)
	}
	if req.Master != nil || req.CompletionDate != nil {
		t.Errorf("new request has master or completion date: %+v", req)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != models.EventCreated {
		t.Errorf("published = %v, want [created]", got)
	}
}

// A number taken between the existence check and the insert is retried with a
// fresh suffix instead of failing the request.
func TestCreateRetriesDuplicateNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", models.RoleCustomer)

	taken := uuid.MustParse("aaaaaaaa-0000-4000-8000-000000000000")
	fresh := uuid.MustParse("bbbbbbbb-0000-4000-8000-000000000000")
	ids := []uuid.UUID{taken, taken, fresh}
	f.requests.numbers.newID = func() uuid.UUID {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first := f.request(t, alice, "Split")
	if want := formatNumber(f.clock.Now(), taken); first.Number != want {
		t.Fatalf("first number = %q, want %q", first.Number, want)
	}

	// Blind the pre-check so the insert itself hits the unique index.
	f.requests.numbers.exists = func(context.Context, string) (bool, error) { return false, nil }
	second, err := f.requests.Create(ctx, alice, models.CreateRequestInput{
		ClimateTechType:  "Chiller",
		ClimateTechModel: "Carrier",
		Description:      "alarm",
	})
	if err != nil {
		t.Fatalf("Create after collision: %v", err)
	}
	if want := formatNumber(f.clock.Now(), fresh); second.Number != want {
		t.Errorf("second number = %q, want %q", second.Number, want)
	}

	var count int64
	f.db.Model(&models.RepairRequest{}).Count(&count)
	if count != 2 {
		t.Errorf("rows = %d, want 2", count)
	}
	f.db.Model(&models.RequestEvent{}).Count(&count)
	if count != 2 {
		t.Errorf("events = %d, want 2 (rolled-back attempt left no event)", count)
	}
}

func TestCreateConcurrentNumbersDistinct(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCustomer)

	const n = 10
	var wg sync.WaitGroup
	numbers := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := f.requests.Create(context.Background(), alice, models.CreateRequestInput{
				ClimateTechType:  "Split",
				ClimateTechModel: "LG",
				Description:      "noise",
			})
			if err != nil {
				errs <- err
				return
			}
			numbers <- req.Number
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)
	for err := range errs {
		t.Fatalf("Create: %v", err)
	}

	seen := make(map[string]bool)
	for number := range numbers {
		if seen[number] {
			t.Errorf("number %s issued twice", number)
		}
		seen[number] = true
	}
	if len(seen) != n {
		t.Errorf("got %d numbers, want %d", len(seen), n)
	}
}

func TestCreateRequestRejectsBlankFields(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", models.RoleCustomer)

	_, err := f.requests.Create(context.Background(), alice, models.CreateRequestInput{
		ClimateTechType:  "Split",
		ClimateTechModel: "   ",
		Description:      "leaks",
	})
	wantKind(t, err, ErrValidation)

	var count int64
	f.db.Model(&models.RepairRequest{}).Count(&count)
	if count != 0 {
		t.Errorf("rows = %d after rejected create", count)
	}
}

func TestListIsScopedByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", models.RoleCustomer)
	carol := f.user(t, "carol", models.RoleCustomer)
	bob := f.user(t, "bob", models.RoleSpecialist)

	first := f.request(t, alice, "Split")
	f.request(t, carol, "Chiller")
	third := f.request(t, alice, "Split")

	own, err := f.requests.List(ctx, alice)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(own) != 2 || own[0].ID != third.ID || own[1].ID != first.ID {
		t.Errorf("customer list = %v, want [%d %d]", ids(own), third.ID, first.ID)
	}

	all, err := f.requests.List(ctx, bob)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("specialist sees %d requests, want 3", len(all))
	}
}

func TestGetRequestOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", models.RoleCustomer)
	carol := f.user(t, "carol", models.RoleCustomer)
	op := f.user(t, "olga", models.RoleOperator)
	req := f.request(t, alice, "Split")

	if _, err := f.requests.Get(ctx, alice, req.ID); err != nil {
		t.Errorf("owner Get: %v", err)
	}
	if _, err := f.requests.Get(ctx, op, req.ID); err != nil {
		t.Errorf("operator Get: %v", err)
	}
	_, err := f.requests.Get(ctx, carol, req.ID)
	wantKind(t, err, ErrForbidden)

	_, err = f.requests.Get(ctx, op, 999)
	wantKind(t, err, ErrNotFound)
}

func TestUpdateRequiresStaffOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", models.RoleCustomer)
	mgr := f.user(t, "mary", models.RoleManager)

	customers := f.request(t, alice, "Split")
	managers := f.request(t, mgr, "Split")
	patch := models.UpdateRequestInput{ClimateTechModel: strPtr("Daikin FTXM")}

	// Owner without a listed role.
	_, err := f.requests.Update(ctx, alice, customers.ID, patch)
	wantKind(t, err, ErrForbidden)
	// Listed role without ownership.
	_, err = f.requests.Update(ctx, mgr, customers.ID, patch)
	wantKind(t, err, ErrForbidden)

	got, err := f.requests.Update(ctx, mgr, managers.ID, patch)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ClimateTechModel != "Daikin FTXM" || got.ClimateTechType != "Split" {
		t.Errorf("patched = %+v", got)
	}
}

func TestUpdateBlankPatchChangesNothing(t *testing.T) {
	f := newFixture(t)
	mgr := f.user(t, "mary", models.RoleManager)
	req := f.request(t, mgr, "Split")
	published := len(f.events.types())

	got, err := f.requests.Update(context.Background(), mgr, req.ID, models.UpdateRequestInput{
		ClimateTechType: strPtr("  "),
		Description:     strPtr(""),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ClimateTechType != "Split" || got.ProblemDescription != "does not cool" {
		t.Errorf("blank patch modified request: %+v", got)
	}
	if len(f.events.types()) != published {
		t.Error("blank patch published an event")
	}
}

func TestStatusKeepsCompletionDateInStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", models.RoleCustomer)
	bob := f.user(t, "bob", models.RoleSpecialist)
	req := f.request(t, alice, "Split")

	f.clock.Advance(3 * time.Hour)
	done, err := f.requests.SetStatus(ctx, bob, req.ID, "Completed")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if done.CompletionDate == nil || done.CompletionDate.Sub(f.clock.Now()).Abs() > time.Second {
		t.Fatalf("completionDate = %v, want %v", done.CompletionDate, f.clock.Now())
	}

	reopened, err := f.requests.SetStatus(ctx, bob, req.ID, "InProgress")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if reopened.CompletionDate != nil {
		t.Errorf("completionDate = %v after leaving Completed", reopened.CompletionDate)
	}

	_, err = f.requests.SetStatus(ctx, bob, req.ID, "   ")
	wantKind(t, err, ErrValidation)
	_, err = f.requests.SetStatus(ctx, alice, req.ID, "Completed")
	wantKind(t, err, ErrForbidden)
}

func TestUpdateStatusStampsCompletion(t *testing.T) {
	f := newFixture(t)
	mgr := f.user(t, "mary", models.RoleManager)
	req := f.request(t, mgr, "Split")

	got, err := f.requests.Update(context.Background(), mgr, req.ID, models.UpdateRequestInput{
		RequestStatus: strPtr("Completed"),
		RepairParts:   strPtr("compressor"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.CompletionDate == nil {
		t.Error("completionDate not stamped")
	}
	if got.RepairParts == nil || *got.RepairParts != "compressor" {
		t.Errorf("repairParts = %v", got.RepairParts)
	}
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", models.RoleCustomer)
	mgr := f.user(t, "mary", models.RoleManager)
	bob := f.user(t, "bob", models.RoleSpecialist)
	req := f.request(t, alice, "Split")

	_, err := f.requests.Assign(ctx, mgr, req.ID, alice.ID)
	wantKind(t, err, ErrValidation)
	_, err = f.requests.Assign(ctx, mgr, req.ID, 999)
	wantKind(t, err, ErrValidation)
	_, err = f.requests.Assign(ctx, bob, req.ID, bob.ID)
	wantKind(t, err, ErrForbidden)
	_, err = f.requests.Assign(ctx, mgr, 999, bob.ID)
	wantKind(t, err, ErrNotFound)

	if _, err := f.requests.SetStatus(ctx, mgr, req.ID, "Completed"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, err := f.requests.Assign(ctx, mgr, req.ID, bob.ID)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got.Status != models.StatusAssigned {
		t.Errorf("status = %q, want Assigned", got.Status)
	}
	if got.Master == nil || got.Master.ID != bob.ID {
		t.Errorf("master = %+v, want %d", got.Master, bob.ID)
	}
	if got.CompletionDate != nil {
		t.Error("assignment left a completion date behind")
	}
}

func TestRemoveCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", models.RoleCustomer)
	mgr := f.user(t, "mary", models.RoleManager)
	bob := f.user(t, "bob", models.RoleSpecialist)
	req := f.request(t, alice, "Split")
	keep := f.request(t, alice, "Split")

	if _, err := f.requests.AddComment(ctx, bob, req.ID, models.CreateCommentInput{Message: "on my way"}); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := f.feedback.Add(ctx, alice, req.ID, models.FeedbackInput{Rating: floatPtr(4), Comment: "ok"}); err != nil {
		t.Fatalf("feedback Add: %v", err)
	}

	wantKind(t, f.requests.Remove(ctx, bob, req.ID), ErrForbidden)
	if err := f.requests.Remove(ctx, mgr, req.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	wantKind(t, f.requests.Remove(ctx, mgr, req.ID), ErrNotFound)

	for _, model := range []any{&models.Comment{}, &models.Feedback{}} {
		var count int64
		f.db.Model(model).Count(&count)
		if count != 0 {
			t.Errorf("%T rows = %d after cascade", model, count)
		}
	}
	var events int64
	f.db.Model(&models.RequestEvent{}).Where("request_id = ?", req.ID).Count(&events)
	if events != 0 {
		t.Errorf("history rows = %d after cascade", events)
	}
	if _, err := f.requests.Get(ctx, mgr, keep.ID); err != nil {
		t.Errorf("unrelated request gone: %v", err)
	}
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", models.RoleCustomer)
	bob := f.user(t, "bob", models.RoleSpecialist)
	req := f.request(t, alice, "Split")

	_, err := f.requests.AddComment(ctx, alice, req.ID, models.CreateCommentInput{Message: "hello"})
	wantKind(t, err, ErrForbidden)
	_, err = f.requests.AddComment(ctx, bob, req.ID, models.CreateCommentInput{Message: "  "})
	wantKind(t, err, ErrValidation)

	for _, msg := range []string{"diagnosed", "ordered parts"} {
		if _, err := f.requests.AddComment(ctx, bob, req.ID, models.CreateCommentInput{Message: msg}); err != nil {
			t.Fatalf("AddComment: %v", err)
		}
		f.clock.Advance(time.Minute)
	}

	comments, err := f.requests.ListComments(ctx, alice, req.ID)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(comments) != 2 || comments[0].Message != "diagnosed" || comments[1].Message != "ordered parts" {
		t.Fatalf("comments = %+v", comments)
	}
	if comments[0].Master == nil || comments[0].Master.ID != bob.ID {
		t.Errorf("comment master = %+v", comments[0].Master)
	}

	full, err := f.requests.Get(ctx, alice, req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(full.Comments) != 2 {
		t.Errorf("Get returned %d comments", len(full.Comments))
	}
}

func TestHistoryRecordsLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice", models.RoleCustomer)
	carol := f.user(t, "carol", models.RoleCustomer)
	mgr := f.user(t, "mary", models.RoleManager)
	bob := f.user(t, "bob", models.RoleSpecialist)
	req := f.request(t, alice, "Split")

	if _, err := f.requests.Assign(ctx, mgr, req.ID, bob.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := f.requests.SetStatus(ctx, bob, req.ID, "Completed"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	history, err := f.requests.History(ctx, alice, req.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []models.EventType{models.EventCreated, models.EventAssigned, models.EventStatusChanged}
	if len(history) != len(want) {
		t.Fatalf("history = %+v", history)
	}
	for i, e := range history {
		if e.Type != want[i] {
			t.Errorf("history[%d] = %s, want %s", i, e.Type, want[i])
		}
	}
	if history[2].Details != "Assigned -> Completed" {
		t.Errorf("details = %q", history[2].Details)
	}

	_, err = f.requests.History(ctx, carol, req.ID)
	wantKind(t, err, ErrForbidden)
}

func ids(reqs []models.RepairRequest) []uint {
	out := make([]uint, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}
