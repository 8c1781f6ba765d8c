package policy

import (
	"testing"

	"climate-repair-server/models"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role    models.Role
		action  Action
		isOwner bool
		want    bool
	}{
		// Anyone authenticated may file a request.
		{models.RoleCustomer, CreateRequest, false, true},
		{models.RoleSpecialist, CreateRequest, false, true},
		{models.RoleManager, CreateRequest, false, true},

		// Listing everything is staff only.
		{models.RoleManager, ListAllRequests, false, true},
		{models.RoleSpecialist, ListAllRequests, false, true},
		{models.RoleQualityManager, ListAllRequests, false, true},
		{models.RoleOperator, ListAllRequests, false, true},
		{models.RoleAdmin, ListAllRequests, false, true},
		{models.RoleCustomer, ListAllRequests, false, false},

		// Viewing one request.
		{models.RoleCustomer, ViewRequest, true, true},
		{models.RoleCustomer, ViewRequest, false, false},
		{models.RoleSpecialist, ViewRequest, false, true},
		{models.RoleOperator, ViewRequest, false, true},

		// Editing needs a staff role and ownership together.
		{models.RoleManager, UpdateRequest, true, true},
		{models.RoleManager, UpdateRequest, false, false},
		{models.RoleOperator, UpdateRequest, true, true},
		{models.RoleQualityManager, UpdateRequest, true, true},
		{models.RoleAdmin, UpdateRequest, true, true},
		{models.RoleCustomer, UpdateRequest, true, false},
		{models.RoleSpecialist, UpdateRequest, true, false},

		{models.RoleManager, AssignSpecialist, false, true},
		{models.RoleOperator, AssignSpecialist, false, true},
		{models.RoleQualityManager, AssignSpecialist, false, true},
		{models.RoleAdmin, AssignSpecialist, false, true},
		{models.RoleSpecialist, AssignSpecialist, false, false},
		{models.RoleCustomer, AssignSpecialist, true, false},

		{models.RoleSpecialist, SetStatus, false, true},
		{models.RoleCustomer, SetStatus, true, false},

		{models.RoleManager, DeleteRequest, false, true},
		{models.RoleOperator, DeleteRequest, false, true},
		{models.RoleAdmin, DeleteRequest, false, true},
		{models.RoleQualityManager, DeleteRequest, false, false},
		{models.RoleCustomer, DeleteRequest, true, false},

		{models.RoleManager, DeleteUser, false, true},
		{models.RoleAdmin, DeleteUser, false, false},
		{models.RoleOperator, DeleteUser, false, false},
		{models.RoleManager, CreateUser, false, true},
		{models.RoleCustomer, CreateUser, false, false},

		{models.RoleManager, ViewStatistics, false, true},
		{models.RoleOperator, ViewStatistics, false, true},
		{models.RoleQualityManager, ViewStatistics, false, true},
		{models.RoleSpecialist, ViewStatistics, false, false},
		{models.RoleAdmin, ViewStatistics, false, false},
		{models.RoleCustomer, ViewStatistics, false, false},

		{models.RoleSpecialist, AddComment, false, true},
		{models.RoleCustomer, AddComment, true, false},

		{models.RoleCustomer, WatchRequests, false, false},
		{models.RoleOperator, WatchRequests, false, true},
	}

	for _, tt := range tests {
		got := Can(tt.role, tt.action, tt.isOwner)
		if got != tt.want {
			t.Errorf("Can(%q, %q, owner=%v) = %v, want %v", tt.role, tt.action, tt.isOwner, got, tt.want)
		}
	}
}

func TestCanDeniesUnknown(t *testing.T) {
	if Can("Janitor", CreateRequest, true) {
		t.Error("unknown role was allowed to create a request")
	}
	if Can(models.RoleManager, Action("launch-rockets"), true) {
		t.Error("unknown action was allowed")
	}
	if Can("", ViewRequest, false) {
		t.Error("empty role was allowed to view a request it does not own")
	}
}
