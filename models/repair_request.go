package models

import (
	"time"
)

// RequestStatus is the lifecycle state of a repair request. The label set is open:
// field edits may write any non-empty value, the constants below are the known states.
type RequestStatus string

const (
	StatusOpen          RequestStatus = "Open"
	StatusAssigned      RequestStatus = "Assigned"
	StatusInProgress    RequestStatus = "InProgress"
	StatusAwaitingParts RequestStatus = "AwaitingParts"
	StatusCompleted     RequestStatus = "Completed"
	StatusRejected      RequestStatus = "Rejected"
)

var KnownStatuses = []RequestStatus{
	StatusOpen,
	StatusAssigned,
	StatusInProgress,
	StatusAwaitingParts,
	StatusCompleted,
	StatusRejected,
}

func (s RequestStatus) IsKnown() bool {
	for _, k := range KnownStatuses {
		if s == k {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further work is expected on a request in this state.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// RepairRequest is an equipment repair filed by a client and worked by an assigned specialist.
type RepairRequest struct {
	ID                 uint          `json:"id" gorm:"primaryKey"`
	Number             string        `json:"number" gorm:"size:50;uniqueIndex;not null"`
	DateAdded          time.Time     `json:"dateAdded" gorm:"column:date_added;not null"`
	ClimateTechType    string        `json:"climateTechType" gorm:"column:climate_tech_type;size:100;not null;index"`
	ClimateTechModel   string        `json:"climateTechModel" gorm:"column:climate_tech_model;size:200;not null"`
	ProblemDescription string        `json:"problemDescription" gorm:"column:problem_description;type:text;not null"`
	Status             RequestStatus `json:"requestStatus" gorm:"column:request_status;size:50;not null;index"`
	CompletionDate     *time.Time    `json:"completionDate" gorm:"column:completion_date"`
	RepairParts        *string       `json:"repairParts" gorm:"column:repair_parts;type:text"`

	ClientID uint  `json:"-" gorm:"column:client_id;not null;index"`
	Client   *User `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	MasterID *uint `json:"-" gorm:"column:master_id;index"`
	Master   *User `json:"master" gorm:"foreignKey:MasterID"`

	Comments []Comment `json:"comments,omitempty" gorm:"foreignKey:RequestID"`
}

// TableName specifies the table name for the RepairRequest model
func (RepairRequest) TableName() string {
	return "repair_requests"
}

// ApplyStatus writes a new status and keeps the completion date in step with it:
// entering Completed stamps now, any other status clears the stamp.
func (r *RepairRequest) ApplyStatus(status RequestStatus, now time.Time) {
	if status == StatusCompleted {
		if r.Status != StatusCompleted || r.CompletionDate == nil {
			stamp := now
			r.CompletionDate = &stamp
		}
	} else {
		r.CompletionDate = nil
	}
	r.Status = status
}

// IsOwnedBy reports whether the given user filed this request.
func (r *RepairRequest) IsOwnedBy(userID uint) bool {
	return r.ClientID == userID
}

type CreateRequestInput struct {
	ClimateTechType  string `json:"climateTechType" binding:"required,max=100"`
	ClimateTechModel string `json:"climateTechModel" binding:"required,max=200"`
	Description      string `json:"description" binding:"required"`
}

// UpdateRequestInput is a partial edit. Nil or blank fields are left unchanged.
type UpdateRequestInput struct {
	ClimateTechType  *string `json:"climateTechType" binding:"omitempty,max=100"`
	ClimateTechModel *string `json:"climateTechModel" binding:"omitempty,max=200"`
	Description      *string `json:"description"`
	RequestStatus    *string `json:"requestStatus" binding:"omitempty,max=50"`
	RepairParts      *string `json:"repairParts"`
}

type SetStatusInput struct {
	Status string `json:"status" binding:"required,min=2,max=50"`
}
